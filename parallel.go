package securearc

import (
	"os"
	"runtime"
	"sync"
)

// ParallelConfig controls concurrent compression and sealing of input files
// during Create. Grounded on the teacher's parallel.go worker pool
// (parallelEncryptChunks/parallelDecryptChunks), generalized from per-chunk
// to per-file: SecureArc seals each file as a single AEAD region rather than
// splitting it into fixed-size chunks, so the unit of concurrency here is a
// whole InputFile.
type ParallelConfig struct {
	// Enabled turns on the worker pool. Off by default: Create is
	// sequential unless a caller opts in.
	Enabled bool

	// MaxWorkers is the maximum number of worker goroutines. 0 defaults to
	// runtime.NumCPU().
	MaxWorkers int

	// MinFilesForParallel is the minimum input count before the worker pool
	// is used; below it, sequential processing avoids pool setup overhead.
	MinFilesForParallel int
}

// Validate checks the parallel configuration, mirroring the bounds the
// teacher placed on its chunk worker pool.
func (p ParallelConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.MaxWorkers < 0 {
		return newConfigError("parallel.max_workers", p.MaxWorkers, "must not be negative")
	}
	if p.MaxWorkers > 1024 {
		return newConfigError("parallel.max_workers", p.MaxWorkers, "must not exceed 1024")
	}
	if p.MinFilesForParallel < 1 {
		return newConfigError("parallel.min_files_for_parallel", p.MinFilesForParallel, "must be at least 1")
	}
	return nil
}

// DefaultParallelConfig returns a worker pool sized to the machine, used by
// callers that want concurrency without hand-tuning it.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		Enabled:             true,
		MaxWorkers:          runtime.NumCPU(),
		MinFilesForParallel: 4,
	}
}

// sealedFile is one input file's compressed-and-sealed ciphertext, plus the
// directory metadata around it. Offset and CompressedSize are left zero;
// the caller fills them in once every file's ciphertext length is known, so
// files land in the scratch region in a stable order regardless of which
// worker finished first.
type sealedFile struct {
	entry      Entry
	ciphertext []byte
}

// sealFilesSequential processes inputs one at a time in order, reporting
// progress as each completes.
func sealFilesSequential(engine aeadEngine, compression CompressionID, inputs []InputFile, progress ProgressFunc, cancel CancelFunc) ([]sealedFile, error) {
	out := make([]sealedFile, len(inputs))
	for i, in := range inputs {
		if cancel != nil && cancel() {
			return nil, newIOError("create", in.SourcePath, errCreateCancelled)
		}
		emit(progress, i, len(inputs), in.ArchivePath, PhaseCompressing)
		sf, err := sealOneFile(engine, compression, in)
		if err != nil {
			return nil, err
		}
		emit(progress, i, len(inputs), in.ArchivePath, PhaseEncrypting)
		out[i] = sf
	}
	return out, nil
}

// sealFilesParallel fans inputs out across a worker pool and returns
// results in input order. A failure on any file is reported once every
// worker has drained, matching the teacher's wait-then-check handling.
func sealFilesParallel(cfg ParallelConfig, engine aeadEngine, compression CompressionID, inputs []InputFile) ([]sealedFile, error) {
	out := make([]sealedFile, len(inputs))

	numWorkers := cfg.MaxWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(inputs) {
		numWorkers = len(inputs)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	jobs := make(chan int, len(inputs))
	errs := make(chan error, len(inputs))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				sf, err := sealOneFile(engine, compression, inputs[idx])
				if err != nil {
					errs <- err
					continue
				}
				out[idx] = sf
			}
		}()
	}
	for i := range inputs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}
	return out, nil
}

// sealOneFile reads, compresses, and seals a single input under engine.
func sealOneFile(engine aeadEngine, compression CompressionID, in InputFile) (sealedFile, error) {
	src, err := os.Open(in.SourcePath)
	if err != nil {
		return sealedFile{}, newIOError("create", in.SourcePath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return sealedFile{}, newIOError("create", in.SourcePath, err)
	}

	plaintext, err := compressFile(compression, src)
	if err != nil {
		return sealedFile{}, newIOError("create", in.SourcePath, err)
	}

	nonce, err := newNonce()
	if err != nil {
		return sealedFile{}, err
	}
	ciphertext := engine.Seal(nonce[:], plaintext, []byte(in.ArchivePath))

	return sealedFile{
		entry: Entry{
			Path:         in.ArchivePath,
			OriginalSize: info.Size(),
			ModTime:      info.ModTime().Unix(),
			Attrs:        uint32(info.Mode().Perm()),
			Nonce:        nonce,
		},
		ciphertext: ciphertext,
	}, nil
}
