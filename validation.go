package securearc

import (
	"path"
	"strings"
)

// Input validation helpers, generalized from the teacher's validation.go:
// same defensive-check-before-use discipline, retargeted from cipher/chunk
// parameters to archive paths and input lists.

// normalizeArchivePath converts an input's on-disk path into the logical,
// forward-slash-normalized form recorded in the central directory. It
// rejects absolute paths and ".." components so a malicious or malformed
// archive path can never later resolve outside an extraction directory.
func normalizeArchivePath(p string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if clean == "" || clean == "." {
		return "", newConfigError("archive_path", p, "archive path cannot be empty")
	}
	if path.IsAbs(clean) {
		return "", newConfigError("archive_path", p, "archive path must be relative")
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", newConfigError("archive_path", p, "archive path must not escape its root")
	}
	return clean, nil
}

// validateInputs normalizes every input's ArchivePath and rejects
// duplicate logical paths, which would otherwise make List's results
// ambiguous.
func validateInputs(inputs []InputFile) ([]InputFile, error) {
	seen := make(map[string]bool, len(inputs))
	out := make([]InputFile, len(inputs))
	for i, in := range inputs {
		normalized, err := normalizeArchivePath(in.ArchivePath)
		if err != nil {
			return nil, err
		}
		if seen[normalized] {
			return nil, newConfigError("archive_path", normalized, "duplicate archive path")
		}
		seen[normalized] = true
		out[i] = InputFile{SourcePath: in.SourcePath, ArchivePath: normalized}
	}
	return out, nil
}

// SafeJoin joins an archive entry's logical path onto destDir, rejecting
// any result that would land outside destDir (a "zip slip" attempt via a
// crafted or corrupted directory entry). Extraction callers such as
// cmd/securearc's extract command must route every entry path through
// this before opening a destination file.
func SafeJoin(destDir, entryPath string) (string, error) {
	normalized, err := normalizeArchivePath(entryPath)
	if err != nil {
		return "", err
	}
	base := path.Clean(destDir)
	joined := path.Join(base, normalized)
	prefix := strings.TrimSuffix(base, "/") + "/"
	if base != "." && joined != base && !strings.HasPrefix(joined, prefix) {
		return "", newConfigError("entry_path", entryPath, "entry path escapes destination directory")
	}
	return joined, nil
}
