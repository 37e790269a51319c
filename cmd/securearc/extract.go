package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kharonsec/securearc"
)

var (
	extractPassword string
	extractDestDir  string
)

var extractCmd = &cobra.Command{
	Use:   "extract <archive.sarc>",
	Short: "Unlock an archive and extract its files to a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := securearc.Open(args[0])
		if err != nil {
			return err
		}
		defer h.Close()

		if err := h.Unlock([]byte(extractPassword)); err != nil {
			return err
		}
		entries, err := h.List()
		if err != nil {
			return err
		}

		progress := progressLogger()
		for _, e := range entries {
			destPath, err := securearc.SafeJoin(extractDestDir, e.Path)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
			if err != nil {
				return err
			}
			err = h.Extract(e, out, progress)
			closeErr := out.Close()
			if err != nil {
				return err
			}
			if closeErr != nil {
				return closeErr
			}
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractPassword, "password", "", "unlock password (required)")
	extractCmd.Flags().StringVar(&extractDestDir, "dest", ".", "destination directory")
	extractCmd.MarkFlagRequired("password")
}
