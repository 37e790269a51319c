package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kharonsec/securearc"
)

var listPassword string

var listCmd = &cobra.Command{
	Use:   "list <archive.sarc>",
	Short: "Unlock an archive and print its file entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := securearc.Open(args[0])
		if err != nil {
			return err
		}
		defer h.Close()

		if err := h.Unlock([]byte(listPassword)); err != nil {
			return err
		}
		entries, err := h.List()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%10d  %s  %s\n", e.OriginalSize, time.Unix(e.ModTime, 0).Format(time.RFC3339), e.Path)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listPassword, "password", "", "unlock password (required)")
	listCmd.MarkFlagRequired("password")
}
