package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kharonsec/securearc"
)

var infoCmd = &cobra.Command{
	Use:   "info <archive.sarc>",
	Short: "Print an archive's password-free public state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := securearc.Open(args[0])
		if err != nil {
			return err
		}
		defer h.Close()

		info := h.Inspect()
		fmt.Printf("max_attempts:     %d\n", info.MaxAttempts)
		fmt.Printf("current_attempts: %d\n", info.CurrentAttempts)
		fmt.Printf("remaining:        %d\n", info.Remaining)
		fmt.Printf("destroyed:        %t\n", info.Destroyed)
		if info.FileCount != nil {
			fmt.Printf("file_count:       %d\n", *info.FileCount)
		}
		return nil
	},
}
