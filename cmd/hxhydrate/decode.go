package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm/hxhydrate"
)

func newDecodeCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "decode <snapshot|->",
		Short: "Print an encoded snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			enc, err := hxhydrate.NewEncoder([]byte(cfg.Snapshot.Key))
			if err != nil {
				return err
			}
			snap, err := hxhydrate.DecodeSnapshot(enc, strings.TrimSpace(raw), cfg.Snapshot.Sensitive)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				e := json.NewEncoder(out)
				e.SetIndent("", "  ")
				return e.Encode(snap)
			}
			renderSnapshot(out, snap)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of tables")
	return cmd
}

func readInput(stdin io.Reader, name string) (string, error) {
	if name == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(name)
	return string(b), err
}
