package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/losvmkernel/vmcore"
	"github.com/losvmkernel/vmcore/internal/diag"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [pid]",
	Short: "Force a memory dump for a process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pidN, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid pid %q: %w", args[0], err)
		}

		sys, cfg, err := buildSystem()
		if err != nil {
			return err
		}

		log := slog.New(slog.NewTextHandler(os.Stdout, nil)).With("modulo", "vmcoredemo-dump")
		dumper := diag.NewDumper(sys, cfg.DumpPath, log)

		path, err := dumper.Dump(vmcore.PID(pidN))
		if err != nil {
			return err
		}
		fmt.Printf("dump written to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
