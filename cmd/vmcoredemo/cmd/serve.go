package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/losvmkernel/vmcore/internal/diag"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the diagnostics HTTP surface over a System",
	RunE: func(cmd *cobra.Command, args []string) error {
		sys, cfg, err := buildSystem()
		if err != nil {
			return err
		}

		log := slog.New(slog.NewTextHandler(os.Stdout, nil)).With("modulo", "vmcoredemo-serve")
		metrics := diag.NewRegistry()
		sys.SetMetrics(metrics)
		dumper := diag.NewDumper(sys, cfg.DumpPath, log)
		srv := diag.NewServer(sys, metrics, dumper, log)

		fmt.Printf("serving diagnostics on %s\n", cfg.DiagAddr)
		return http.ListenAndServe(cfg.DiagAddr, srv.Handler())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
