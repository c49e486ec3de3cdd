// Command vmcoredemo drives a vmcore.System end to end for manual
// testing: creating processes, loading segments, faulting pages, and
// serving the diagnostics HTTP surface. It is not a hosting program in
// the sense the core excludes — it never shims a kernel integration,
// it only exercises the public API the way a test harness would.
package main

import (
	"fmt"
	"os"

	"github.com/losvmkernel/vmcore/cmd/vmcoredemo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
