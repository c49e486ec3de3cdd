package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/losvmkernel/vmcore"
	"github.com/losvmkernel/vmcore/internal/pagetable"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive a scripted workload through a System",
	RunE: func(cmd *cobra.Command, args []string) error {
		sys, _, err := buildSystem()
		if err != nil {
			return err
		}

		pid, err := sys.CreateProcess()
		if err != nil {
			return err
		}
		fmt.Printf("created process %d\n", pid)

		const startVA = 0x1000
		if status, err := sys.CreateSegment(pid, startVA, 2, pagetable.ReadWrite); err != nil || status != vmcore.OK {
			return fmt.Errorf("create segment: status=%v err=%v", status, err)
		}

		status, err := sys.Access(pid, startVA, pagetable.Read)
		if err != nil {
			return err
		}
		fmt.Printf("first access: %v\n", status)

		if status == vmcore.PageFault {
			if status, err = sys.PageFault(pid, startVA); err != nil || status != vmcore.OK {
				return fmt.Errorf("page fault: status=%v err=%v", status, err)
			}
		}

		status, err = sys.Access(pid, startVA, pagetable.Read)
		if err != nil {
			return err
		}
		fmt.Printf("second access: %v\n", status)

		if addr, ok, err := sys.GetPhysicalAddress(pid, startVA); err == nil && ok {
			fmt.Printf("physical address: 0x%x\n", addr)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
