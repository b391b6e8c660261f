// Command mini is the Mini compiler's CLI entry point: flags select the
// optional passes and target, the last argument names the source file
// (§6). Built on cobra/pflag, the CLI stack the example pack's own
// raymyers-ralph-cc-go compiler pulls in for exactly this job.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"module/internal/driver"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts driver.Options

	cmd := &cobra.Command{
		Use:           "mini [flags] <file>",
		Short:         "Compile a Mini source file to LLVM IR or AArch64 assembly",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := driver.Run(args[0], opts)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			fmt.Println(out)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.EmitOnly, "emit", "S", false, "emit target-language text only, don't invoke clang")
	flags.BoolVar(&opts.Tail, "tail", false, "rewrite self tail calls into a loop")
	flags.BoolVar(&opts.Arm, "arm", false, "print AArch64 assembly instead of LLVM IR")
	flags.BoolVar(&opts.SSA, "ssa", false, "construct SSA form")
	flags.BoolVar(&opts.SSCP, "sscp", false, "run sparse simple constant propagation (requires --ssa)")
	flags.BoolVar(&opts.Unused, "unused", false, "run unused-result elimination (requires --ssa)")
	flags.BoolVar(&opts.Dbg, "dbg", false, "trace lowering and optimization decisions to stderr")

	return cmd
}
