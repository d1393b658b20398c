package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mvlc-project/mvlc/pkg/compile"
	"github.com/mvlc-project/mvlc/pkg/mvlc"
	"github.com/mvlc-project/mvlc/pkg/proc"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	dumpIR    bool
	dumpCheck bool
	dumpCtx   bool
	dumpOpt   bool
	dumpAsm   bool
	targetStr string
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mvlc [demo]",
		Short: "mvlc compiles a built-in demo procedure graph to x86-64 assembly",
		Long: `mvlc drives the middle/back-end compiler pipeline — semantic
analysis, optimization, register/stack allocation, and x86-64 code
generation — over a program built directly against the builder API.
There is no lexer or parser: pass the name of one of the built-in
demo programs (run with no arguments to list them).`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				listDemos(out)
				return nil
			}
			return runDemo(args[0], out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().StringVar(&targetStr, "target", "raw", "target platform: raw|linux")
	rootCmd.Flags().BoolVar(&dumpIR, "dump-ir", false, "dump the built instruction list before checking")
	rootCmd.Flags().BoolVar(&dumpCheck, "dump-check", false, "dump reachability/resolution results")
	rootCmd.Flags().BoolVar(&dumpCtx, "dump-ctx", false, "dump each procedure's variable liveness and coloring")
	rootCmd.Flags().BoolVar(&dumpOpt, "dump-opt", false, "dump the instruction list after optimization")
	rootCmd.Flags().BoolVar(&dumpAsm, "dump-asm", false, "dump the generated assembly (default when no other dump flag is set)")

	return rootCmd
}

func listDemos(out io.Writer) {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(out, "available demos:")
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", name)
	}
}

func parseTarget(s string) (mvlc.TargetPlatform, error) {
	switch strings.ToLower(s) {
	case "raw":
		return mvlc.Raw_X86_64, nil
	case "linux":
		return mvlc.Linux_X86_64, nil
	default:
		return 0, fmt.Errorf("mvlc: unknown target %q (want raw or linux)", s)
	}
}

func runDemo(name string, out, errOut io.Writer) error {
	build, ok := demos[name]
	if !ok {
		fmt.Fprintf(errOut, "mvlc: unknown demo %q\n", name)
		listDemos(errOut)
		return fmt.Errorf("mvlc: unknown demo %q", name)
	}

	target, err := parseTarget(targetStr)
	if err != nil {
		return err
	}

	program, err := build(target)
	if err != nil {
		return err
	}

	if dumpIR {
		dumpProgramIR(out, program)
	}

	if err := compile.Check(program); err != nil {
		fmt.Fprintf(errOut, "mvlc: check failed: %v\n", err)
		return err
	}
	if dumpCheck {
		dumpReachability(out, program)
	}
	if dumpCtx {
		dumpContexts(out, program)
	}

	if err := compile.Optimize(program); err != nil {
		fmt.Fprintf(errOut, "mvlc: optimize failed: %v\n", err)
		return err
	}
	if dumpOpt {
		dumpProgramIR(out, program)
	}

	asmText, err := compile.GenerateCode(program)
	if err != nil {
		fmt.Fprintf(errOut, "mvlc: code generation failed: %v\n", err)
		return err
	}

	if dumpAsm || !(dumpIR || dumpCheck || dumpCtx || dumpOpt) {
		io.WriteString(out, asmText)
	}

	return nil
}

func dumpProgramIR(out io.Writer, program *mvlc.Program) {
	for _, pr := range program.Procs {
		fmt.Fprintf(out, "proc %s -> %s\n", pr.Name, pr.ReturnKind)
		for _, node := range pr.Instrs {
			status := ""
			if node.Removed {
				status = " (removed)"
			}
			fmt.Fprintf(out, "  [%d] %#v%s\n", node.Index, node.Instr, status)
		}
	}
}

func dumpReachability(out io.Writer, program *mvlc.Program) {
	for _, pr := range program.Procs {
		fmt.Fprintf(out, "%s: is_used=%t has_callee=%t\n", pr.Name, pr.IsUsed, pr.HasCallee)
	}
}

func dumpContexts(out io.Writer, program *mvlc.Program) {
	for _, pr := range program.Procs {
		ctx := proc.Of(pr)
		fmt.Fprintf(out, "proc %s:\n", pr.Name)
		for _, v := range ctx.Vars {
			fmt.Fprintf(out, "  %s: kind=%s unit=%d range=[%d,%d] ref_target=%t static=%t uses=%d\n",
				v.Name, v.Kind, v.MemUnit, v.BeginIndex, v.EndIndex, v.CanBeRefTarget, v.IsStatic, len(v.Uses))
		}
	}
}
