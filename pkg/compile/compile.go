// Package compile sequences the pipeline stages that pkg/mvlc's builder
// API, pkg/check, pkg/proc, pkg/optimize, and pkg/codegen each implement
// in isolation, mirroring the original library's program_check /
// program_optimize / program_gen_code entry points.
package compile

import (
	"fmt"

	"github.com/mvlc-project/mvlc/pkg/check"
	"github.com/mvlc-project/mvlc/pkg/codegen"
	"github.com/mvlc-project/mvlc/pkg/mvlc"
	"github.com/mvlc-project/mvlc/pkg/ops"
	"github.com/mvlc-project/mvlc/pkg/optimize"
	"github.com/mvlc-project/mvlc/pkg/proc"
)

var zeroLayers [mvlc.KindCount]int

// Check resolves symbols, marks reachability, builds every procedure's
// semantic context, and type-checks the program, in that order. A
// program must pass Check before Optimize or GenerateCode are called on
// it.
func Check(program *mvlc.Program) error {
	if err := check.Resolve(program); err != nil {
		return err
	}

	table, err := ops.ForTarget(program.Target)
	if err != nil {
		return err
	}

	for _, pr := range program.Procs {
		ctx, err := proc.BuildContext(pr, table, program.Statics, zeroLayers)
		if err != nil {
			return fmt.Errorf("compile: procedure %q: %w", pr.Name, err)
		}
		pr.Ctx = ctx
	}

	return check.TypeCheck(program)
}

// Optimize runs the three optimization passes over every procedure, in
// the order tail-recursion folding, argument inlining, dead-store
// removal. Call after Check; each procedure must already carry a built
// Context.
func Optimize(program *mvlc.Program) error {
	table, err := ops.ForTarget(program.Target)
	if err != nil {
		return err
	}

	for _, pr := range program.Procs {
		ctx := proc.Of(pr)

		optimize.TailRecursion(pr)
		if err := optimize.InlineArgs(pr, ctx, table); err != nil {
			return fmt.Errorf("compile: procedure %q: %w", pr.Name, err)
		}
		optimize.RemoveUnusedVarDefs(pr, ctx, table)
	}

	return nil
}

// GenerateCode lowers program to its final assembly text. Call after
// Check (and, conventionally, Optimize).
func GenerateCode(program *mvlc.Program) (string, error) {
	return codegen.GenerateProgram(program)
}

// Compile runs Check, Optimize, and GenerateCode in sequence, the
// pipeline's default end-to-end entry point.
func Compile(program *mvlc.Program) (string, error) {
	if err := Check(program); err != nil {
		return "", err
	}
	if err := Optimize(program); err != nil {
		return "", err
	}
	return GenerateCode(program)
}
