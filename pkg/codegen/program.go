package codegen

import (
	"fmt"
	"strings"

	"github.com/mvlc-project/mvlc/pkg/mvlc"
	"github.com/mvlc-project/mvlc/pkg/ops"
)

// GenerateProgram lowers every reachable procedure of program (per
// pkg/check's IsUsed marking) to assembly text, in declaration order,
// wrapped with the target's entry trampoline and trailed by a .data
// section holding every static segment. Every procedure must already
// carry a built Context (pkg/proc.BuildContext) and, conventionally,
// have already run through pkg/optimize's passes.
func GenerateProgram(program *mvlc.Program) (string, error) {
	table, err := ops.ForTarget(program.Target)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	writeProgramWrap(&out, program)

	for _, procedure := range program.Procs {
		if !procedure.IsUsed {
			continue
		}
		text, err := GenerateProcedure(table, procedure)
		if err != nil {
			return "", fmt.Errorf("codegen: procedure %q: %w", procedure.Name, err)
		}
		out.WriteString(text)
	}

	writeStaticData(&out, program)

	return out.String(), nil
}

// writeProgramWrap emits the platform entry point. Raw_X86_64 has none:
// the caller is responsible for arranging its own entry into the first
// procedure. Linux_X86_64 prepends a `_start` that forwards the kernel-
// supplied argc/argv into the SysV integer argument registers, calls
// the first declared procedure, and exits with its return value (or 0
// for a Unit-returning or empty program).
func writeProgramWrap(out *strings.Builder, program *mvlc.Program) {
	if program.Target != mvlc.Linux_X86_64 {
		return
	}

	out.WriteString("global _start\n")
	out.WriteString("section .text\n")
	out.WriteString("_start:\n")

	if len(program.Procs) > 0 {
		out.WriteString("  mov rdi,qword[rsp]\n")
		out.WriteString("  lea rsi,qword[rsp+8]\n")
		out.WriteString("  call ")
		out.WriteString(procLabel(program.Procs[0].Name, ""))
		out.WriteString("\n  mov rdi,rax\n")
	}

	if len(program.Procs) == 0 || program.Procs[0].ReturnKind == mvlc.KindUnit {
		out.WriteString("  mov rdi,0\n")
	}

	out.WriteString("  mov rax,60\n")
	out.WriteString("  syscall\n")
}

// writeStaticData emits the .data section, one `name: db b0,b1,...` line
// per static segment in declaration order. Omitted entirely when the
// program declares no statics.
func writeStaticData(out *strings.Builder, program *mvlc.Program) {
	if len(program.Statics) == 0 {
		return
	}

	out.WriteString("section .data\n")
	for _, seg := range program.Statics {
		out.WriteString(seg.Name)
		out.WriteString(": db ")
		for i, b := range seg.Bytes {
			if i > 0 {
				out.WriteByte(',')
			}
			fmt.Fprintf(out, "%d", b)
		}
		out.WriteByte('\n')
	}
}
