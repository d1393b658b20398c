package codegen

import (
	"fmt"
	"strings"

	"github.com/mvlc-project/mvlc/pkg/mvlc"
	"github.com/mvlc-project/mvlc/pkg/ops"
	"github.com/mvlc-project/mvlc/pkg/proc"
)

var condJumpMnemonics = map[mvlc.RelOp]string{
	mvlc.Eq: "je",
	mvlc.Ne: "jne",
	mvlc.Gt: "jg",
	mvlc.Lt: "jl",
	mvlc.Ge: "jge",
	mvlc.Le: "jle",
}

// procLabel renders a procedure-qualified label: the procedure's own
// entry point concatenates as "$name", and every label declared inside
// it (including the optimizer's synthetic ".begin"/this package's own
// ".end") concatenates the same way so two procedures can never collide
// on a label name.
func procLabel(procName, label string) string {
	return "$" + procName + label
}

func findOp(table ops.Table, name string, arity int) (ops.Op, int, bool) {
	for i, op := range table.Ops {
		if op.Name == name && op.Arity() == arity {
			return op, i, true
		}
	}
	return ops.Op{}, -1, false
}

// argVarFor returns the *proc.Variable for the i'th Var-kind argument
// among a data.ArgVars list already filtered to only Var arguments by
// BuildContext, consuming one entry per call the way the original
// library walks a parallel arg_vars array.
func argVarFor(data *proc.InstrData, consumed *int, arg mvlc.Arg) *proc.Variable {
	if arg.Kind != mvlc.ArgVar {
		return nil
	}
	if *consumed >= len(data.ArgVars) {
		return nil
	}
	v := data.ArgVars[*consumed]
	*consumed++
	return v
}

// genCallParams loads as many call arguments as fit into the SysV
// integer argument registers (loading only those whose resolved text
// differs from the target register), then pushes the remaining
// arguments right-to-left so the callee sees them in source order on
// the stack, returning the byte count the caller must later reclaim
// from rsp.
func genCallParams(pg *procGen, ctx *proc.Context, args []mvlc.Arg, data *proc.InstrData) (uint32, error) {
	var paramsCount [mvlc.KindCount]int
	paramsVarsConsumed := 0
	var offset uint32

	for _, arg := range args {
		kind, err := proc.GetArgKind(ctx, arg)
		if err != nil {
			return 0, err
		}
		regs := paramRegsForKind(kind)

		argVar := argVarFor(data, &paramsVarsConsumed, arg)
		if paramsCount[kind] >= len(regs) {
			paramsCount[kind]++
			continue
		}
		regName := regs[paramsCount[kind]]
		paramsCount[kind]++

		argStr, err := argToStr(pg, arg, argVar)
		if err != nil {
			return 0, err
		}

		if regName != argStr {
			pg.sb.WriteString("  mov ")
			pg.sb.WriteString(regName)
			pg.sb.WriteByte(',')
			pg.sb.WriteString(argStr)
			pg.sb.WriteByte('\n')
		}
	}

	for i := len(args); i > 0; i-- {
		arg := args[i-1]
		kind, err := proc.GetArgKind(ctx, arg)
		if err != nil {
			return 0, err
		}
		regs := paramRegsForKind(kind)

		if paramsCount[kind] <= len(regs) {
			break
		}
		paramsCount[kind]--

		var argVar *proc.Variable
		if arg.Kind == mvlc.ArgVar {
			paramsVarsConsumed--
			if paramsVarsConsumed >= 0 && paramsVarsConsumed < len(data.ArgVars) {
				argVar = data.ArgVars[paramsVarsConsumed]
			}
		}
		argStr, err := argToStr(pg, arg, argVar)
		if err != nil {
			return 0, err
		}

		pg.sb.WriteString("  push ")
		pg.sb.WriteString(argStr)
		pg.sb.WriteByte('\n')

		offset += kind.Size()
	}

	return offset, nil
}

// genProcBody lowers every live (non-removed) instruction of procedure
// into pg.sb, in order, using table to resolve Op names to their
// generator callbacks.
func genProcBody(pg *procGen, table ops.Table, ctx *proc.Context, procedure *mvlc.Procedure) error {
	for i, node := range procedure.Instrs {
		if node.Removed {
			continue
		}

		switch instr := node.Instr.(type) {
		case mvlc.OpInstr:
			data, _ := ctx.InstrData(node)
			if data != nil && data.DestVar != nil && len(data.DestVar.Uses) == 0 {
				continue
			}

			_, idx, found := findOp(table, instr.Name, len(instr.Args))
			if !found {
				return fmt.Errorf("codegen: no such operation %q was found for current platform", instr.Name)
			}

			args := make([]string, len(instr.Args))
			varIndex := 0
			for j, arg := range instr.Args {
				var argVar *proc.Variable
				if arg.Kind == mvlc.ArgVar && data != nil && varIndex < len(data.ArgVars) {
					argVar = data.ArgVars[varIndex]
					varIndex++
				}
				argStr, err := argToStr(pg, arg, argVar)
				if err != nil {
					return err
				}
				args[j] = argStr
			}

			var destLoc ops.Loc
			if data != nil && data.DestVar != nil {
				var err error
				destLoc, err = getVarLoc(pg, data.DestVar, true)
				if err != nil {
					return err
				}
			}

			table.GenFuncs[idx](&pg.sb, destLoc, args)

		case mvlc.CallInstr:
			data, _ := ctx.InstrData(node)
			offset, err := genCallParams(pg, ctx, instr.Args, data)
			if err != nil {
				return err
			}

			pg.sb.WriteString("  call ")
			pg.sb.WriteString(procLabel(instr.Callee, ""))
			pg.sb.WriteByte('\n')

			if offset > 0 {
				pg.sb.WriteString("  add rsp,")
				fmt.Fprintf(&pg.sb, "%d", offset)
				pg.sb.WriteByte('\n')
			}

		case mvlc.CallAssignInstr:
			data, _ := ctx.InstrData(node)
			offset, err := genCallParams(pg, ctx, instr.Args, data)
			if err != nil {
				return err
			}

			pg.sb.WriteString("  call ")
			pg.sb.WriteString(procLabel(instr.Callee, ""))
			pg.sb.WriteByte('\n')

			if offset > 0 {
				pg.sb.WriteString("  add rsp,")
				fmt.Fprintf(&pg.sb, "%d", offset)
				pg.sb.WriteByte('\n')
			}

			if data != nil && data.DestVar != nil && len(data.DestVar.Uses) > 0 {
				destLoc, err := getVarLoc(pg, data.DestVar, true)
				if err != nil {
					return err
				}
				pg.sb.WriteString("  mov ")
				pg.sb.WriteString(destLoc.Str)
				pg.sb.WriteString(",rax\n")
			}

		case mvlc.ReturnInstr:
			if procedure.ReturnKind != mvlc.KindUnit {
				return fmt.Errorf("codegen: procedure %q: wrong return value kind", procedure.Name)
			}
			if i < len(procedure.Instrs)-1 {
				pg.foundReturn = true
				pg.sb.WriteString("  jmp ")
				pg.sb.WriteString(procLabel(procedure.Name, ".end"))
				pg.sb.WriteByte('\n')
			}

		case mvlc.ReturnValueInstr:
			retKind, err := proc.GetArgKind(ctx, instr.Arg)
			if err != nil {
				return err
			}
			if procedure.ReturnKind != retKind {
				return fmt.Errorf("codegen: procedure %q: wrong return value kind", procedure.Name)
			}

			var argVar *proc.Variable
			if instr.Arg.Kind == mvlc.ArgVar {
				data, _ := ctx.InstrData(node)
				if data != nil && len(data.ArgVars) > 0 {
					argVar = data.ArgVars[0]
				}
			}
			argStr, err := argToStr(pg, instr.Arg, argVar)
			if err != nil {
				return err
			}

			pg.sb.WriteString("  mov rax,")
			pg.sb.WriteString(argStr)
			pg.sb.WriteByte('\n')

			if i < len(procedure.Instrs)-1 {
				pg.foundReturn = true
				pg.sb.WriteString("  jmp ")
				pg.sb.WriteString(procLabel(procedure.Name, ".end"))
				pg.sb.WriteByte('\n')
			}

		case mvlc.JumpInstr:
			pg.sb.WriteString("  jmp ")
			pg.sb.WriteString(procLabel(procedure.Name, instr.Label))
			pg.sb.WriteByte('\n')

		case mvlc.CondJumpInstr:
			data, _ := ctx.InstrData(node)
			var arg0Var, arg1Var *proc.Variable
			consumed := 0
			if instr.Arg0.Kind == mvlc.ArgVar && data != nil {
				arg0Var = argVarFor(data, &consumed, instr.Arg0)
			}
			if instr.Arg1.Kind == mvlc.ArgVar && data != nil {
				arg1Var = argVarFor(data, &consumed, instr.Arg1)
			}
			arg0, err := argToStr(pg, instr.Arg0, arg0Var)
			if err != nil {
				return err
			}
			arg1, err := argToStr(pg, instr.Arg1, arg1Var)
			if err != nil {
				return err
			}

			if arg0Var != nil && arg1Var != nil {
				loc0, err := getVarLoc(pg, arg0Var, false)
				if err != nil {
					return err
				}
				loc1, err := getVarLoc(pg, arg1Var, false)
				if err != nil {
					return err
				}
				if loc0.Kind == ops.LocKindStack && loc1.Kind == ops.LocKindStack {
					pg.sb.WriteString("  mov rax,")
					pg.sb.WriteString(arg0)
					pg.sb.WriteByte('\n')
					arg0 = "rax"
				}
			}

			pg.sb.WriteString("  cmp ")
			pg.sb.WriteString(arg0)
			pg.sb.WriteByte(',')
			pg.sb.WriteString(arg1)
			pg.sb.WriteString("\n  ")
			pg.sb.WriteString(condJumpMnemonics[instr.Op])
			pg.sb.WriteByte(' ')
			pg.sb.WriteString(procLabel(procedure.Name, instr.Label))
			pg.sb.WriteByte('\n')

		case mvlc.LabelInstr:
			pg.sb.WriteString(" ")
			pg.sb.WriteString(procLabel(procedure.Name, instr.Name))
			pg.sb.WriteString(":\n")
			pg.labelsCount++

		case mvlc.AllocInstr:
			data, _ := ctx.InstrData(node)
			if data == nil || data.DestVar == nil {
				return fmt.Errorf("codegen: alloc instruction has no destination variable")
			}
			destLoc, err := getVarLoc(pg, data.DestVar, true)
			if err != nil {
				return err
			}
			offset := pg.stack.alloc(instr.Size, data.DestVar.BeginIndex, noEnd)

			pg.sb.WriteString("  lea ")
			pg.sb.WriteString(destLoc.Str)
			pg.sb.WriteString(",[rbp-")
			fmt.Fprintf(&pg.sb, "%d", offset)
			pg.sb.WriteString("]\n")

		default:
			return fmt.Errorf("codegen: wrong instruction kind %T", instr)
		}
	}

	return nil
}

// GenerateProcedure lowers one already-checked, already-optimized
// procedure to its complete assembly text: the prologue (callee-saved
// register pushes, frame setup), the lowered body, the synthetic `.end`
// label if any non-final return needed one, and the epilogue (frame
// teardown, register pops, ret).
func GenerateProcedure(table ops.Table, procedure *mvlc.Procedure) (string, error) {
	ctx := proc.Of(procedure)

	pg := &procGen{}
	setVarLocs(pg, ctx)

	if err := genProcBody(pg, table, ctx, procedure); err != nil {
		return "", err
	}

	var out strings.Builder
	out.WriteString(procLabel(procedure.Name, ""))
	out.WriteString(":\n")

	for kind := mvlc.Kind(0); kind < mvlc.KindCount; kind++ {
		regs := regsForKind(kind)
		max := pg.maxUnitsUsed[kind]
		if max > len(regs) {
			max = len(regs)
		}
		for k := 0; k < max; k++ {
			out.WriteString("  push ")
			out.WriteString(regs[k])
			out.WriteByte('\n')
		}
	}

	if pg.stack.maxSize > 0 {
		out.WriteString("  push rbp\n")
		out.WriteString("  mov rbp,rsp\n")
		out.WriteString("  sub rsp,")
		fmt.Fprintf(&out, "%d", pg.stack.maxSize)
		out.WriteByte('\n')
	}

	out.WriteString(pg.sb.String())

	if pg.foundReturn {
		out.WriteString(" ")
		out.WriteString(procLabel(procedure.Name, ".end"))
		out.WriteString(":\n")
	}

	if pg.stack.maxSize > 0 {
		out.WriteString("  leave\n")
	}

	for kind := mvlc.KindCount - 1; kind >= 0; kind-- {
		regs := regsForKind(kind)
		max := pg.maxUnitsUsed[kind]
		if max > len(regs) {
			max = len(regs)
		}
		for k := max - 1; k >= 0; k-- {
			out.WriteString("  pop ")
			out.WriteString(regs[k])
			out.WriteByte('\n')
		}
	}

	out.WriteString("  ret\n")

	return out.String(), nil
}
