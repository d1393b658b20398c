package optimize

import (
	"github.com/mvlc-project/mvlc/pkg/mvlc"
	"github.com/mvlc-project/mvlc/pkg/ops"
	"github.com/mvlc-project/mvlc/pkg/proc"
)

func findOp(table ops.Table, name string, arity int) (ops.Op, bool) {
	for _, op := range table.Ops {
		if op.Name == name && op.Arity() == arity {
			return op, true
		}
	}
	return ops.Op{}, false
}

func opCanBeInlined(op ops.Op) bool {
	return op.Arity() == 1 && op.CanBeInlined && op.Args[0].Cond == ops.ArgConditionAny
}

// getLastVarDef walks backward from instrs[beforeIndex] looking for the
// most recent instruction defining varName and returns it if it is an Op.
// It fails when that definition is a CallAssign or Alloc, and at a
// Label, since labels are join points where the reaching definition is
// ambiguous.
func getLastVarDef(instrs []*mvlc.Node, beforeIndex int, varName string) (*mvlc.Node, int, bool) {
	for j := beforeIndex - 1; j >= 0; j-- {
		node := instrs[j]
		if op, ok := node.Instr.(mvlc.OpInstr); ok && op.Dest == varName {
			return node, j, true
		}
		if call, ok := node.Instr.(mvlc.CallAssignInstr); ok && call.Dest == varName {
			return nil, 0, false
		}
		if alloc, ok := node.Instr.(mvlc.AllocInstr); ok && alloc.Dest == varName {
			return nil, 0, false
		}
		if _, ok := node.Instr.(mvlc.LabelInstr); ok {
			return nil, 0, false
		}
	}
	return nil, 0, false
}

// InlineArgs walks a procedure's instructions backwards, replacing each
// Any-condition Var argument with the literal value of its single
// inlineable upstream definition, when one exists. The definer's use
// count is decremented rather than deleting the definition outright,
// leaving it for RemoveUnusedVarDefs to mark dead if no other use
// remains.
func InlineArgs(procedure *mvlc.Procedure, ctx *proc.Context, table ops.Table) error {
	instrs := procedure.Instrs

	for i := len(instrs) - 1; i >= 0; i-- {
		node := instrs[i]
		op, ok := node.Instr.(mvlc.OpInstr)
		if !ok {
			continue
		}

		opDesc, found := findOp(table, op.Name, len(op.Args))
		if !found {
			continue
		}

		changed := false
		for argIdx := range op.Args {
			if argIdx >= len(opDesc.Args) || opDesc.Args[argIdx].Cond != ops.ArgConditionAny {
				continue
			}
			arg := op.Args[argIdx]
			if arg.Kind != mvlc.ArgVar {
				continue
			}

			lastDef, lastDefIdx, found := getLastVarDef(instrs, i, arg.Var)
			if !found {
				continue
			}

			lastDefOp := lastDef.Instr.(mvlc.OpInstr)
			lastDefDesc, found := findOp(table, lastDefOp.Name, len(lastDefOp.Args))
			if !found || !opCanBeInlined(lastDefDesc) {
				continue
			}

			lastDefArg := lastDefOp.Args[0]
			if lastDefArg.Kind == mvlc.ArgVar {
				continue
			}

			op.Args[argIdx] = lastDefArg
			changed = true

			data, ok := ctx.InstrData(instrs[lastDefIdx])
			if ok && data.DestVar != nil && len(data.DestVar.Uses) > 0 {
				data.DestVar.Uses = data.DestVar.Uses[:len(data.DestVar.Uses)-1]
			}
		}

		if changed {
			node.Instr = op
		}
	}

	return nil
}
