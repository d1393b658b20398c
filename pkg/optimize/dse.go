package optimize

import (
	"github.com/mvlc-project/mvlc/pkg/mvlc"
	"github.com/mvlc-project/mvlc/pkg/ops"
	"github.com/mvlc-project/mvlc/pkg/proc"
)

// RemoveUnusedVarDefs marks every Op instruction whose destination
// variable has no remaining uses, and whose argument slots all accept
// Any (so no operand is a ref/deref side effect that must still run),
// as removed. Removed instructions stay linked in the instruction list;
// later stages skip them by checking Removed rather than unlinking. Only
// Op instructions are reconsidered — other kinds may already have been
// marked removed by an earlier pass (tail-recursion folding a trailing
// return), and that verdict is left alone here.
func RemoveUnusedVarDefs(procedure *mvlc.Procedure, ctx *proc.Context, table ops.Table) {
	for _, node := range procedure.Instrs {
		if _, ok := node.Instr.(mvlc.OpInstr); !ok {
			continue
		}
		data, _ := ctx.InstrData(node)
		node.Removed = canBeDeleted(node, data, table)
	}
}

func canBeDeleted(node *mvlc.Node, data *proc.InstrData, table ops.Table) bool {
	op := node.Instr.(mvlc.OpInstr)
	if data == nil || data.DestVar == nil || len(data.DestVar.Uses) > 0 {
		return false
	}

	opDesc, found := findOp(table, op.Name, len(op.Args))
	if !found {
		return false
	}
	for _, a := range opDesc.Args {
		if a.Cond != ops.ArgConditionAny {
			return false
		}
	}
	return true
}
