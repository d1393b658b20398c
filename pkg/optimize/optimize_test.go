package optimize

import (
	"testing"

	"github.com/mvlc-project/mvlc/pkg/check"
	"github.com/mvlc-project/mvlc/pkg/mvlc"
	"github.com/mvlc-project/mvlc/pkg/ops"
	"github.com/mvlc-project/mvlc/pkg/proc"
)

var zeroLayers [mvlc.KindCount]int

func buildChecked(t *testing.T, p *mvlc.Program) {
	t.Helper()
	if err := check.Resolve(p); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	table, err := ops.ForTarget(p.Target)
	if err != nil {
		t.Fatalf("ForTarget: %v", err)
	}
	for _, pr := range p.Procs {
		ctx, err := proc.BuildContext(pr, table, p.Statics, zeroLayers)
		if err != nil {
			t.Fatalf("BuildContext(%s): %v", pr.Name, err)
		}
		pr.Ctx = ctx
	}
	if err := check.TypeCheck(p); err != nil {
		t.Fatalf("TypeCheck: %v", err)
	}
}

func TestTailRecursionRewritesSelfCall(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	sum, _ := p.PushProc("sum", []mvlc.Param{{Name: "n", Kind: mvlc.KindS64}, {Name: "acc", Kind: mvlc.KindS64}}, mvlc.KindS64)
	sum.PushCondJump(mvlc.Eq, mvlc.VarArg("n"), mvlc.ValueArg(mvlc.S64Value(0)), "done")
	sum.PushOp("add", "acc", mvlc.VarArg("acc"), mvlc.VarArg("n"))
	sum.PushOp("sub", "n", mvlc.VarArg("n"), mvlc.ValueArg(mvlc.S64Value(1)))
	sum.PushCallAssign("acc", "sum", mvlc.VarArg("n"), mvlc.VarArg("acc"))
	sum.PushReturnValue(mvlc.VarArg("acc"))
	sum.PushLabel("done")
	sum.PushReturnValue(mvlc.VarArg("acc"))

	buildChecked(t, p)

	TailRecursion(sum)

	for _, node := range sum.Instrs {
		if call, ok := node.Instr.(mvlc.CallAssignInstr); ok && call.Callee == "sum" {
			t.Errorf("self-recursive CallAssign survived tail-recursion pass: %+v", call)
		}
	}

	foundBeginLabel := false
	foundJump := false
	for _, node := range sum.Instrs {
		if label, ok := node.Instr.(mvlc.LabelInstr); ok && label.Name == ".begin" {
			foundBeginLabel = true
		}
		if jump, ok := node.Instr.(mvlc.JumpInstr); ok && jump.Label == ".begin" {
			foundJump = true
		}
	}
	if !foundBeginLabel {
		t.Errorf("no .begin label inserted")
	}
	if !foundJump {
		t.Errorf("no jump to .begin inserted")
	}
}

func TestInlineArgsConstantFold(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	f, _ := p.PushProc("f", nil, mvlc.KindS64)
	f.PushOp("put", "a", mvlc.ValueArg(mvlc.S64Value(3)))
	f.PushOp("put", "b", mvlc.ValueArg(mvlc.S64Value(4)))
	f.PushOp("add", "c", mvlc.VarArg("a"), mvlc.VarArg("b"))
	f.PushReturnValue(mvlc.VarArg("c"))

	buildChecked(t, p)

	table, _ := ops.ForTarget(p.Target)
	ctx := proc.Of(f)
	if err := InlineArgs(f, ctx, table); err != nil {
		t.Fatalf("InlineArgs: %v", err)
	}

	addNode := f.Instrs[2]
	addInstr := addNode.Instr.(mvlc.OpInstr)
	if addInstr.Args[0].Kind != mvlc.ArgValue || addInstr.Args[0].Value.S64 != 3 {
		t.Errorf("args[0] = %+v, want literal 3", addInstr.Args[0])
	}
	if addInstr.Args[1].Kind != mvlc.ArgValue || addInstr.Args[1].Value.S64 != 4 {
		t.Errorf("args[1] = %+v, want literal 4", addInstr.Args[1])
	}

	RemoveUnusedVarDefs(f, ctx, table)
	if !f.Instrs[0].Removed {
		t.Errorf("def of a should be removed after inlining")
	}
	if !f.Instrs[1].Removed {
		t.Errorf("def of b should be removed after inlining")
	}
}

func TestRemoveUnusedVarDefsKeepsAlloc(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	f, _ := p.PushProc("f", nil, mvlc.KindUnit)
	f.PushAlloc("p", 8)
	f.PushOp("deref_put", "", mvlc.VarArg("p"), mvlc.ValueArg(mvlc.S64Value(42)))
	f.PushReturn()

	buildChecked(t, p)
	table, _ := ops.ForTarget(p.Target)
	ctx := proc.Of(f)
	RemoveUnusedVarDefs(f, ctx, table)

	if f.Instrs[0].Removed {
		t.Errorf("alloc instruction should never be removed by DSE (not an Op)")
	}
}
