package codegen

import (
	"strings"
	"testing"

	"github.com/mvlc-project/mvlc/pkg/check"
	"github.com/mvlc-project/mvlc/pkg/mvlc"
	"github.com/mvlc-project/mvlc/pkg/ops"
	"github.com/mvlc-project/mvlc/pkg/optimize"
	"github.com/mvlc-project/mvlc/pkg/proc"
)

var zeroLayers [mvlc.KindCount]int

// build runs a program through Resolve, BuildContext, TypeCheck and the
// three optimizer passes, mirroring the pipeline's compile sequencing
// ahead of code generation.
func build(t *testing.T, p *mvlc.Program) ops.Table {
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
	for _, pr := range p.Procs {
		ctx := proc.Of(pr)
		optimize.TailRecursion(pr)
		if err := optimize.InlineArgs(pr, ctx, table); err != nil {
			t.Fatalf("InlineArgs(%s): %v", pr.Name, err)
		}
		optimize.RemoveUnusedVarDefs(pr, ctx, table)
	}
	return table
}

func TestGenerateProgramEmptyLinux(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Linux_X86_64)
	build(t, p)

	out, err := GenerateProgram(p)
	if err != nil {
		t.Fatalf("GenerateProgram: %v", err)
	}

	if !strings.Contains(out, "_start:") {
		t.Errorf("output missing _start:\n%s", out)
	}
	if !strings.Contains(out, "mov rdi,0") {
		t.Errorf("output missing `mov rdi,0`\n%s", out)
	}
	if !strings.Contains(out, "mov rax,60") || !strings.Contains(out, "syscall") {
		t.Errorf("output missing exit syscall\n%s", out)
	}
}

func TestGenerateProgramIdentityProcedure(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	id, _ := p.PushProc("id", []mvlc.Param{{Name: "x", Kind: mvlc.KindS64}}, mvlc.KindS64)
	id.PushReturnValue(mvlc.VarArg("x"))

	build(t, p)

	out, err := GenerateProgram(p)
	if err != nil {
		t.Fatalf("GenerateProgram: %v", err)
	}

	if !strings.Contains(out, "$id:\n  mov rax,rdi\n  ret\n") {
		t.Errorf("expected a prologue-free identity body, got:\n%s", out)
	}
	if strings.Contains(out, "push rbp") {
		t.Errorf("leaf procedure with no stack use should have no frame setup:\n%s", out)
	}
}

func TestGenerateProgramTailRecursiveSum(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	sum, _ := p.PushProc("sum", []mvlc.Param{{Name: "n", Kind: mvlc.KindS64}, {Name: "acc", Kind: mvlc.KindS64}}, mvlc.KindS64)
	sum.PushCondJump(mvlc.Eq, mvlc.VarArg("n"), mvlc.ValueArg(mvlc.S64Value(0)), "done")
	sum.PushOp("add", "acc", mvlc.VarArg("acc"), mvlc.VarArg("n"))
	sum.PushOp("sub", "n", mvlc.VarArg("n"), mvlc.ValueArg(mvlc.S64Value(1)))
	sum.PushCallAssign("acc", "sum", mvlc.VarArg("n"), mvlc.VarArg("acc"))
	sum.PushReturnValue(mvlc.VarArg("acc"))
	sum.PushLabel("done")
	sum.PushReturnValue(mvlc.VarArg("acc"))

	build(t, p)

	out, err := GenerateProgram(p)
	if err != nil {
		t.Fatalf("GenerateProgram: %v", err)
	}

	if strings.Contains(out, "call $sum") {
		t.Errorf("tail call to sum should have been rewritten to a jump:\n%s", out)
	}
	if !strings.Contains(out, "jmp $sum.begin") {
		t.Errorf("expected jmp $sum.begin, got:\n%s", out)
	}
	if !strings.Contains(out, " $sum.begin:\n") {
		t.Errorf("expected the $sum.begin label declaration, got:\n%s", out)
	}
}

func TestGenerateProgramConstantFoldViaInlining(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	f, _ := p.PushProc("f", nil, mvlc.KindS64)
	f.PushOp("put", "a", mvlc.ValueArg(mvlc.S64Value(3)))
	f.PushOp("put", "b", mvlc.ValueArg(mvlc.S64Value(4)))
	f.PushOp("add", "c", mvlc.VarArg("a"), mvlc.VarArg("b"))
	f.PushReturnValue(mvlc.VarArg("c"))

	build(t, p)

	out, err := GenerateProgram(p)
	if err != nil {
		t.Fatalf("GenerateProgram: %v", err)
	}

	if !strings.Contains(out, "add rbx,4") {
		t.Errorf("expected the folded constants to reach a single add, got:\n%s", out)
	}
	if n := strings.Count(out, "mov rbx,3"); n != 1 {
		t.Errorf("expected exactly one staging mov for the surviving add (dead defs of a/b should not have been emitted), got %d in:\n%s", n, out)
	}
}

func TestGenerateProgramRefDerefRoundTrip(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	f, _ := p.PushProc("f", nil, mvlc.KindS64)
	f.PushAlloc("p", 8)
	f.PushOp("deref_put", "", mvlc.VarArg("p"), mvlc.ValueArg(mvlc.S64Value(42)))
	f.PushOp("deref", "x", mvlc.VarArg("p"))
	f.PushReturnValue(mvlc.VarArg("x"))

	build(t, p)

	out, err := GenerateProgram(p)
	if err != nil {
		t.Fatalf("GenerateProgram: %v", err)
	}

	if !strings.Contains(out, "lea") || !strings.Contains(out, "[rbp-8]") {
		t.Errorf("expected alloc to lea a stack slot, got:\n%s", out)
	}
	if !strings.Contains(out, "42") {
		t.Errorf("expected the stored literal 42 to appear, got:\n%s", out)
	}
}

func TestGenerateProgramRecursiveFactorialUsesCalleeSaved(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	fact, _ := p.PushProc("fact", []mvlc.Param{{Name: "n", Kind: mvlc.KindS64}}, mvlc.KindS64)
	fact.PushCondJump(mvlc.Eq, mvlc.VarArg("n"), mvlc.ValueArg(mvlc.S64Value(0)), "base")
	fact.PushOp("sub", "m", mvlc.VarArg("n"), mvlc.ValueArg(mvlc.S64Value(1)))
	fact.PushCallAssign("sub_result", "fact", mvlc.VarArg("m"))
	fact.PushOp("mul", "result", mvlc.VarArg("n"), mvlc.VarArg("sub_result"))
	fact.PushReturnValue(mvlc.VarArg("result"))
	fact.PushLabel("base")
	fact.PushOp("put", "one", mvlc.ValueArg(mvlc.S64Value(1)))
	fact.PushReturnValue(mvlc.VarArg("one"))

	build(t, p)

	if !fact.HasCallee {
		t.Fatalf("fact.HasCallee = false, want true (it calls itself non-tail)")
	}

	out, err := GenerateProgram(p)
	if err != nil {
		t.Fatalf("GenerateProgram: %v", err)
	}

	if !strings.Contains(out, "push rbx") || !strings.Contains(out, "pop rbx") {
		t.Errorf("expected a callee-saved register to be pushed and popped around a non-leaf procedure, got:\n%s", out)
	}
	if !strings.Contains(out, "mov rbx,rdi") {
		t.Errorf("expected the incoming parameter to be copied into its callee-saved home, got:\n%s", out)
	}
}
