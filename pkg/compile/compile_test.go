package compile

import (
	"strings"
	"testing"

	"github.com/mvlc-project/mvlc/pkg/mvlc"
)

func TestCompileIdentityProgram(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	id, _ := p.PushProc("id", []mvlc.Param{{Name: "x", Kind: mvlc.KindS64}}, mvlc.KindS64)
	id.PushReturnValue(mvlc.VarArg("x"))

	out, err := Compile(p)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(out, "$id:") {
		t.Errorf("output missing $id: label:\n%s", out)
	}
}

func TestCompileRejectsUnresolvedCallee(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	f, _ := p.PushProc("f", nil, mvlc.KindUnit)
	f.PushCall("does-not-exist")
	f.PushReturn()

	if _, err := Compile(p); err == nil {
		t.Errorf("Compile with unresolved callee = nil error, want error")
	}
}

func TestCompileOptimizesBeforeGeneratingCode(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	sum, _ := p.PushProc("sum", []mvlc.Param{{Name: "n", Kind: mvlc.KindS64}, {Name: "acc", Kind: mvlc.KindS64}}, mvlc.KindS64)
	sum.PushCondJump(mvlc.Eq, mvlc.VarArg("n"), mvlc.ValueArg(mvlc.S64Value(0)), "done")
	sum.PushOp("add", "acc", mvlc.VarArg("acc"), mvlc.VarArg("n"))
	sum.PushOp("sub", "n", mvlc.VarArg("n"), mvlc.ValueArg(mvlc.S64Value(1)))
	sum.PushCallAssign("acc", "sum", mvlc.VarArg("n"), mvlc.VarArg("acc"))
	sum.PushReturnValue(mvlc.VarArg("acc"))
	sum.PushLabel("done")
	sum.PushReturnValue(mvlc.VarArg("acc"))

	out, err := Compile(p)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if strings.Contains(out, "call $sum") {
		t.Errorf("self-tail-call should have been folded into a jump:\n%s", out)
	}
}

func TestCheckThenGenerateCodeWithoutOptimize(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Linux_X86_64)
	f, _ := p.PushProc("f", nil, mvlc.KindUnit)
	f.PushReturn()

	if err := Check(p); err != nil {
		t.Fatalf("Check: %v", err)
	}
	out, err := GenerateCode(p)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if !strings.Contains(out, "$f:") {
		t.Errorf("output missing $f: label:\n%s", out)
	}
}
