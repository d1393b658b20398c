package check

import (
	"testing"

	"github.com/mvlc-project/mvlc/pkg/mvlc"
	"github.com/mvlc-project/mvlc/pkg/ops"
	"github.com/mvlc-project/mvlc/pkg/proc"
)

var zeroLayers [mvlc.KindCount]int

func buildAll(t *testing.T, p *mvlc.Program) error {
	t.Helper()
	if err := Resolve(p); err != nil {
		return err
	}
	table, err := ops.ForTarget(p.Target)
	if err != nil {
		t.Fatalf("ForTarget: %v", err)
	}
	for _, pr := range p.Procs {
		ctx, err := proc.BuildContext(pr, table, p.Statics, zeroLayers)
		if err != nil {
			return err
		}
		pr.Ctx = ctx
	}
	return TypeCheck(p)
}

func TestResolveDuplicateProcedure(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	p.PushProc("f", nil, mvlc.KindUnit)
	p.PushProc("f", nil, mvlc.KindUnit)

	if err := Resolve(p); err == nil {
		t.Errorf("Resolve with duplicate procedure = nil error, want error")
	}
}

func TestResolveUnknownCallee(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	proc1, _ := p.PushProc("f", nil, mvlc.KindUnit)
	proc1.PushCall("does-not-exist")
	proc1.PushReturn()

	if err := Resolve(p); err == nil {
		t.Errorf("Resolve with unknown callee = nil error, want error")
	}
}

func TestResolveUnknownLabel(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	proc1, _ := p.PushProc("f", nil, mvlc.KindUnit)
	proc1.PushJump("nowhere")
	proc1.PushReturn()

	if err := Resolve(p); err == nil {
		t.Errorf("Resolve with unknown label = nil error, want error")
	}
}

func TestReachabilityFixpointBackwardCall(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	// entry -> later -> earlier -> helper: earlier is declared before
	// later, so a single forward pass marks earlier only after it has
	// been passed and never reaches helper.
	entry, _ := p.PushProc("entry", nil, mvlc.KindUnit)
	entry.PushCall("later")
	entry.PushReturn()
	earlier, _ := p.PushProc("earlier", nil, mvlc.KindUnit)
	earlier.PushCall("helper")
	earlier.PushReturn()
	later, _ := p.PushProc("later", nil, mvlc.KindUnit)
	later.PushCall("earlier")
	later.PushReturn()
	helper, _ := p.PushProc("helper", nil, mvlc.KindUnit)
	helper.PushReturn()

	if err := Resolve(p); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !helper.IsUsed {
		t.Errorf("helper.IsUsed = false, want true (reachable from entry)")
	}
}

func TestTypeCheckCallArgMismatch(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	entry, _ := p.PushProc("entry", nil, mvlc.KindUnit)
	entry.PushCall("helper", mvlc.ValueArg(mvlc.S64Value(1)))
	entry.PushReturn()
	helper, _ := p.PushProc("helper", nil, mvlc.KindUnit)
	helper.PushReturn()

	if err := buildAll(t, p); err == nil {
		t.Errorf("buildAll with arg count mismatch = nil error, want error")
	}
}

func TestTypeCheckOK(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	entry, _ := p.PushProc("entry", []mvlc.Param{{Name: "n", Kind: mvlc.KindS64}}, mvlc.KindS64)
	entry.PushReturnValue(mvlc.VarArg("n"))

	if err := buildAll(t, p); err != nil {
		t.Errorf("buildAll = %v, want nil", err)
	}
}

func TestEntrySignatureRejectsTooManyParams(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	entry, _ := p.PushProc("entry", []mvlc.Param{
		{Name: "a", Kind: mvlc.KindS64},
		{Name: "b", Kind: mvlc.KindS64},
		{Name: "c", Kind: mvlc.KindS64},
	}, mvlc.KindUnit)
	entry.PushReturn()

	if err := buildAll(t, p); err == nil {
		t.Errorf("buildAll with 3-param entry = nil error, want error")
	}
}

func TestMissingReturnInNonUnitProcedure(t *testing.T) {
	p := mvlc.NewProgram(mvlc.Raw_X86_64)
	entry, _ := p.PushProc("entry", nil, mvlc.KindS64)
	entry.PushOp("put", "x", mvlc.ValueArg(mvlc.S64Value(1)))

	// BuildContext itself already enforces "must end in ReturnValue" for
	// non-unit procedures, so this case fails before TypeCheck runs.
	if err := Resolve(p); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	table, _ := ops.ForTarget(p.Target)
	if _, err := proc.BuildContext(entry, table, nil, zeroLayers); err == nil {
		t.Errorf("BuildContext on non-unit procedure without return = nil error, want error")
	}
}
