package main

import "github.com/mvlc-project/mvlc/pkg/mvlc"

// demoBuilder constructs one complete program for the given target.
// Since this core has no lexer or parser, every demo program is built
// directly against the pkg/mvlc builder API — the same surface a
// front-end would drive.
type demoBuilder func(target mvlc.TargetPlatform) (*mvlc.Program, error)

var demos = map[string]demoBuilder{
	"empty":     buildEmptyDemo,
	"identity":  buildIdentityDemo,
	"sum":       buildSumDemo,
	"factorial": buildFactorialDemo,
	"refderef":  buildRefDerefDemo,
}

func buildEmptyDemo(target mvlc.TargetPlatform) (*mvlc.Program, error) {
	return mvlc.NewProgram(target), nil
}

func buildIdentityDemo(target mvlc.TargetPlatform) (*mvlc.Program, error) {
	p := mvlc.NewProgram(target)
	id, err := p.PushProc("id", []mvlc.Param{{Name: "x", Kind: mvlc.KindS64}}, mvlc.KindS64)
	if err != nil {
		return nil, err
	}
	id.PushReturnValue(mvlc.VarArg("x"))
	return p, nil
}

// buildSumDemo builds a tail-recursive summation: sum(n, acc) adds n
// into acc and recurses on n-1 until n reaches zero.
func buildSumDemo(target mvlc.TargetPlatform) (*mvlc.Program, error) {
	p := mvlc.NewProgram(target)
	sum, err := p.PushProc("sum", []mvlc.Param{
		{Name: "n", Kind: mvlc.KindS64},
		{Name: "acc", Kind: mvlc.KindS64},
	}, mvlc.KindS64)
	if err != nil {
		return nil, err
	}
	sum.PushCondJump(mvlc.Eq, mvlc.VarArg("n"), mvlc.ValueArg(mvlc.S64Value(0)), "done")
	sum.PushOp("add", "acc", mvlc.VarArg("acc"), mvlc.VarArg("n"))
	sum.PushOp("sub", "n", mvlc.VarArg("n"), mvlc.ValueArg(mvlc.S64Value(1)))
	sum.PushCallAssign("acc", "sum", mvlc.VarArg("n"), mvlc.VarArg("acc"))
	sum.PushReturnValue(mvlc.VarArg("acc"))
	sum.PushLabel("done")
	sum.PushReturnValue(mvlc.VarArg("acc"))

	return p, nil
}

// buildFactorialDemo builds a classic non-tail-recursive factorial,
// exercising the callee-saved register prologue/epilogue path.
func buildFactorialDemo(target mvlc.TargetPlatform) (*mvlc.Program, error) {
	p := mvlc.NewProgram(target)
	fact, err := p.PushProc("fact", []mvlc.Param{{Name: "n", Kind: mvlc.KindS64}}, mvlc.KindS64)
	if err != nil {
		return nil, err
	}
	fact.PushCondJump(mvlc.Eq, mvlc.VarArg("n"), mvlc.ValueArg(mvlc.S64Value(0)), "base")
	fact.PushOp("sub", "m", mvlc.VarArg("n"), mvlc.ValueArg(mvlc.S64Value(1)))
	fact.PushCallAssign("sub_result", "fact", mvlc.VarArg("m"))
	fact.PushOp("mul", "result", mvlc.VarArg("n"), mvlc.VarArg("sub_result"))
	fact.PushReturnValue(mvlc.VarArg("result"))
	fact.PushLabel("base")
	fact.PushOp("put", "one", mvlc.ValueArg(mvlc.S64Value(1)))
	fact.PushReturnValue(mvlc.VarArg("one"))
	return p, nil
}

// buildRefDerefDemo exercises alloc/deref_put/deref: it carves 8 bytes
// on the stack, stores 42 through the resulting pointer, then reads it
// back.
func buildRefDerefDemo(target mvlc.TargetPlatform) (*mvlc.Program, error) {
	p := mvlc.NewProgram(target)
	f, err := p.PushProc("f", nil, mvlc.KindS64)
	if err != nil {
		return nil, err
	}
	f.PushAlloc("p", 8)
	f.PushOp("deref_put", "", mvlc.VarArg("p"), mvlc.ValueArg(mvlc.S64Value(42)))
	f.PushOp("deref", "x", mvlc.VarArg("p"))
	f.PushReturnValue(mvlc.VarArg("x"))
	return p, nil
}
