package codegen

import (
	"fmt"
	"strings"

	"github.com/mvlc-project/mvlc/pkg/mvlc"
	"github.com/mvlc-project/mvlc/pkg/ops"
	"github.com/mvlc-project/mvlc/pkg/proc"
)

// calleeSavedRegs is the pool of registers a non-leaf (or register-
// pressured) variable of kind S64 may be colored into. Ordered so the
// most heavily used variables — memory unit 0 first — land in the
// cheapest-to-save register.
var calleeSavedRegs = []string{"rbx", "r12", "r13", "r14", "r15"}

// paramRegsS64 is the System V AMD64 integer argument register order.
var paramRegsS64 = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

func regsForKind(kind mvlc.Kind) []string {
	if kind == mvlc.KindS64 {
		return calleeSavedRegs
	}
	return nil
}

func paramRegsForKind(kind mvlc.Kind) []string {
	if kind == mvlc.KindS64 {
		return paramRegsS64
	}
	return nil
}

func ptrPrefix(kind mvlc.Kind) string {
	switch kind {
	case mvlc.KindS64:
		return "qword"
	default:
		panic("codegen: wrong value kind")
	}
}

// varLocPair records the resolved location chosen for one live variable,
// looked up by identity (pointer equality) rather than name, since a
// procedure may shadow a name across non-overlapping lifetimes with two
// distinct *proc.Variable values that still need distinct locations.
type varLocPair struct {
	v   *proc.Variable
	loc ops.Loc
}

// procGen accumulates the state built while lowering one procedure: its
// growing instruction text, the stack frame it has carved out so far,
// each live variable's chosen location, and the per-kind count of
// memory units that ended up needing a register (used to decide how
// many callee-saved registers the prologue/epilogue must push/pop).
type procGen struct {
	sb           strings.Builder
	locs         []varLocPair
	stack        stack
	maxUnitsUsed [mvlc.KindCount]int
	labelsCount  int
	foundReturn  bool
}

// genVarLoc assigns a non-parameter variable's location: a callee-saved
// register if its colored memory unit (offset by how many ref-target
// variables of the same kind already forced a register out of the
// pool) still fits one, else a stack slot sized and positioned by the
// frame allocator.
func genVarLoc(pg *procGen, v *proc.Variable, memUnitsOffsets []int) ops.Loc {
	regs := regsForKind(v.Kind)

	memUnit := v.MemUnit
	if memUnit >= memUnitsOffsets[v.Kind] {
		memUnit -= memUnitsOffsets[v.Kind]
	} else {
		memUnit = 0
	}

	if memUnit < len(regs) && !v.CanBeRefTarget && !v.IsStatic {
		return ops.Loc{Kind: ops.LocKindReg, Str: regs[memUnit]}
	}

	if v.CanBeRefTarget {
		memUnitsOffsets[v.Kind]++
	}

	size := v.Kind.Size()
	offset := pg.stack.alloc(size, v.BeginIndex, v.EndIndex)

	return ops.Loc{Kind: ops.LocKindStack, Str: fmt.Sprintf("%s[rbp-%d]", ptrPrefix(v.Kind), offset)}
}

// genParamVarLoc assigns the location a formal parameter occupies on
// entry, per the System V integer argument registers, falling back to
// the incoming stack slots above rbp (the caller's pushed overflow
// args) once the register file is exhausted. paramsOffset walks
// downward from 8 (past the return address) by each consumed param's
// width.
func genParamVarLoc(v *proc.Variable, paramMemUnitsOffsets []int, paramsOffset *uint32, index int) ops.Loc {
	regs := paramRegsForKind(v.Kind)

	if index >= paramMemUnitsOffsets[v.Kind] {
		index -= paramMemUnitsOffsets[v.Kind]
	} else {
		index = 0
	}

	if index < len(regs) {
		return ops.Loc{Kind: ops.LocKindReg, Str: regs[index]}
	}

	if v.CanBeRefTarget {
		paramMemUnitsOffsets[v.Kind]++
	}

	loc := ops.Loc{Kind: ops.LocKindStack, Str: fmt.Sprintf("%s[rbp+%d]", ptrPrefix(v.Kind), *paramsOffset)}
	*paramsOffset -= v.Kind.Size()

	return loc
}

// setVarLocs assigns every live variable of ctx a location up front,
// before any instruction is lowered, and — for a parameter that also
// needs a stack/register home distinct from its incoming slot because
// the procedure calls out (HasCallee) — emits the prologue copy from
// the incoming location into the permanent one.
func setVarLocs(pg *procGen, ctx *proc.Context) {
	var memUnitsOffsets [mvlc.KindCount]int
	var paramMemUnitsOffsets [mvlc.KindCount]int

	paramsOffset := uint32(8)
	var paramUnitsUsed [mvlc.KindCount]int
	for _, param := range ctx.Proc.Params {
		regs := paramRegsForKind(param.Kind)
		if paramUnitsUsed[param.Kind] >= len(regs) {
			paramsOffset += param.Kind.Size()
		}
		paramUnitsUsed[param.Kind]++
	}

	paramsCount := 0
	for _, v := range ctx.Vars {
		if len(v.Uses) == 0 {
			continue
		}

		if v.IsStatic {
			pg.locs = append(pg.locs, varLocPair{v, ops.Loc{Kind: ops.LocKindStack, Str: v.Name}})
			continue
		}

		var loc ops.Loc
		if v.IsProcParam && !ctx.Proc.HasCallee {
			loc = genParamVarLoc(v, paramMemUnitsOffsets[:], &paramsOffset, paramsCount)
			paramsCount++
		} else {
			loc = genVarLoc(pg, v, memUnitsOffsets[:])

			if pg.maxUnitsUsed[v.Kind] < v.MemUnit+1 {
				pg.maxUnitsUsed[v.Kind] = v.MemUnit + 1
			}

			if v.IsProcParam {
				paramLoc := genParamVarLoc(v, paramMemUnitsOffsets[:], &paramsOffset, paramsCount)
				paramsCount++

				pg.sb.WriteString("  mov ")
				pg.sb.WriteString(loc.Str)
				pg.sb.WriteByte(',')
				pg.sb.WriteString(paramLoc.Str)
				pg.sb.WriteByte('\n')
			}
		}

		pg.locs = append(pg.locs, varLocPair{v, loc})
	}
}

// getVarLoc returns v's previously assigned location. isDest wraps a
// static's location in a pointer dereference (`qword[name]`) since a
// static variable's own location string names the symbol's address,
// not its value, and only an operand written as a destination needs the
// bracketed form — a source operand goes through arg_to_str's Value
// path for a static by way of the static's own ref/deref ops instead.
func getVarLoc(pg *procGen, v *proc.Variable, isDest bool) (ops.Loc, error) {
	for _, pair := range pg.locs {
		if pair.v == v {
			loc := pair.loc
			if v.IsStatic && isDest {
				loc.Str = fmt.Sprintf("%s[%s]", ptrPrefix(v.Kind), loc.Str)
			}
			return loc, nil
		}
	}
	return ops.Loc{}, fmt.Errorf("codegen: variable %q location was not set", v.Name)
}

// argToStr resolves one instruction argument to its assembly text: a
// literal renders itself, a variable reference looks up its bound
// location.
func argToStr(pg *procGen, arg mvlc.Arg, v *proc.Variable) (string, error) {
	switch arg.Kind {
	case mvlc.ArgValue:
		return arg.Value.String(), nil
	case mvlc.ArgVar:
		loc, err := getVarLoc(pg, v, false)
		if err != nil {
			return "", err
		}
		return loc.Str, nil
	default:
		return "", fmt.Errorf("codegen: wrong argument kind")
	}
}
