// Package ops defines the per-target operation tables and their x86-64
// code generation callbacks. A Program's Target selects which Ops table
// and OpGenFunc set govern which op names are legal and how they lower
// to assembly; pkg/proc and pkg/check consult the table, pkg/codegen
// invokes the callbacks.
package ops

import (
	"fmt"
	"strings"

	"github.com/mvlc-project/mvlc/pkg/mvlc"
)

// ArgCondition constrains which argument shapes an op accepts beyond
// its value kind.
type ArgCondition int

const (
	// ArgConditionAny accepts either a literal value or a variable.
	ArgConditionAny ArgCondition = iota
	// ArgConditionVar requires a variable reference (rules out a bare
	// literal, e.g. deref_put's address operand).
	ArgConditionVar
	// ArgConditionRefTarget marks a slot whose variable has its address
	// taken (the operand of `ref`); such a variable is flagged
	// CanBeRefTarget and kept in a stack slot so the address stays valid.
	ArgConditionRefTarget
)

// OpArg describes one formal argument slot of an Op.
type OpArg struct {
	Kind mvlc.Kind
	Cond ArgCondition
}

// Op is one entry of a target's operation table: a name, the kind of
// its result (KindUnit if it produces none), its formal argument slots,
// and whether the optimizer may inline a single-def argument into its
// use of this op.
type Op struct {
	Name         string
	DestKind     mvlc.Kind
	Args         []OpArg
	CanBeInlined bool
}

// Arity is the number of formal arguments the op takes.
func (o Op) Arity() int {
	return len(o.Args)
}

// LocKind distinguishes a register location from a stack slot location,
// used by codegen callbacks that need to special-case operands that
// cannot be addressed directly by a two-operand instruction.
type LocKind int

const (
	LocKindReg LocKind = iota
	LocKindStack
)

// Loc is a resolved operand location: its string rendering (a register
// name or a `[rbp-N]`-style stack reference) and which kind it is, the
// latter letting a codegen callback reserve a scratch register without
// restringifying the location.
type Loc struct {
	Kind LocKind
	Str  string
}

// OpGenFunc lowers one application of an op to assembly text, appending
// to sb. args are the already-resolved operand strings in declaration
// order; destLoc is the resolved location of the op's result (zero Loc
// if the op has no result).
type OpGenFunc func(sb *strings.Builder, destLoc Loc, args []string)

// Table pairs an op table with its per-op codegen callbacks, indexed
// positionally exactly as the op and its generator function are listed
// side by side in the original library's ops/x86_64.c and ops/linux.c.
type Table struct {
	Ops      []Op
	GenFuncs []OpGenFunc
}

// Find looks up an op by name, returning its table index too so callers
// can index GenFuncs without a second lookup.
func (t Table) Find(name string) (Op, int, bool) {
	for i, op := range t.Ops {
		if op.Name == name {
			return op, i, true
		}
	}
	return Op{}, -1, false
}

// Concat appends other's ops and generator funcs after t's, rejecting a
// name that appears in both tables with an identical signature (dest
// kind, and the kind and condition of every argument slot) —
// the Go equivalent of the original library's op_eq duplicate check run
// when building the combined Linux_X86_64 table.
func Concat(t, other Table) (Table, error) {
	combined := Table{
		Ops:      append(append([]Op(nil), t.Ops...), other.Ops...),
		GenFuncs: append(append([]OpGenFunc(nil), t.GenFuncs...), other.GenFuncs...),
	}
	seen := make(map[string]Op, len(t.Ops))
	for _, op := range t.Ops {
		seen[op.Name] = op
	}
	for _, op := range other.Ops {
		if prior, exists := seen[op.Name]; exists && opEq(prior, op) {
			return Table{}, fmt.Errorf("ops: duplicate op %q when concatenating tables", op.Name)
		}
	}
	return combined, nil
}

func opEq(a, b Op) bool {
	if a.Name != b.Name || a.DestKind != b.DestKind || len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if a.Args[i] != b.Args[i] {
			return false
		}
	}
	return true
}
