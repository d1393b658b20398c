// Package proc builds the per-procedure semantic context: variable
// liveness intervals and their interval-coloring assignment to memory
// units, consumed downstream by pkg/codegen to pick registers and stack
// slots. It assumes the procedure has already passed pkg/check.
package proc

import (
	"fmt"
	"sort"

	"github.com/mvlc-project/mvlc/pkg/mvlc"
	"github.com/mvlc-project/mvlc/pkg/ops"
)

// Variable is one named value live across some span of a procedure's
// instructions: a formal parameter, a static segment reference, or an
// op/call/alloc destination.
type Variable struct {
	Name           string
	Kind           mvlc.Kind
	MemUnit        int
	BeginIndex     int
	EndIndex       int
	Uses           []*mvlc.Node
	CanBeRefTarget bool
	IsProcParam    bool
	IsStatic       bool
}

// InstrData is auxiliary per-instruction bookkeeping keyed by the
// instruction's Node: which variable (if any) it defines, and which
// variables its arguments reference, resolved once so codegen never has
// to re-walk argument lists to find a Variable by name.
type InstrData struct {
	DestVar *Variable
	ArgVars []*Variable
}

// Context is the built semantic context of one procedure: its resolved
// variables, per-instruction bookkeeping, and the coloring assigned by
// assignMemUnits. It is stored opaquely on mvlc.Procedure.Ctx.
type Context struct {
	Proc            *mvlc.Procedure
	Vars            []*Variable
	MaxParamsPushed uint32

	instrData map[*mvlc.Node]*InstrData
}

// Of type-asserts proc.Ctx back to *Context, panicking if it has not
// been built yet — a codegen/optimizer invariant violation, since both
// stages assume BuildContext has already run.
func Of(proc *mvlc.Procedure) *Context {
	ctx, ok := proc.Ctx.(*Context)
	if !ok {
		panic(fmt.Sprintf("proc: procedure %q has no built context", proc.Name))
	}
	return ctx
}

func (ctx *Context) instrDataFor(node *mvlc.Node) *InstrData {
	data, ok := ctx.instrData[node]
	if !ok {
		data = &InstrData{}
		ctx.instrData[node] = data
	}
	return data
}

// InstrData returns the bookkeeping for node, if the instruction has any
// (pure control-flow instructions like Jump/Label never acquire an
// entry).
func (ctx *Context) InstrData(node *mvlc.Node) (*InstrData, bool) {
	data, ok := ctx.instrData[node]
	return data, ok
}

// LookupVariable finds a variable by name, or nil if none is defined.
func (ctx *Context) LookupVariable(name string) *Variable {
	var found *Variable
	for _, v := range ctx.Vars {
		if v.Name == name {
			found = v
		}
	}
	return found
}

// GetArgKind resolves the value kind an argument carries: a literal's
// own kind, or the kind of the variable it names.
func GetArgKind(ctx *Context, arg mvlc.Arg) (mvlc.Kind, error) {
	if arg.Kind == mvlc.ArgVar {
		v := ctx.LookupVariable(arg.Var)
		if v == nil {
			return 0, fmt.Errorf("proc: variable %q was not defined before usage", arg.Var)
		}
		return v.Kind, nil
	}
	return arg.Value.Kind, nil
}

func (ctx *Context) useVariable(node *mvlc.Node, name string) (*Variable, error) {
	v := ctx.LookupVariable(name)
	if v == nil {
		return nil, fmt.Errorf("proc: variable %q was not defined before usage", name)
	}
	if v.EndIndex < node.Index {
		v.EndIndex = node.Index
	}
	v.Uses = append(v.Uses, node)
	return v, nil
}

func (ctx *Context) defineOrUse(node *mvlc.Node, name string, kind mvlc.Kind) (*Variable, error) {
	if v := ctx.LookupVariable(name); v != nil {
		return ctx.useVariable(node, name)
	}
	v := &Variable{
		Name:       name,
		Kind:       kind,
		BeginIndex: node.Index + 1,
		EndIndex:   node.Index + 1,
	}
	ctx.Vars = append(ctx.Vars, v)
	return v, nil
}

// BuildContext builds the semantic context of proc against table (the
// op table for the procedure's program target) and statics (the
// program's static segments, each contributing a pre-existing pointer
// variable), and assigns interval colors. layerBase[kind] is the
// collision layer of every variable of that kind: ranges in different
// layers never collide. Memory units are numbered from 0 regardless of
// layerBase.
func BuildContext(proc *mvlc.Procedure, table ops.Table, statics []*mvlc.StaticSegment, layerBase [mvlc.KindCount]int) (*Context, error) {
	ctx := &Context{Proc: proc, instrData: make(map[*mvlc.Node]*InstrData)}

	if proc.ReturnKind != mvlc.KindUnit {
		if len(proc.Instrs) == 0 {
			return nil, fmt.Errorf("proc: procedure %q: non-unit procedure should return something", proc.Name)
		}
		last := proc.Instrs[len(proc.Instrs)-1]
		if _, ok := last.Instr.(mvlc.ReturnValueInstr); !ok {
			return nil, fmt.Errorf("proc: procedure %q: non-unit procedure should return something", proc.Name)
		}
	}

	for _, seg := range statics {
		ctx.Vars = append(ctx.Vars, &Variable{
			Name: seg.Name, Kind: mvlc.KindS64,
			BeginIndex: 1, EndIndex: 1, IsStatic: true,
		})
	}
	for _, param := range proc.Params {
		ctx.Vars = append(ctx.Vars, &Variable{
			Name: param.Name, Kind: param.Kind,
			BeginIndex: 1, EndIndex: 1, IsProcParam: true,
		})
	}

	if err := ctx.iterateInstrs(table); err != nil {
		return nil, err
	}
	ctx.assignMemUnits(layerBase)

	return ctx, nil
}

func (ctx *Context) iterateInstrs(table ops.Table) error {
	for _, node := range ctx.Proc.Instrs {
		if node.Removed {
			continue
		}
		if err := ctx.visit(node, table); err != nil {
			return err
		}
	}

	// Widen a ref-target argument's lifetime to cover its dest variable's
	// lifetime: the address taken by `ref` must stay valid for as long as
	// the pointer variable it was stored into is live.
	for _, node := range ctx.Proc.Instrs {
		op, ok := node.Instr.(mvlc.OpInstr)
		if !ok {
			continue
		}
		_, _, idx, found := findOp(table, op.Name, len(op.Args))
		if !found {
			continue
		}
		data := ctx.instrDataFor(node)
		if data.DestVar == nil {
			continue
		}
		for i, arg := range table.Ops[idx].Args {
			if arg.Cond == ops.ArgConditionRefTarget && i < len(data.ArgVars) {
				if data.ArgVars[i].EndIndex < data.DestVar.EndIndex {
					data.ArgVars[i].EndIndex = data.DestVar.EndIndex
				}
			}
		}
	}

	return nil
}

func findOp(table ops.Table, name string, arity int) (ops.Op, int, int, bool) {
	for i, op := range table.Ops {
		if op.Name == name && op.Arity() == arity {
			return op, i, i, true
		}
	}
	return ops.Op{}, -1, -1, false
}

func (ctx *Context) visit(node *mvlc.Node, table ops.Table) error {
	switch instr := node.Instr.(type) {
	case mvlc.OpInstr:
		op, idx, _, found := findOp(table, instr.Name, len(instr.Args))
		if !found {
			return fmt.Errorf("proc: operation %q with that arity was not found", instr.Name)
		}

		if op.Arity() == 2 && instr.Args[0].Kind == mvlc.ArgValue && instr.Args[1].Kind == mvlc.ArgVar {
			instr.Args[0], instr.Args[1] = instr.Args[1], instr.Args[0]
			node.Instr = instr
		}

		data := ctx.instrDataFor(node)
		for i, arg := range instr.Args {
			if arg.Kind != mvlc.ArgVar {
				continue
			}
			if _, err := ctx.useVariable(node, arg.Var); err != nil {
				return err
			}
			argVar := ctx.LookupVariable(arg.Var)
			data.ArgVars = append(data.ArgVars, argVar)
			if i < len(op.Args) && op.Args[i].Cond == ops.ArgConditionRefTarget {
				argVar.CanBeRefTarget = true
			}
		}

		if op.DestKind == mvlc.KindUnit {
			return nil
		}
		destVar, err := ctx.defineOrUse(node, instr.Dest, op.DestKind)
		if err != nil {
			return err
		}
		data.DestVar = destVar
		_ = idx

	case mvlc.CallInstr:
		data := ctx.instrDataFor(node)
		for i, arg := range instr.Args {
			if arg.Kind == mvlc.ArgVar {
				argVar, err := ctx.useVariable(node, arg.Var)
				if err != nil {
					return err
				}
				data.ArgVars = append(data.ArgVars, argVar)
			}
			ctx.widenParamLifetime(i, node.Index)
		}

	case mvlc.CallAssignInstr:
		data := ctx.instrDataFor(node)
		for i, arg := range instr.Args {
			if arg.Kind == mvlc.ArgVar {
				argVar, err := ctx.useVariable(node, arg.Var)
				if err != nil {
					return err
				}
				data.ArgVars = append(data.ArgVars, argVar)
			}
			ctx.widenParamLifetime(i, node.Index)
		}
		returnKind := mvlc.KindUnit
		if instr.ResolvedCallee != nil {
			returnKind = instr.ResolvedCallee.ReturnKind
		}
		destVar, err := ctx.defineOrUse(node, instr.Dest, returnKind)
		if err != nil {
			return err
		}
		data.DestVar = destVar

	case mvlc.ReturnInstr:
		// no variables involved

	case mvlc.ReturnValueInstr:
		if instr.Arg.Kind == mvlc.ArgVar {
			data := ctx.instrDataFor(node)
			argVar, err := ctx.useVariable(node, instr.Arg.Var)
			if err != nil {
				return err
			}
			data.ArgVars = append(data.ArgVars, argVar)
		}

	case mvlc.JumpInstr:
		// no variables involved

	case mvlc.CondJumpInstr:
		data := ctx.instrDataFor(node)
		if instr.Arg0.Kind == mvlc.ArgVar {
			argVar, err := ctx.useVariable(node, instr.Arg0.Var)
			if err != nil {
				return err
			}
			data.ArgVars = append(data.ArgVars, argVar)
		}
		if instr.Arg1.Kind == mvlc.ArgVar {
			argVar, err := ctx.useVariable(node, instr.Arg1.Var)
			if err != nil {
				return err
			}
			data.ArgVars = append(data.ArgVars, argVar)
		}

	case mvlc.LabelInstr:
		// no variables involved

	case mvlc.AllocInstr:
		destVar, err := ctx.defineOrUse(node, instr.Dest, mvlc.KindS64)
		if err != nil {
			return err
		}
		ctx.instrDataFor(node).DestVar = destVar

	default:
		return fmt.Errorf("proc: wrong instruction kind %T", instr)
	}

	return nil
}

func (ctx *Context) widenParamLifetime(argIndex, instrIndex int) {
	count := 0
	for _, v := range ctx.Vars {
		if !v.IsProcParam {
			continue
		}
		if count == argIndex {
			if v.EndIndex < instrIndex {
				v.EndIndex = instrIndex
			}
			return
		}
		count++
	}
}

// variableRange is the coloring key: a [begin,end] instruction-index
// interval scoped to a layer (the layerBase entry of the variable's
// kind); two ranges in different layers never collide regardless of
// index overlap, while kinds with equal layerBase entries share a layer.
type variableRange struct {
	begin, end, layer int
}

func rangesCollide(a, b variableRange) bool {
	if a.layer != b.layer {
		return false
	}
	if a.begin >= b.begin && a.begin <= b.end {
		return true
	}
	if a.begin <= b.begin && a.end >= b.begin {
		return true
	}
	return false
}

// assignMemUnits colors each non-ref-target, non-static variable with
// the lowest-index memory unit whose already-assigned ranges don't
// collide with its own, processing variables in descending use-count
// order first (more heavily used variables get first pick of low unit
// indices, where codegen places registers before stack slots).
func (ctx *Context) assignMemUnits(layerBase [mvlc.KindCount]int) {
	sorted := append([]*Variable(nil), ctx.Vars...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Uses) > len(sorted[j].Uses)
	})

	var unitRanges [][]variableRange

	for _, v := range sorted {
		if v.CanBeRefTarget || v.IsStatic {
			continue
		}

		newRange := variableRange{v.BeginIndex, v.EndIndex, layerBase[v.Kind]}

		placed := false
		for unit, ranges := range unitRanges {
			collides := false
			for _, r := range ranges {
				if rangesCollide(r, newRange) {
					collides = true
					break
				}
			}
			if !collides {
				v.MemUnit = unit
				unitRanges[unit] = append(unitRanges[unit], newRange)
				placed = true
				break
			}
		}

		if !placed {
			v.MemUnit = len(unitRanges)
			unitRanges = append(unitRanges, []variableRange{newRange})
		}
	}
}
