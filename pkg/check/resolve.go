package check

import "github.com/mvlc-project/mvlc/pkg/mvlc"

// Resolve runs symbol resolution and reachability marking over program,
// mutating it in place: Call/CallAssign get a ResolvedCallee pointer,
// Jump/CondJump get a Target node, and every reachable procedure's
// IsUsed is set. Call Resolve before proc.BuildContext.
func Resolve(program *mvlc.Program) error {
	if err := resolveProcedures(program); err != nil {
		return err
	}
	markReachability(program)
	return nil
}

func resolveProcedures(program *mvlc.Program) error {
	seenProcNames := make(map[string]bool)

	for _, proc := range program.Procs {
		if seenProcNames[proc.Name] {
			return newError(KindDefinition, proc.Name, proc.Name, "procedure %q was already defined", proc.Name)
		}
		seenProcNames[proc.Name] = true

		if err := resolveLabels(proc); err != nil {
			return err
		}
		if err := resolveJumps(program, proc); err != nil {
			return err
		}
		if err := resolveCalls(program, proc); err != nil {
			return err
		}
	}

	return nil
}

func resolveLabels(proc *mvlc.Procedure) error {
	seen := make(map[string]bool)
	for _, node := range proc.Instrs {
		label, ok := node.Instr.(mvlc.LabelInstr)
		if !ok {
			continue
		}
		if seen[label.Name] {
			return newError(KindDefinition, proc.Name, label.Name, "label %q was redefined", label.Name)
		}
		seen[label.Name] = true
	}
	return nil
}

func findLabel(proc *mvlc.Procedure, name string) (*mvlc.Node, bool) {
	for _, node := range proc.Instrs {
		if label, ok := node.Instr.(mvlc.LabelInstr); ok && label.Name == name {
			return node, true
		}
	}
	return nil, false
}

func resolveJumps(program *mvlc.Program, proc *mvlc.Procedure) error {
	for _, node := range proc.Instrs {
		switch instr := node.Instr.(type) {
		case mvlc.JumpInstr:
			target, ok := findLabel(proc, instr.Label)
			if !ok {
				return newError(KindResolution, proc.Name, instr.Label, "label %q was not found", instr.Label)
			}
			instr.Target = target
			node.Instr = instr

		case mvlc.CondJumpInstr:
			target, ok := findLabel(proc, instr.Label)
			if !ok {
				return newError(KindResolution, proc.Name, instr.Label, "label %q was not found", instr.Label)
			}
			instr.Target = target
			node.Instr = instr
		}
	}
	return nil
}

func resolveCalls(program *mvlc.Program, proc *mvlc.Procedure) error {
	for _, node := range proc.Instrs {
		switch instr := node.Instr.(type) {
		case mvlc.CallInstr:
			callee, ok := program.Proc(instr.Callee)
			if !ok {
				return newError(KindResolution, proc.Name, instr.Callee, "procedure %q with such signature was not found", instr.Callee)
			}
			instr.ResolvedCallee = callee
			node.Instr = instr
			proc.HasCallee = true

		case mvlc.CallAssignInstr:
			callee, ok := program.Proc(instr.Callee)
			if !ok {
				return newError(KindResolution, proc.Name, instr.Callee, "procedure %q with such signature was not found", instr.Callee)
			}
			instr.ResolvedCallee = callee
			node.Instr = instr
			proc.HasCallee = true
		}
	}
	return nil
}

// markReachability seeds IsUsed on the entry procedure (Procs[0]) and
// propagates it to every callee, iterating to a fixpoint so that a call
// to a procedure declared earlier in the list is not missed, unlike the
// single forward pass of the reference implementation.
func markReachability(program *mvlc.Program) {
	if len(program.Procs) == 0 {
		return
	}
	program.Procs[0].IsUsed = true

	for {
		changed := false
		for _, proc := range program.Procs {
			if !proc.IsUsed {
				continue
			}
			for _, node := range proc.Instrs {
				switch instr := node.Instr.(type) {
				case mvlc.CallInstr:
					if instr.ResolvedCallee != nil && !instr.ResolvedCallee.IsUsed {
						instr.ResolvedCallee.IsUsed = true
						changed = true
					}
				case mvlc.CallAssignInstr:
					if instr.ResolvedCallee != nil && !instr.ResolvedCallee.IsUsed {
						instr.ResolvedCallee.IsUsed = true
						changed = true
					}
				}
			}
		}
		if !changed {
			break
		}
	}
}
