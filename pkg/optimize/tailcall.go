// Package optimize implements the three optimization passes that run
// after a procedure's context has been built: tail-recursion folding,
// single-def argument inlining, and dead-store removal. Each pass
// mutates the procedure's instruction list in place and is idempotent —
// running the full sequence a second time leaves the program unchanged.
package optimize

import "github.com/mvlc-project/mvlc/pkg/mvlc"

// beginLabel is the synthetic loop-start label tail recursion jumps
// back to. Builder label names may not start with '.', so this can
// never collide with a user-defined label.
const beginLabel = ".begin"

// TailRecursion rewrites every self-recursive call that appears in tail
// position into a Jump to a synthetic `.begin` label inserted once at
// the procedure's head. The call's arguments are dropped, not copied
// into the parameters: the jump re-enters the body with whatever the
// parameter variables already hold, so the rewrite preserves the call
// only when each argument is the corresponding parameter itself (as in
// sum(n, acc) calling sum(n, acc)).
//
// Two shapes count as tail position: a CallInstr that is the
// procedure's last instruction or immediately followed by
// Return/ReturnValue, and a CallAssignInstr immediately followed by a
// ReturnValueInstr that returns exactly the call's own dest — the
// assignment is dead once the call becomes a jump, so both the call and
// the trailing return fold away.
func TailRecursion(proc *mvlc.Procedure) {
	instrs := proc.Instrs
	addedBeginLabel := false

	for i, node := range instrs {
		var callee string
		foldReturn := false

		switch instr := node.Instr.(type) {
		case mvlc.CallInstr:
			callee = instr.Callee
		case mvlc.CallAssignInstr:
			if i+1 >= len(instrs) {
				continue
			}
			ret, ok := instrs[i+1].Instr.(mvlc.ReturnValueInstr)
			if !ok || ret.Arg.Kind != mvlc.ArgVar || ret.Arg.Var != instr.Dest {
				continue
			}
			callee = instr.Callee
			foldReturn = true
		default:
			continue
		}

		if callee != proc.Name {
			continue
		}

		if !foldReturn {
			tailPosition := i == len(instrs)-1
			if !tailPosition {
				switch instrs[i+1].Instr.(type) {
				case mvlc.ReturnInstr, mvlc.ReturnValueInstr:
					tailPosition = true
				}
			}
			if !tailPosition {
				continue
			}
		}

		if !addedBeginLabel {
			proc.PrependLabel(beginLabel)
			addedBeginLabel = true
		}

		node.Instr = mvlc.JumpInstr{Label: beginLabel, SyntheticTailCall: true}
		if foldReturn {
			instrs[i+1].Removed = true
		}
	}
}
