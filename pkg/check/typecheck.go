package check

import (
	"github.com/mvlc-project/mvlc/pkg/mvlc"
	"github.com/mvlc-project/mvlc/pkg/proc"
)

// TypeCheck validates argument counts/kinds, return kinds, and the entry
// procedure's signature. Call it after Resolve and after proc.BuildContext
// has populated every procedure's Ctx, since argument kinds are resolved
// through each procedure's built Context.
func TypeCheck(program *mvlc.Program) error {
	if len(program.Procs) > 0 {
		if err := checkEntrySignature(program.Procs[0]); err != nil {
			return err
		}
	}

	for _, p := range program.Procs {
		if err := checkProcedure(p); err != nil {
			return err
		}
	}
	return nil
}

func checkEntrySignature(entry *mvlc.Procedure) error {
	if entry.ReturnKind != mvlc.KindUnit && entry.ReturnKind != mvlc.KindS64 {
		return newError(KindType, entry.Name, entry.Name, "entry procedure %q should return unit or integer", entry.Name)
	}
	if len(entry.Params) > 2 {
		return newError(KindType, entry.Name, entry.Name, "entry procedure %q should have 0-2 parameters", entry.Name)
	}
	for i, param := range entry.Params {
		if param.Kind != mvlc.KindS64 {
			return newError(KindType, entry.Name, param.Name, "parameter %d of entry procedure %q should be an integer", i+1, entry.Name)
		}
	}
	return nil
}

func checkProcedure(p *mvlc.Procedure) error {
	ctx := proc.Of(p)
	foundReturn := false

	for _, node := range p.Instrs {
		switch instr := node.Instr.(type) {
		case mvlc.CallInstr:
			if err := checkCallArgs(ctx, p.Name, instr.Callee, instr.ResolvedCallee, instr.Args); err != nil {
				return err
			}

		case mvlc.CallAssignInstr:
			if err := checkCallArgs(ctx, p.Name, instr.Callee, instr.ResolvedCallee, instr.Args); err != nil {
				return err
			}

		case mvlc.ReturnInstr:
			if p.ReturnKind != mvlc.KindUnit {
				return newError(KindType, p.Name, p.Name, "non-unit procedure %q should return something", p.Name)
			}
			foundReturn = true

		case mvlc.ReturnValueInstr:
			kind, err := proc.GetArgKind(ctx, instr.Arg)
			if err != nil {
				return wrapResolutionError(p.Name, err)
			}
			if kind != p.ReturnKind {
				return newError(KindType, p.Name, p.Name, "wrong return value kind in procedure %q", p.Name)
			}
			foundReturn = true
		}
	}

	if !foundReturn && p.ReturnKind != mvlc.KindUnit {
		return newError(KindType, p.Name, p.Name, "non-unit procedure %q should return something", p.Name)
	}
	return nil
}

func checkCallArgs(ctx *proc.Context, callerName, calleeName string, callee *mvlc.Procedure, args []mvlc.Arg) error {
	if callee == nil {
		return newError(KindResolution, callerName, calleeName, "procedure %q with such signature was not found", calleeName)
	}
	if len(callee.Params) != len(args) {
		return newError(KindType, callerName, calleeName, "expected %d, but got %d parameters for %q procedure", len(callee.Params), len(args), calleeName)
	}
	for i, param := range callee.Params {
		kind, err := proc.GetArgKind(ctx, args[i])
		if err != nil {
			return wrapResolutionError(callerName, err)
		}
		if kind != param.Kind {
			return newError(KindType, callerName, calleeName, "unexpected type of parameter %d of %q procedure", i+1, calleeName)
		}
	}
	return nil
}

func wrapResolutionError(procName string, err error) error {
	return newError(KindResolution, procName, "", "%s", err.Error())
}
