package ops

import (
	"strconv"
	"strings"

	"github.com/mvlc-project/mvlc/pkg/mvlc"
)

func argIsOnStack(arg string) bool {
	return strings.HasSuffix(arg, "]")
}

// reserveRegLoc picks a register to compute into: destLoc's own register
// if it has one, else the scratch register rax when destLoc is a stack
// slot, and emits the mov that seeds it with arg unless arg already is
// that register.
func reserveRegLoc(sb *strings.Builder, destLoc Loc, arg string) string {
	reserved := destLoc.Str
	if destLoc.Kind == LocKindStack {
		reserved = "rax"
	}
	if reserved != arg {
		sb.WriteString("  mov ")
		sb.WriteString(reserved)
		sb.WriteByte(',')
		sb.WriteString(arg)
		sb.WriteByte('\n')
	}
	return reserved
}

// freeReservedLoc writes the scratch register computed by reserveRegLoc
// back to the real destination when the two differ.
func freeReservedLoc(sb *strings.Builder, reserved, prev string) {
	if reserved != prev {
		sb.WriteString("  mov ")
		sb.WriteString(prev)
		sb.WriteByte(',')
		sb.WriteString(reserved)
		sb.WriteByte('\n')
	}
}

func genComparisonOp(sb *strings.Builder, destLoc Loc, arg0, arg1, setcc string) {
	if argIsOnStack(arg0) && argIsOnStack(arg1) {
		sb.WriteString("  mov rax,")
		sb.WriteString(arg0)
		sb.WriteByte('\n')
		arg0 = "rax"
	}

	sb.WriteString("  cmp ")
	sb.WriteString(arg0)
	sb.WriteByte(',')
	sb.WriteString(arg1)
	sb.WriteString("\n  set")
	sb.WriteString(setcc)
	sb.WriteString(" al\n")

	destOnStack := argIsOnStack(destLoc.Str)
	if destOnStack {
		sb.WriteString("  mov rax,")
		sb.WriteString(destLoc.Str)
		sb.WriteByte('\n')
	}

	sb.WriteString("  movzx ")
	if destOnStack {
		sb.WriteString("rax")
	} else {
		sb.WriteString(destLoc.Str)
	}
	sb.WriteString(",al\n")

	if destOnStack {
		sb.WriteString("  mov ")
		sb.WriteString(destLoc.Str)
		sb.WriteString(",rax\n")
	}
}

func genPutOp(sb *strings.Builder, destLoc Loc, args []string) {
	if destLoc.Str != args[0] {
		sb.WriteString("  mov ")
		sb.WriteString(destLoc.Str)
		sb.WriteByte(',')
		sb.WriteString(args[0])
		sb.WriteByte('\n')
	}
}

func genAddOp(sb *strings.Builder, destLoc Loc, args []string) {
	destReg := reserveRegLoc(sb, destLoc, args[0])
	sb.WriteString("  add ")
	sb.WriteString(destReg)
	sb.WriteByte(',')
	sb.WriteString(args[1])
	sb.WriteByte('\n')
	freeReservedLoc(sb, destReg, destLoc.Str)
}

func genSubOp(sb *strings.Builder, destLoc Loc, args []string) {
	destReg := reserveRegLoc(sb, destLoc, args[0])
	sb.WriteString("  sub ")
	sb.WriteString(destReg)
	sb.WriteByte(',')
	sb.WriteString(args[1])
	sb.WriteByte('\n')
	freeReservedLoc(sb, destReg, destLoc.Str)
}

// isImmediateValue reports whether arg is a bare integer literal rather
// than a register or a stack reference — imul/idiv cannot take an
// immediate right operand, so such args are staged through r10 first.
func isImmediateValue(arg string) bool {
	if arg == "" || argIsOnStack(arg) {
		return false
	}
	_, err := strconv.ParseInt(arg, 10, 64)
	return err == nil
}

func genMulOp(sb *strings.Builder, destLoc Loc, args []string) {
	isImm := isImmediateValue(args[1])
	if isImm {
		sb.WriteString("  mov r10,")
		sb.WriteString(args[1])
		sb.WriteByte('\n')
	}
	sb.WriteString("  mov rax,")
	sb.WriteString(args[0])
	sb.WriteString("\n  imul ")
	if isImm {
		sb.WriteString("r10")
	} else {
		sb.WriteString(args[1])
	}
	sb.WriteByte('\n')
	sb.WriteString("  mov ")
	sb.WriteString(destLoc.Str)
	sb.WriteString(",rax\n")
}

func genDivOp(sb *strings.Builder, destLoc Loc, args []string) {
	isImm := isImmediateValue(args[1])
	if isImm {
		sb.WriteString("  mov r10,")
		sb.WriteString(args[1])
		sb.WriteByte('\n')
	}
	sb.WriteString("  mov rax,")
	sb.WriteString(args[0])
	sb.WriteString("\n  cdq\n  idiv ")
	if isImm {
		sb.WriteString("r10")
	} else {
		sb.WriteString(args[1])
	}
	sb.WriteByte('\n')
	sb.WriteString("  mov ")
	sb.WriteString(destLoc.Str)
	sb.WriteString(",rax\n")
}

func genModOp(sb *strings.Builder, destLoc Loc, args []string) {
	isImm := isImmediateValue(args[1])
	if isImm {
		sb.WriteString("  mov r10,")
		sb.WriteString(args[1])
		sb.WriteByte('\n')
	}
	sb.WriteString("  mov rax,")
	sb.WriteString(args[0])
	sb.WriteString("\n  cdq\n  idiv ")
	if isImm {
		sb.WriteString("r10")
	} else {
		sb.WriteString(args[1])
	}
	sb.WriteByte('\n')
	sb.WriteString("  mov ")
	sb.WriteString(destLoc.Str)
	sb.WriteString(",rdx\n")
}

func genNegOp(sb *strings.Builder, destLoc Loc, args []string) {
	destReg := reserveRegLoc(sb, destLoc, args[0])
	sb.WriteString("  neg ")
	sb.WriteString(destReg)
	sb.WriteByte('\n')
	freeReservedLoc(sb, destReg, destLoc.Str)
}

func genEqOp(sb *strings.Builder, destLoc Loc, args []string) { genComparisonOp(sb, destLoc, args[0], args[1], "e") }
func genNeOp(sb *strings.Builder, destLoc Loc, args []string) {
	genComparisonOp(sb, destLoc, args[0], args[1], "ne")
}
func genGtOp(sb *strings.Builder, destLoc Loc, args []string) { genComparisonOp(sb, destLoc, args[0], args[1], "g") }
func genLsOp(sb *strings.Builder, destLoc Loc, args []string) { genComparisonOp(sb, destLoc, args[0], args[1], "l") }
func genGeOp(sb *strings.Builder, destLoc Loc, args []string) {
	genComparisonOp(sb, destLoc, args[0], args[1], "ge")
}
func genLeOp(sb *strings.Builder, destLoc Loc, args []string) {
	genComparisonOp(sb, destLoc, args[0], args[1], "le")
}

func genRefOp(sb *strings.Builder, destLoc Loc, args []string) {
	destOnStack := argIsOnStack(destLoc.Str)
	sb.WriteString("  lea ")
	if destOnStack {
		sb.WriteString("rax")
	} else {
		sb.WriteString(destLoc.Str)
	}
	sb.WriteByte(',')
	sb.WriteString(args[0])
	sb.WriteByte('\n')
	if destOnStack {
		sb.WriteString("  mov ")
		sb.WriteString(destLoc.Str)
		sb.WriteString(",rax\n")
	}
}

func genDerefOp(sb *strings.Builder, destLoc Loc, args []string) {
	destOnStack := argIsOnStack(destLoc.Str)
	arg0OnStack := argIsOnStack(args[0])
	prevDest := destLoc.Str
	effectiveDest := destLoc.Str
	if destOnStack {
		effectiveDest = "rax"
	}

	if arg0OnStack {
		sb.WriteString("  mov rax,")
		sb.WriteString(args[0])
		sb.WriteByte('\n')
	}

	sb.WriteString("  mov ")
	sb.WriteString(effectiveDest)
	sb.WriteString(",qword[")
	if arg0OnStack {
		sb.WriteString("rax")
	} else {
		sb.WriteString(args[0])
	}
	sb.WriteString("]\n")

	if destOnStack {
		sb.WriteString("  mov ")
		sb.WriteString(prevDest)
		sb.WriteString(",rax\n")
	}
}

func genDerefStrOp(sb *strings.Builder, destLoc Loc, args []string) {
	arg0OnStack := argIsOnStack(args[0])
	if arg0OnStack {
		sb.WriteString("  mov rax,")
		sb.WriteString(args[0])
		sb.WriteByte('\n')
	}
	sb.WriteString("  movzx rax,byte[")
	if arg0OnStack {
		sb.WriteString("rax")
	} else {
		sb.WriteString(args[0])
	}
	sb.WriteString("]\n")
	if destLoc.Str != "rax" {
		sb.WriteString("  mov ")
		sb.WriteString(destLoc.Str)
		sb.WriteString(",rax\n")
	}
}

func genDerefPutOp(sb *strings.Builder, destLoc Loc, args []string) {
	addr := args[0]
	if argIsOnStack(addr) {
		sb.WriteString("  mov rax,")
		sb.WriteString(addr)
		sb.WriteByte('\n')
		addr = "rax"
	}
	sb.WriteString("  mov qword[")
	sb.WriteString(addr)
	sb.WriteString("],")
	sb.WriteString(args[1])
	sb.WriteByte('\n')
}

func genDerefPutStrOp(sb *strings.Builder, destLoc Loc, args []string) {
	addr := args[0]
	if argIsOnStack(addr) {
		sb.WriteString("  mov rax,")
		sb.WriteString(addr)
		sb.WriteByte('\n')
		addr = "rax"
	}
	val := args[1]
	if val != "r10" {
		sb.WriteString("  mov r10,")
		sb.WriteString(val)
		sb.WriteByte('\n')
		val = "r10b"
	}
	sb.WriteString("  mov byte[")
	sb.WriteString(addr)
	sb.WriteString("],")
	sb.WriteString(val)
	sb.WriteByte('\n')
}

var (
	binOpArgs        = []OpArg{{mvlc.KindS64, ArgConditionAny}, {mvlc.KindS64, ArgConditionAny}}
	unOpArgs         = []OpArg{{mvlc.KindS64, ArgConditionAny}}
	binOpArgsVar     = []OpArg{{mvlc.KindS64, ArgConditionVar}, {mvlc.KindS64, ArgConditionAny}}
	unOpArgsRefTarget = []OpArg{{mvlc.KindS64, ArgConditionRefTarget}}
)

// X86_64 is the base arithmetic/memory op table shared by both targets.
func X86_64() Table {
	return Table{
		Ops: []Op{
			{"put", mvlc.KindS64, unOpArgs, true},
			{"add", mvlc.KindS64, binOpArgs, false},
			{"sub", mvlc.KindS64, binOpArgs, false},
			{"mul", mvlc.KindS64, binOpArgs, false},
			{"div", mvlc.KindS64, binOpArgs, false},
			{"mod", mvlc.KindS64, binOpArgs, false},
			{"neg", mvlc.KindS64, unOpArgs, false},

			{"eq", mvlc.KindS64, binOpArgs, false},
			{"ne", mvlc.KindS64, binOpArgs, false},
			{"gt", mvlc.KindS64, binOpArgs, false},
			{"ls", mvlc.KindS64, binOpArgs, false},
			{"ge", mvlc.KindS64, binOpArgs, false},
			{"le", mvlc.KindS64, binOpArgs, false},

			{"ref", mvlc.KindS64, unOpArgsRefTarget, false},
			{"deref", mvlc.KindS64, unOpArgs, false},
			{"deref_str", mvlc.KindS64, unOpArgs, false},
			{"deref_put", mvlc.KindUnit, binOpArgsVar, false},
			{"deref_put_str", mvlc.KindUnit, binOpArgsVar, false},
		},
		GenFuncs: []OpGenFunc{
			genPutOp,
			genAddOp,
			genSubOp,
			genMulOp,
			genDivOp,
			genModOp,
			genNegOp,

			genEqOp,
			genNeOp,
			genGtOp,
			genLsOp,
			genGeOp,
			genLeOp,

			genRefOp,
			genDerefOp,
			genDerefStrOp,
			genDerefPutOp,
			genDerefPutStrOp,
		},
	}
}
