package ops

import (
	"strconv"
	"strings"

	"github.com/mvlc-project/mvlc/pkg/mvlc"
)

// Linux syscall numbers and open(2) flag values used by the syscall op
// table below, named the way <asm/unistd_64.h>/<fcntl.h> name them.
const (
	sysExit   = 60
	sysWrite  = 1
	sysRead   = 0
	sysMmap   = 9
	sysMunmap = 11
	sysOpenat = 257
	sysClose  = 3
	sysFstat  = 5

	protRead      = 0x1
	protWrite     = 0x2
	mapPrivate    = 0x02
	mapAnonymous  = 0x20
	atFDCWD       = -100
	oRDWR         = 0o2
)

func movIfNeeded(sb *strings.Builder, reg, arg string) {
	if arg != reg {
		sb.WriteString("  mov ")
		sb.WriteString(reg)
		sb.WriteByte(',')
		sb.WriteString(arg)
		sb.WriteByte('\n')
	}
}

func genExitOp(sb *strings.Builder, destLoc Loc, args []string) {
	movIfNeeded(sb, "rdi", args[0])
	sb.WriteString("  mov rax,60\n  syscall\n")
}

func genWriteOp(sb *strings.Builder, destLoc Loc, args []string) {
	movIfNeeded(sb, "rdi", args[0])
	movIfNeeded(sb, "rsi", args[1])
	movIfNeeded(sb, "rdx", args[2])
	sb.WriteString("  mov rax,1\n  syscall\n")
}

func genReadOp(sb *strings.Builder, destLoc Loc, args []string) {
	movIfNeeded(sb, "rdi", args[0])
	movIfNeeded(sb, "rsi", args[1])
	movIfNeeded(sb, "rdx", args[2])
	sb.WriteString("  mov rax,0\n  syscall\n")
	if destLoc.Str != "rax" {
		sb.WriteString("  mov ")
		sb.WriteString(destLoc.Str)
		sb.WriteString(",rax\n")
	}
}

func genMmapOp(sb *strings.Builder, destLoc Loc, args []string) {
	movIfNeeded(sb, "rsi", args[0])
	sb.WriteString("  mov rdi,0\n")
	sb.WriteString("  mov rdx,")
	sb.WriteString(strconv.Itoa(protRead | protWrite))
	sb.WriteString("\n  mov r10,")
	sb.WriteString(strconv.Itoa(mapPrivate | mapAnonymous))
	sb.WriteString("\n  mov r8,-1\n  mov r9,0\n  mov rax,9\n  syscall\n")
	sb.WriteString("  mov ")
	sb.WriteString(destLoc.Str)
	sb.WriteString(",rax\n")
}

func genMunmapOp(sb *strings.Builder, destLoc Loc, args []string) {
	movIfNeeded(sb, "rdi", args[0])
	movIfNeeded(sb, "rsi", args[1])
	sb.WriteString("  mov rax,11\n  syscall\n")
}

func genOpenatOp(sb *strings.Builder, destLoc Loc, args []string) {
	sb.WriteString("  mov rdi,")
	sb.WriteString(strconv.Itoa(atFDCWD))
	sb.WriteByte('\n')
	movIfNeeded(sb, "rsi", args[0])
	sb.WriteString("  mov rdx,")
	sb.WriteString(strconv.Itoa(oRDWR))
	sb.WriteString("\n  mov rax,257\n  syscall\n")
	sb.WriteString("  mov ")
	sb.WriteString(destLoc.Str)
	sb.WriteString(",rax\n")
}

func genCloseOp(sb *strings.Builder, destLoc Loc, args []string) {
	movIfNeeded(sb, "rdi", args[0])
	sb.WriteString("  mov rax,3\n  syscall\n")
}

func genFstatOp(sb *strings.Builder, destLoc Loc, args []string) {
	movIfNeeded(sb, "rdi", args[0])
	movIfNeeded(sb, "rsi", args[1])
	sb.WriteString("  mov rax,5\n  syscall\n")
}

// Linux is the SysV syscall op table layered on top of X86_64 for the
// Linux_X86_64 target.
func Linux() Table {
	ternaryArgs := []OpArg{
		{mvlc.KindS64, ArgConditionAny},
		{mvlc.KindS64, ArgConditionAny},
		{mvlc.KindS64, ArgConditionAny},
	}
	return Table{
		Ops: []Op{
			{"exit", mvlc.KindUnit, unOpArgs, false},
			{"write", mvlc.KindUnit, ternaryArgs, false},
			{"read", mvlc.KindS64, ternaryArgs, false},
			{"mmap", mvlc.KindS64, unOpArgs, false},
			{"munmap", mvlc.KindUnit, binOpArgs, false},
			{"openat", mvlc.KindS64, unOpArgs, false},
			{"close", mvlc.KindUnit, unOpArgs, false},
			{"fstat", mvlc.KindUnit, binOpArgs, false},
		},
		GenFuncs: []OpGenFunc{
			genExitOp,
			genWriteOp,
			genReadOp,
			genMmapOp,
			genMunmapOp,
			genOpenatOp,
			genCloseOp,
			genFstatOp,
		},
	}
}
