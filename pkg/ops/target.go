package ops

import "github.com/mvlc-project/mvlc/pkg/mvlc"

// ForTarget returns the combined op table for target: the bare x86-64
// table for Raw_X86_64, or the Linux syscall table concatenated in front
// of the x86-64 table for Linux_X86_64 (matching the order
// get_ops_linux/get_ops_x86_64 are concatenated in the original
// library's program_gen_asm_x86_64).
func ForTarget(target mvlc.TargetPlatform) (Table, error) {
	switch target {
	case mvlc.Raw_X86_64:
		return X86_64(), nil
	case mvlc.Linux_X86_64:
		return Concat(Linux(), X86_64())
	default:
		return Table{}, errUnknownTarget(target)
	}
}

type errUnknownTarget mvlc.TargetPlatform

func (e errUnknownTarget) Error() string {
	return "ops: unknown target platform " + mvlc.TargetPlatform(e).String()
}
