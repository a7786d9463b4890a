package domain

import "bytes"

// NormalizeModule rewrites every occurrence of the placeholder address in a
// module's encoded references to the target address, returning the canonical
// bytes to compare against the on-chain copy. The input is never modified; if
// the module contains no occurrence of the placeholder (or placeholder equals
// target) the original slice is returned unchanged.
//
// Local modules compiled before publication embed ZeroAddress wherever they
// refer to their own package, including references to sibling modules.
// Comparing raw bytes without this substitution fails for every such module,
// so the comparator applies it unconditionally.
func NormalizeModule(module []byte, placeholder, target Address) []byte {
	if placeholder == target || !bytes.Contains(module, placeholder[:]) {
		return module
	}
	return bytes.ReplaceAll(module, placeholder[:], target[:])
}
