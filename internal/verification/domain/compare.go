package domain

import (
	"bytes"
	"sort"
)

// compareModules checks one package's local module set against its resolved
// on-chain module set. Every local module is normalized against the target
// address before the byte comparison.
//
// Modules are visited in lexicographic name order and the first divergence is
// returned, so repeated runs over the same inputs always report the same
// error. Local modules are checked first (missing on-chain, then mismatch),
// then on-chain modules with no local counterpart.
func compareModules(local []CompiledModule, onChain map[string][]byte, pkgName string, target Address) error {
	localByName := make(map[string]CompiledModule, len(local))
	for _, m := range local {
		localByName[m.Name] = m
	}

	for _, name := range sortedModuleNames(localByName) {
		m := localByName[name]
		onChainBytes, ok := onChain[name]
		if !ok {
			return &OnChainModuleNotFoundError{Package: pkgName, Module: name}
		}
		normalized := NormalizeModule(m.Bytecode, ZeroAddress, target)
		if !bytes.Equal(normalized, onChainBytes) {
			return &BytecodeMismatchError{Address: target, Package: pkgName, Module: name}
		}
	}

	for _, name := range sortedByteMapNames(onChain) {
		if _, ok := localByName[name]; !ok {
			return &LocalModuleNotFoundError{Address: target, Module: name}
		}
	}

	return nil
}

func sortedModuleNames(m map[string]CompiledModule) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedByteMapNames(m map[string][]byte) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
