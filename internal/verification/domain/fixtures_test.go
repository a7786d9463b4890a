package domain

// Test fixtures shared across the domain tests. moduleBytes builds a fake
// bytecode blob that embeds the module's self-address the way real bytecode
// embeds package references, so normalization behaves as it would on genuine
// compiler output.

func moduleBytes(name string, self Address, payload string) []byte {
	var b []byte
	b = append(b, []byte("\x01mod:"+name+":")...)
	b = append(b, self[:]...)
	b = append(b, []byte(payload)...)
	b = append(b, self[:]...)
	return b
}

// makePackage builds a compiled package whose modules embed self as their
// declared address. The address table carries the package's own entry.
func makePackage(name string, self Address, moduleNames ...string) *CompiledPackage {
	pkg := &CompiledPackage{
		Name:         name,
		Dependencies: map[string]*CompiledPackage{},
		AddressTable: map[string]Address{name: self},
	}
	for _, mn := range moduleNames {
		pkg.Modules = append(pkg.Modules, CompiledModule{
			Name:     mn,
			Address:  self,
			Bytecode: moduleBytes(mn, self, "body of "+name+"::"+mn),
		})
	}
	return pkg
}

// addDependency wires dep into pkg under its own name at the given address
// (zero means bundled unpublished).
func addDependency(pkg, dep *CompiledPackage, addr Address) {
	pkg.Dependencies[dep.Name] = dep
	pkg.AddressTable[dep.Name] = addr
}

// publishModules returns the on-chain module map that publishing the given
// modules at addr would produce: every placeholder reference rewritten to the
// real address.
func publishModules(addr Address, modules ...CompiledModule) map[string][]byte {
	out := make(map[string][]byte, len(modules))
	for _, m := range modules {
		out[m.Name] = NormalizeModule(m.Bytecode, ZeroAddress, addr)
	}
	return out
}
