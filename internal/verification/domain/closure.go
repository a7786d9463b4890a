package domain

import "sort"

// DependencyClosure enumerates every published dependency package reachable
// from pkg, directly or transitively, as (name, address) pairs. The closure
// is deduplicated by address, so a diamond graph yields each physical
// package exactly once, and returned in lexicographic package-name order so
// callers see deterministic results.
//
// Dependencies whose address-table entry is the placeholder are bundled
// unpublished packages: they have no separate on-chain footprint and are
// excluded here (see UnpublishedModules), but their own dependencies are
// still walked.
func DependencyClosure(pkg *CompiledPackage) []DependencyAddress {
	targets := dependencyTargets(pkg)
	deps := make([]DependencyAddress, len(targets))
	for i, t := range targets {
		deps[i] = t.DependencyAddress
	}
	return deps
}

// dependencyTarget pairs a closure entry with the local module set it must be
// compared against.
type dependencyTarget struct {
	DependencyAddress
	modules []CompiledModule
}

func dependencyTargets(pkg *CompiledPackage) []dependencyTarget {
	seen := make(map[Address]bool)
	var targets []dependencyTarget

	var walk func(p *CompiledPackage)
	walk = func(p *CompiledPackage) {
		for _, name := range sortedDependencyNames(p) {
			dep := p.Dependencies[name]
			addr := p.AddressTable[name]
			if !addr.IsZero() && !seen[addr] {
				seen[addr] = true
				targets = append(targets, dependencyTarget{
					DependencyAddress: DependencyAddress{Package: name, Address: addr},
					modules:           dep.Modules,
				})
			}
			walk(dep)
		}
	}
	walk(pkg)

	sort.Slice(targets, func(i, j int) bool {
		if targets[i].Package != targets[j].Package {
			return targets[i].Package < targets[j].Package
		}
		return targets[i].Address.String() < targets[j].Address.String()
	})
	return targets
}

// UnpublishedModules collects the modules of every bundled unpublished
// dependency reachable from pkg. These modules were published as part of the
// root package, so the verifier folds them into the root comparison instead
// of resolving their packages on-chain.
func UnpublishedModules(pkg *CompiledPackage) []CompiledModule {
	seen := make(map[string]bool)
	var modules []CompiledModule

	var walk func(p *CompiledPackage)
	walk = func(p *CompiledPackage) {
		for _, name := range sortedDependencyNames(p) {
			dep := p.Dependencies[name]
			if p.AddressTable[name].IsZero() && !seen[name] {
				seen[name] = true
				modules = append(modules, dep.Modules...)
			}
			walk(dep)
		}
	}
	walk(pkg)

	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })
	return modules
}

func sortedDependencyNames(p *CompiledPackage) []string {
	names := make([]string, 0, len(p.Dependencies))
	for name := range p.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
