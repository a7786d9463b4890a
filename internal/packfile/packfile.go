// Package packfile loads compiled packages from a build output directory.
//
// A build directory looks like:
//
//	sourceproof.toml        package manifest
//	bytecode_modules/*.mv   compiled module bytecode
//	deps/<name>/            nested build directories for dependencies
package packfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/pendergraft/sourceproof/internal/validation"
	"github.com/pendergraft/sourceproof/internal/verification/domain"
)

const (
	// ManifestName is the manifest file expected at the build directory root.
	ManifestName = "sourceproof.toml"
	// ModulesDir holds the compiled module bytecode files.
	ModulesDir = "bytecode_modules"
	// DepsDir holds nested build directories for dependencies.
	DepsDir = "deps"
	// moduleExt is the bytecode file extension.
	moduleExt = ".mv"
)

// Manifest is the sourceproof.toml package manifest.
type Manifest struct {
	Package   ManifestPackage   `toml:"package"`
	Addresses map[string]string `toml:"addresses"`
}

// ManifestPackage is the [package] section of the manifest.
type ManifestPackage struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Load reads the build directory at dir into a CompiledPackage, dependencies
// included. The manifest's address table entry for a dependency name decides
// whether that dependency is treated as published or bundled.
func Load(dir string) (*domain.CompiledPackage, error) {
	manifest, err := readManifest(dir)
	if err != nil {
		return nil, err
	}

	pkg := &domain.CompiledPackage{
		Name:         manifest.Package.Name,
		AddressTable: make(map[string]domain.Address, len(manifest.Addresses)),
	}

	for name, addr := range manifest.Addresses {
		parsed, err := domain.ParseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("%s: address for %q: %w", ManifestName, name, err)
		}
		pkg.AddressTable[name] = parsed
	}

	selfAddr := pkg.AddressTable[pkg.Name]
	pkg.Modules, err = readModules(dir, selfAddr)
	if err != nil {
		return nil, err
	}

	deps, err := readDependencies(dir)
	if err != nil {
		return nil, err
	}
	pkg.Dependencies = deps

	return pkg, nil
}

func readManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestName)
	var manifest Manifest
	if _, err := toml.DecodeFile(path, &manifest); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	if err := validation.ValidateIdentifier(manifest.Package.Name); err != nil {
		return nil, fmt.Errorf("%s: package name: %w", ManifestName, err)
	}
	if manifest.Package.Version != "" {
		if err := validation.ValidateVersion(manifest.Package.Version); err != nil {
			return nil, fmt.Errorf("%s: version: %w", ManifestName, err)
		}
	}
	if _, ok := manifest.Addresses[manifest.Package.Name]; !ok {
		return nil, fmt.Errorf("%s: addresses table has no entry for package %q", ManifestName, manifest.Package.Name)
	}

	return &manifest, nil
}

func readModules(dir string, selfAddr domain.Address) ([]domain.CompiledModule, error) {
	modulesDir := filepath.Join(dir, ModulesDir)
	entries, err := os.ReadDir(modulesDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ModulesDir, err)
	}

	var modules []domain.CompiledModule
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), moduleExt) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), moduleExt)
		if err := validation.ValidateIdentifier(name); err != nil {
			return nil, fmt.Errorf("module file %s: %w", entry.Name(), err)
		}
		bytecode, err := os.ReadFile(filepath.Join(modulesDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading module %s: %w", entry.Name(), err)
		}
		modules = append(modules, domain.CompiledModule{
			Name:     name,
			Address:  selfAddr,
			Bytecode: bytecode,
		})
	}

	if len(modules) == 0 {
		return nil, fmt.Errorf("no %s files in %s", moduleExt, modulesDir)
	}
	return modules, nil
}

func readDependencies(dir string) (map[string]*domain.CompiledPackage, error) {
	depsDir := filepath.Join(dir, DepsDir)
	entries, err := os.ReadDir(depsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", DepsDir, err)
	}

	deps := make(map[string]*domain.CompiledPackage)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dep, err := Load(filepath.Join(depsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("dependency %s: %w", entry.Name(), err)
		}
		deps[dep.Name] = dep
	}
	if len(deps) == 0 {
		return nil, nil
	}
	return deps, nil
}
