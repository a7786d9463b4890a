// Package domain contains the bytecode source verification engine: the data
// model for compiled and on-chain packages, the address normalizer, the
// dependency closure walker, the bytecode comparator, and the verifier that
// ties them together against a ledger read client.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// AddressLength is the byte length of a ledger address.
const AddressLength = 32

// Address is a 32-byte ledger address.
type Address [AddressLength]byte

// ZeroAddress is the reserved placeholder meaning "not yet assigned an
// on-chain location". Compiled modules carry it before publication.
var ZeroAddress = Address{}

// ParseAddress parses a hex address, with or without a 0x prefix. Short input
// is left-padded with zeros, matching how addresses are written in package
// manifests.
func ParseAddress(s string) (Address, error) {
	var a Address
	h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if h == "" {
		return a, fmt.Errorf("empty address")
	}
	if len(h) > 2*AddressLength {
		return a, fmt.Errorf("address too long: %d hex chars (max %d)", len(h), 2*AddressLength)
	}
	if len(h)%2 == 1 {
		h = "0" + h
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(a[AddressLength-len(b):], b)
	return a, nil
}

// MustParseAddress is ParseAddress for known-good literals; it panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the 0x-prefixed hex form.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the reserved placeholder.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// CompiledModule is a single named bytecode unit produced by the build
// toolchain. Address is the self-address embedded at compile time; it is
// either ZeroAddress (unpublished) or the package's real on-chain address.
type CompiledModule struct {
	Name     string
	Address  Address
	Bytecode []byte
}

// CompiledPackage is the build toolchain's output for one source package: its
// own modules, its direct dependencies (each itself a CompiledPackage), and
// the named-address table resolved at compile time. The table holds an entry
// for the package's own name and one per dependency name; a zero entry means
// the dependency was bundled unpublished.
type CompiledPackage struct {
	Name         string
	Modules      []CompiledModule
	Dependencies map[string]*CompiledPackage
	AddressTable map[string]Address
}

// RootAddress returns the self-address the root modules were compiled
// against, taken from the address table entry for the package's own name.
func (p *CompiledPackage) RootAddress() Address {
	return p.AddressTable[p.Name]
}

// Fingerprint returns a sha256 digest over the root module names and bytecode
// in lexicographic order, a stable identifier for what was submitted.
func (p *CompiledPackage) Fingerprint() string {
	modules := make([]CompiledModule, len(p.Modules))
	copy(modules, p.Modules)
	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })

	h := sha256.New()
	for _, m := range modules {
		h.Write([]byte(m.Name))
		h.Write([]byte{0})
		h.Write(m.Bytecode)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ModuleNames returns the root module names in lexicographic order.
func (p *CompiledPackage) ModuleNames() []string {
	names := make([]string, 0, len(p.Modules))
	for _, m := range p.Modules {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}

// DependencyAddress names one distinct dependency package and the on-chain
// address it must be verified against.
type DependencyAddress struct {
	Package string
	Address Address
}

// OnChainPackageData is the resolver's classification of what lives at an
// address. Exactly one of OnChainPackage, OnChainNonPackage or OnChainNotFound
// is produced per lookup; callers must switch exhaustively.
type OnChainPackageData interface {
	onChainPackageData()
}

// OnChainPackage is a package object: module name to raw bytecode bytes.
type OnChainPackage struct {
	Address Address
	Modules map[string][]byte
}

// OnChainNonPackage is a non-package object found where a package was
// expected. Kind is the ledger's type tag for the object.
type OnChainNonPackage struct {
	Address Address
	Kind    string
}

// OnChainNotFound means the ledger holds no object at the address.
type OnChainNotFound struct {
	Address Address
	Err     error
}

func (OnChainPackage) onChainPackageData()    {}
func (OnChainNonPackage) onChainPackageData() {}
func (OnChainNotFound) onChainPackageData()   {}

// SourceMode selects how VerifyPackage treats the root package.
type SourceMode int

const (
	// SourceModeSkip performs no root verification.
	SourceModeSkip SourceMode = iota
	// SourceModeVerify verifies the root against the address already embedded
	// in its compiled modules. Requires the root to have been compiled against
	// its real deployed address.
	SourceModeVerify
)

func (m SourceMode) String() string {
	switch m {
	case SourceModeSkip:
		return "skip"
	case SourceModeVerify:
		return "verify"
	default:
		return fmt.Sprintf("SourceMode(%d)", int(m))
	}
}
