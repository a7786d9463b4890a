package transport

import (
	"fmt"

	"github.com/pendergraft/sourceproof/internal/validation"
	"github.com/pendergraft/sourceproof/internal/verification/domain"
)

// ModulePayload is the wire form of one compiled module. Bytecode travels
// base64-encoded, which encoding/json gives us for free on []byte.
type ModulePayload struct {
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Bytecode []byte `json:"bytecode"`
}

// PackagePayload is the wire form of a compiled package, nested for
// dependencies the same way the build output nests them.
type PackagePayload struct {
	Name         string                     `json:"name"`
	Modules      []ModulePayload            `json:"modules"`
	Dependencies map[string]*PackagePayload `json:"dependencies,omitempty"`
	AddressTable map[string]string          `json:"address_table"`
}

// VerifyRequest is the body of POST /api/v1/verify. RootAddress selects an
// explicit verification target; without it RootMode decides whether the
// address embedded in the compiled modules is used.
type VerifyRequest struct {
	Package     PackagePayload `json:"package"`
	RootAddress string         `json:"root_address,omitempty"`
	RootMode    string         `json:"root_mode,omitempty"` // "skip" or "verify"
	VerifyDeps  bool           `json:"verify_deps"`
}

// VerifyResponse reports one verification outcome.
type VerifyResponse struct {
	Package     string `json:"package"`
	Fingerprint string `json:"fingerprint"`
	Verified    bool   `json:"verified"`
	Result      string `json:"result"`
	Message     string `json:"message,omitempty"`
}

// VerificationSummary is one audit-log entry as returned by the list and get
// endpoints.
type VerificationSummary struct {
	ID          string `json:"id"`
	Package     string `json:"package"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Address     string `json:"address,omitempty"`
	Operation   string `json:"operation"`
	Result      string `json:"result"`
	Detail      string `json:"detail,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
	CreatedAt   string `json:"created_at"`
}

// ListVerificationsResponse is the body of GET /api/v1/verifications.
type ListVerificationsResponse struct {
	Verifications []VerificationSummary `json:"verifications"`
	HasMore       bool                  `json:"has_more"`
	NextCursor    string                `json:"next_cursor,omitempty"`
}

// toDomain converts the wire form into the engine's package model, validating
// identifiers and addresses as it goes.
func (p *PackagePayload) toDomain() (*domain.CompiledPackage, error) {
	if err := validation.ValidateIdentifier(p.Name); err != nil {
		return nil, fmt.Errorf("package name: %w", err)
	}

	pkg := &domain.CompiledPackage{
		Name:         p.Name,
		AddressTable: make(map[string]domain.Address),
	}
	for name, addr := range p.AddressTable {
		parsed, err := domain.ParseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("address table entry %q: %w", name, err)
		}
		pkg.AddressTable[name] = parsed
	}

	for _, m := range p.Modules {
		if err := validation.ValidateIdentifier(m.Name); err != nil {
			return nil, fmt.Errorf("module name: %w", err)
		}
		mod := domain.CompiledModule{Name: m.Name, Bytecode: m.Bytecode}
		if m.Address != "" {
			parsed, err := domain.ParseAddress(m.Address)
			if err != nil {
				return nil, fmt.Errorf("module %q address: %w", m.Name, err)
			}
			mod.Address = parsed
		}
		pkg.Modules = append(pkg.Modules, mod)
	}

	if len(p.Dependencies) > 0 {
		pkg.Dependencies = make(map[string]*domain.CompiledPackage, len(p.Dependencies))
		for name, dep := range p.Dependencies {
			converted, err := dep.toDomain()
			if err != nil {
				return nil, fmt.Errorf("dependency %q: %w", name, err)
			}
			pkg.Dependencies[name] = converted
		}
	}

	return pkg, nil
}
