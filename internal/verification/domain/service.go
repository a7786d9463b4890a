package domain

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/pendergraft/sourceproof/internal/ledger"
)

// defaultFanOut bounds concurrent per-address lookups when the read client
// has no batch support.
const defaultFanOut = 8

// Verifier checks that locally compiled package bytecode matches what is
// published on-chain. It holds no state across calls beyond the injected read
// client: verification is a pure read-and-compare operation with no retries
// and no side effects.
type Verifier struct {
	resolver resolver
	fanOut   int
	failFast bool
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithFanOut bounds the number of concurrent dependency lookups.
func WithFanOut(n int) VerifierOption {
	return func(v *Verifier) {
		if n > 0 {
			v.fanOut = n
		}
	}
}

// WithFailFast controls error aggregation. When true (the default) the first
// failure in stable order is returned; when false all dependency and root
// failures are collected and joined.
func WithFailFast(failFast bool) VerifierOption {
	return func(v *Verifier) {
		v.failFast = failFast
	}
}

// NewVerifier creates a verifier backed by the given read client.
func NewVerifier(client ledger.ReadClient, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		resolver: resolver{client: client},
		fanOut:   defaultFanOut,
		failFast: true,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyPackageDeps verifies every published dependency in pkg's closure
// against its on-chain copy. The root package itself is not checked.
func (v *Verifier) VerifyPackageDeps(ctx context.Context, pkg *CompiledPackage) error {
	return v.verifyDeps(ctx, pkg)
}

// VerifyPackageRoot verifies the root package (including any bundled
// unpublished dependency modules) against the package published at addr.
// The reserved placeholder is rejected before any network call.
func (v *Verifier) VerifyPackageRoot(ctx context.Context, pkg *CompiledPackage, addr Address) error {
	if addr.IsZero() {
		return ErrZeroTargetAddress
	}
	return v.verifyRoot(ctx, pkg, addr)
}

// VerifyPackageRootAndDeps verifies both the root package at addr and every
// published dependency. The two checks are independent and run concurrently;
// when both fail, the dependency failure is reported first so the outcome
// does not depend on scheduling.
func (v *Verifier) VerifyPackageRootAndDeps(ctx context.Context, pkg *CompiledPackage, addr Address) error {
	if addr.IsZero() {
		return ErrZeroTargetAddress
	}

	var depErr, rootErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		depErr = v.verifyDeps(ctx, pkg)
	}()
	rootErr = v.verifyRoot(ctx, pkg, addr)
	<-done

	if v.failFast {
		if depErr != nil {
			return depErr
		}
		return rootErr
	}
	return errors.Join(depErr, rootErr)
}

// VerifyPackage dispatches over the root mode and the dependency toggle.
// SourceModeSkip verifies nothing about the root; SourceModeVerify verifies
// it against the address already embedded in the compiled root modules, which
// requires the package to have been compiled against its real deployed
// address.
func (v *Verifier) VerifyPackage(ctx context.Context, pkg *CompiledPackage, verifyDeps bool, mode SourceMode) error {
	var errs []error

	if verifyDeps {
		if err := v.verifyDeps(ctx, pkg); err != nil {
			if v.failFast {
				return err
			}
			errs = append(errs, err)
		}
	}

	if mode == SourceModeVerify {
		addr, err := v.embeddedRootAddress(pkg)
		if err == nil {
			err = v.verifyRoot(ctx, pkg, addr)
		}
		if err != nil {
			if v.failFast {
				return err
			}
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// embeddedRootAddress extracts the self-address the root modules were
// compiled against.
func (v *Verifier) embeddedRootAddress(pkg *CompiledPackage) (Address, error) {
	if len(pkg.Modules) == 0 {
		return ZeroAddress, &InvalidModuleError{
			Module: pkg.Name,
			Reason: "package has no compiled modules",
		}
	}
	m := pkg.Modules[0]
	if m.Address.IsZero() {
		return ZeroAddress, &InvalidModuleError{
			Module: m.Name,
			Reason: "module is compiled against the placeholder address; republish or compile against the deployed address",
		}
	}
	return m.Address, nil
}

func (v *Verifier) verifyDeps(ctx context.Context, pkg *CompiledPackage) error {
	targets := dependencyTargets(pkg)
	if len(targets) == 0 {
		return nil
	}

	addrs := make([]Address, len(targets))
	for i, t := range targets {
		addrs[i] = t.Address
	}

	results, err := v.resolveFanOut(ctx, addrs)
	if err != nil {
		return err
	}

	// Comparison runs sequentially in closure order so the reported error is
	// deterministic regardless of lookup completion order.
	var errs []error
	for i, t := range targets {
		err := v.checkDependency(t, results[i])
		if err == nil {
			continue
		}
		if v.failFast {
			return err
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (v *Verifier) checkDependency(t dependencyTarget, data OnChainPackageData) error {
	switch data := data.(type) {
	case OnChainNotFound:
		return &ObjectLookupError{Address: data.Address, Err: data.Err}
	case OnChainNonPackage:
		return &NotAPackageError{Address: data.Address, Kind: data.Kind}
	case OnChainPackage:
		return compareModules(t.modules, data.Modules, t.Package, t.Address)
	default:
		return &ObjectReadError{Err: errors.New("unknown on-chain data variant")}
	}
}

func (v *Verifier) verifyRoot(ctx context.Context, pkg *CompiledPackage, addr Address) error {
	data, err := v.resolver.resolve(ctx, addr)
	if err != nil {
		return err
	}

	// Bundled unpublished dependencies were published as part of the root,
	// so their modules belong to the root's on-chain footprint.
	local := append([]CompiledModule{}, pkg.Modules...)
	local = append(local, UnpublishedModules(pkg)...)

	switch data := data.(type) {
	case OnChainNotFound:
		return &ObjectLookupError{Address: data.Address, Err: data.Err}
	case OnChainNonPackage:
		return &NotAPackageError{Address: data.Address, Kind: data.Kind}
	case OnChainPackage:
		return compareModules(local, data.Modules, pkg.Name, addr)
	default:
		return &ObjectReadError{Err: errors.New("unknown on-chain data variant")}
	}
}

// resolveFanOut fetches all addresses, preferring one batch round trip when
// the client supports it and a bounded concurrent fan-out otherwise. Results
// are positional with the input.
func (v *Verifier) resolveFanOut(ctx context.Context, addrs []Address) ([]OnChainPackageData, error) {
	if _, ok := v.resolver.client.(ledger.BatchReadClient); ok {
		return v.resolver.resolveAll(ctx, addrs)
	}

	results := make([]OnChainPackageData, len(addrs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.fanOut)
	for i, addr := range addrs {
		g.Go(func() error {
			data, err := v.resolver.resolve(ctx, addr)
			if err != nil {
				return err
			}
			results[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
