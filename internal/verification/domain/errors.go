package domain

import (
	"errors"
	"fmt"
)

// ErrZeroTargetAddress is returned when the reserved placeholder address is
// supplied as an explicit verification target. It is raised before any
// network interaction.
var ErrZeroTargetAddress = errors.New("verification target address is the reserved placeholder")

// InvalidModuleError is returned when root verification in embedded-address
// mode finds a root module still carrying the placeholder self-address, i.e.
// the package was never compiled against a real deployed address.
type InvalidModuleError struct {
	Module string
	Reason string
}

func (e *InvalidModuleError) Error() string {
	return fmt.Sprintf("module %q cannot be verified: %s", e.Module, e.Reason)
}

// ObjectLookupError is returned when the ledger holds no object at a
// dependency address.
type ObjectLookupError struct {
	Address Address
	Err     error
}

func (e *ObjectLookupError) Error() string {
	return fmt.Sprintf("no object found at %s: %v", e.Address, e.Err)
}

func (e *ObjectLookupError) Unwrap() error { return e.Err }

// NotAPackageError is returned when an object exists at a dependency address
// but is not a package. The address is semantically wrong, not merely stale.
type NotAPackageError struct {
	Address Address
	Kind    string
}

func (e *NotAPackageError) Error() string {
	return fmt.Sprintf("object of kind %q found at %s where a package was expected", e.Kind, e.Address)
}

// OnChainModuleNotFoundError is returned when a local module has no
// same-named counterpart in the on-chain package.
type OnChainModuleNotFoundError struct {
	Package string
	Module  string
}

func (e *OnChainModuleNotFoundError) Error() string {
	return fmt.Sprintf("on-chain version of package %s is missing module %q", e.Package, e.Module)
}

// LocalModuleNotFoundError is returned when an on-chain module has no
// same-named counterpart in the local package.
type LocalModuleNotFoundError struct {
	Address Address
	Module  string
}

func (e *LocalModuleNotFoundError) Error() string {
	return fmt.Sprintf("local package at %s is missing module %q present on-chain", e.Address, e.Module)
}

// BytecodeMismatchError is returned when a module exists on both sides but
// the normalized bytes differ.
type BytecodeMismatchError struct {
	Address Address
	Package string
	Module  string
}

func (e *BytecodeMismatchError) Error() string {
	return fmt.Sprintf("local bytecode for module %s::%s does not match on-chain bytecode at %s", e.Package, e.Module, e.Address)
}

// ObjectReadError is returned on a transport-level failure while reading from
// the ledger. It is not attributable to any one package or module and aborts
// the whole verification call.
type ObjectReadError struct {
	Err error
}

func (e *ObjectReadError) Error() string {
	return fmt.Sprintf("reading object from ledger: %v", e.Err)
}

func (e *ObjectReadError) Unwrap() error { return e.Err }

// ErrorKind maps a verification outcome to a stable label for metrics and
// audit records. Success maps to "ok"; errors outside the taxonomy map to
// "internal".
func ErrorKind(err error) string {
	var (
		invalidModule   *InvalidModuleError
		objectLookup    *ObjectLookupError
		notAPackage     *NotAPackageError
		onChainMissing  *OnChainModuleNotFoundError
		localMissing    *LocalModuleNotFoundError
		mismatch        *BytecodeMismatchError
		objectRead      *ObjectReadError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrZeroTargetAddress):
		return "zero_target_address"
	case errors.As(err, &invalidModule):
		return "invalid_module"
	case errors.As(err, &objectLookup):
		return "object_lookup_failed"
	case errors.As(err, &notAPackage):
		return "not_a_package"
	case errors.As(err, &onChainMissing):
		return "on_chain_module_not_found"
	case errors.As(err, &localMissing):
		return "local_module_not_found"
	case errors.As(err, &mismatch):
		return "bytecode_mismatch"
	case errors.As(err, &objectRead):
		return "object_read_failed"
	default:
		return "internal"
	}
}
