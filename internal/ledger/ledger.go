// Package ledger provides read access to objects on the distributed ledger.
// It is the sole network boundary of the verifier: the domain layer consumes
// the ReadClient interface and never talks to the wire itself.
package ledger

import (
	"context"
	"errors"
)

// KindPackage is the ledger's type tag for package objects. Any other kind is
// ordinary object data.
const KindPackage = "package"

// ErrObjectNotFound is returned by GetObjectData when the ledger holds no
// object at the requested address. It is a data-layer result; transport
// failures are returned as distinct errors.
var ErrObjectNotFound = errors.New("ledger: object not found")

// ObjectData is the payload of an object read. Modules is populated only for
// package objects, mapping module name to raw bytecode bytes.
type ObjectData struct {
	Address string
	Kind    string
	Modules map[string][]byte
}

// IsPackage reports whether the object is a package.
func (o *ObjectData) IsPackage() bool {
	return o.Kind == KindPackage
}

// ReadClient reads object data from the ledger.
type ReadClient interface {
	// GetObjectData fetches the object at address. Returns ErrObjectNotFound
	// when no object exists there; any other error is a transport failure.
	GetObjectData(ctx context.Context, address string) (*ObjectData, error)
}

// BatchReadClient is implemented by read clients that can fetch several
// objects in one round trip. Results are positional: entry i corresponds to
// addresses[i], and a nil entry means no object exists at that address. A
// non-nil error is a transport failure covering the whole batch.
type BatchReadClient interface {
	MultiGetObjectData(ctx context.Context, addresses []string) ([]*ObjectData, error)
}
