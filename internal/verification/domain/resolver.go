package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/pendergraft/sourceproof/internal/ledger"
)

// resolver translates candidate addresses into OnChainPackageData values via
// the ledger read client. It owns the distinction between "no object at the
// address" (a data-layer result, folded into the variant) and a transport
// failure (an *ObjectReadError aborting the whole verification call).
type resolver struct {
	client ledger.ReadClient
}

// resolve fetches and classifies the object at a single address. Querying the
// reserved placeholder is never meaningful and is rejected before any network
// call.
func (r resolver) resolve(ctx context.Context, addr Address) (OnChainPackageData, error) {
	if addr.IsZero() {
		return nil, ErrZeroTargetAddress
	}

	obj, err := r.client.GetObjectData(ctx, addr.String())
	switch {
	case errors.Is(err, ledger.ErrObjectNotFound):
		return OnChainNotFound{Address: addr, Err: err}, nil
	case err != nil:
		return nil, &ObjectReadError{Err: err}
	}
	return classify(addr, obj), nil
}

// resolveAll fetches several addresses, using one batch round trip when the
// client supports it and per-address lookups otherwise. Results are
// positional with the input.
func (r resolver) resolveAll(ctx context.Context, addrs []Address) ([]OnChainPackageData, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	for _, addr := range addrs {
		if addr.IsZero() {
			return nil, ErrZeroTargetAddress
		}
	}

	batch, ok := r.client.(ledger.BatchReadClient)
	if !ok {
		out := make([]OnChainPackageData, len(addrs))
		for i, addr := range addrs {
			data, err := r.resolve(ctx, addr)
			if err != nil {
				return nil, err
			}
			out[i] = data
		}
		return out, nil
	}

	wire := make([]string, len(addrs))
	for i, addr := range addrs {
		wire[i] = addr.String()
	}
	objs, err := batch.MultiGetObjectData(ctx, wire)
	if err != nil {
		return nil, &ObjectReadError{Err: err}
	}
	if len(objs) != len(addrs) {
		return nil, &ObjectReadError{Err: fmt.Errorf("batch read returned %d results for %d addresses", len(objs), len(addrs))}
	}

	out := make([]OnChainPackageData, len(addrs))
	for i, obj := range objs {
		if obj == nil {
			out[i] = OnChainNotFound{Address: addrs[i], Err: ledger.ErrObjectNotFound}
			continue
		}
		out[i] = classify(addrs[i], obj)
	}
	return out, nil
}

func classify(addr Address, obj *ledger.ObjectData) OnChainPackageData {
	if !obj.IsPackage() {
		return OnChainNonPackage{Address: addr, Kind: obj.Kind}
	}
	modules := make(map[string][]byte, len(obj.Modules))
	for name, b := range obj.Modules {
		modules[name] = b
	}
	return OnChainPackage{Address: addr, Modules: modules}
}
