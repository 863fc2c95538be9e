// Package store is the record store adapter: an append-only ledger of
// custody entries plus reference tables of known keys and employees. The
// production implementation is postgres; Memory backs tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable marks a transient connectivity failure. Callers surface it
// as a retry prompt; it never terminates handling of unrelated keys.
var ErrUnavailable = errors.New("record store unavailable")

// Store is the surface the workflow consumes. Entry listings are in row
// (insertion) order.
type Store interface {
	AppendCustodyEntry(ctx context.Context, e CustodyEntry) (RowRef, error)
	ListCustodyEntries(ctx context.Context) ([]CustodyEntry, error)
	ListOpenCustodyEntries(ctx context.Context) ([]CustodyEntry, error)
	SetReturnedAt(ctx context.Context, ref RowRef, at time.Time) error
	ListKeyReferences(ctx context.Context) ([]KeyReference, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	AppendEmployee(ctx context.Context, emp Employee) error
}

// Admin is the administrative cache-control surface: manual invalidation
// and a dump of the reference-table cache. The postgres adapter implements
// it; callers that only read the ledger never see it.
type Admin interface {
	InvalidateCache()
	DumpCache() string
}

// mapError wraps low-level driver failures that look like connectivity
// problems into ErrUnavailable. String-based on purpose: it keeps driver
// packages out of the callers, and pq errors carry no stable sentinel for
// "the network ate it".
func mapError(err error) error {
	if err == nil {
		return nil
	}
	le := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused", "connection reset", "broken pipe",
		"timeout", "timed out", "bad connection", "eof",
		"no such host", "network is unreachable",
	} {
		if strings.Contains(le, marker) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}
