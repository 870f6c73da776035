package vectordb

import (
	"context"

	"github.com/mailvec/mailvec/pkg/types"
)

// ObjectFailure reports one object the vector database rejected
type ObjectFailure struct {
	MailID  string
	Message string
}

// Sink is the pipeline's view of the vector database. Each worker owns its
// own Sink instance; instances are never shared between goroutines.
type Sink interface {
	// EnsureCollection creates the multi-tenant collection if missing.
	// Idempotent. Called once at startup from the orchestrator's sink only.
	EnsureCollection(ctx context.Context) error

	// EnsureTenant creates the per-domain tenant if missing. Idempotent;
	// workers call it lazily on first contact with a domain.
	EnsureTenant(ctx context.Context, domain string) error

	// ImportBatch bulk-inserts the mails into the domain's tenant and
	// returns per-object failures. A non-nil error means the whole batch
	// failed (transport, auth); the caller treats every object as failed.
	ImportBatch(ctx context.Context, domain string, mails []*types.Mail) ([]ObjectFailure, error)

	// Close releases the client
	Close() error
}
