package driven

import (
	"context"
	"errors"

	"github.com/mgrist/acm-roster/internal/domain/model"
)

// ErrNoCredential is returned by CredentialStore.Open when nothing is stored.
var ErrNoCredential = errors.New("no credential stored")

// CredentialStore defines the driven port for the session-scoped credential
// used for silent re-authentication. The adapter is responsible for keeping
// the value sealed; this interface operates on plaintext at the boundary.
type CredentialStore interface {
	// Seal stores or replaces the credential.
	Seal(ctx context.Context, cred model.Credential) error

	// Open returns the stored credential, or ErrNoCredential.
	Open(ctx context.Context) (model.Credential, error)

	// Clear forgets the stored credential. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}
