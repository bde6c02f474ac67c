package ports

import (
	"context"

	"github.com/nexusportal/backend/internal/domain/models"
)

// SessionPersistence stores web form sessions across requests. Lookup
// misses return (nil, nil). Save must complete (or fail) before the
// caller issues a redirect, so the next request never resumes into
// stale state. Session expiry is a store policy (TTL), not engine logic.
type SessionPersistence interface {
	// Load fetches a session by its id
	Load(ctx context.Context, sessionID string) (*models.WebFormSession, error)

	// LoadByPrimaryRecord fetches the active session whose sticky primary
	// record matches, for resuming a returning authenticated user
	LoadByPrimaryRecord(ctx context.Context, webFormID, recordID string) (*models.WebFormSession, error)

	// LoadByIdentity fetches the active session for a contact or
	// anonymous identity
	LoadByIdentity(ctx context.Context, webFormID, identity string) (*models.WebFormSession, error)

	// Save persists the session and returns its id, assigning one if new
	Save(ctx context.Context, session *models.WebFormSession) (string, error)

	// Deactivate marks the session inactive. History is kept for audit.
	Deactivate(ctx context.Context, sessionID string) error
}
