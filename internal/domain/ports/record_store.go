package ports

import (
	"context"

	"github.com/nexusportal/backend/pkg/models"
)

// RecordStore provides record lookups for reference resolution.
// A miss returns (nil, nil): "not found" is an expected outcome, not an
// error. Errors are reserved for transport or query failures.
type RecordStore interface {
	// Get fetches a record by its primary key
	Get(ctx context.Context, entityName, keyName, id string) (models.SObject, error)

	// FindOne fetches the first record whose attribute equals value
	FindOne(ctx context.Context, entityName, attributeName string, value interface{}) (models.SObject, error)

	// FindRelated follows a named relationship from a record
	FindRelated(ctx context.Context, record models.SObject, relationshipName string) (models.SObject, error)
}
