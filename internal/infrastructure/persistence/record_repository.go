package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nexusportal/backend/pkg/models"
)

// RecordRepository reads portal entity records. Entity names map straight
// to table names; the schema manager guarantees they exist before any web
// form referencing them goes live. A miss is (nil, nil).
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a new RecordRepository
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Get fetches one record by its primary key
func (r *RecordRepository) Get(ctx context.Context, entityName, keyName, id string) (models.SObject, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1", entityName, keyName)
	return r.queryOne(ctx, query, id)
}

// FindOne fetches the first record whose attribute matches the value
func (r *RecordRepository) FindOne(ctx context.Context, entityName, attributeName string, value interface{}) (models.SObject, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1", entityName, attributeName)
	return r.queryOne(ctx, query, value)
}

// FindRelated fetches the record related to the given one. The
// relationship is written "table.column": the related table and the
// foreign key column on it that points back at the record's id.
func (r *RecordRepository) FindRelated(ctx context.Context, record models.SObject, relationshipName string) (models.SObject, error) {
	table, column, ok := strings.Cut(relationshipName, ".")
	if !ok || table == "" || column == "" {
		return nil, fmt.Errorf("malformed relationship %q, want table.column", relationshipName)
	}
	id := record.GetString("id")
	if id == "" {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1", table, column)
	return r.queryOne(ctx, query, id)
}

func (r *RecordRepository) queryOne(ctx context.Context, query string, args ...interface{}) (models.SObject, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results, err := scanRowsToSObjects(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}
