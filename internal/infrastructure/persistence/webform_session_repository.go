package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	dmodels "github.com/nexusportal/backend/internal/domain/models"
	"github.com/nexusportal/backend/pkg/constants"
)

// WebFormSessionRepository stores web form sessions. The step history
// journal is serialized as a JSON column; everything the lookup paths
// need (web form, primary record, identity, active flag) is a plain
// column so resumption never deserializes more than one row.
type WebFormSessionRepository struct {
	db *sql.DB
}

// NewWebFormSessionRepository creates a new WebFormSessionRepository
func NewWebFormSessionRepository(db *sql.DB) *WebFormSessionRepository {
	return &WebFormSessionRepository{db: db}
}

func (r *WebFormSessionRepository) columns() string {
	return fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s",
		constants.FieldID,
		constants.FieldSysWebFormSession_WebFormID,
		constants.FieldSysWebFormSession_CurrentStepID,
		constants.FieldSysWebFormSession_CurrentStepIndex,
		constants.FieldSysWebFormSession_StepHistory,
		constants.FieldSysWebFormSession_PrimaryRecordEntity,
		constants.FieldSysWebFormSession_PrimaryRecordKey,
		constants.FieldSysWebFormSession_PrimaryRecordID,
		constants.FieldSysWebFormSession_ContactID,
		constants.FieldSysWebFormSession_AnonymousID,
		constants.FieldSysWebFormSession_IsActive,
	)
}

// Load retrieves a session by id
func (r *WebFormSessionRepository) Load(ctx context.Context, sessionID string) (*dmodels.WebFormSession, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1",
		r.columns(), constants.TableWebFormSession, constants.FieldID)
	return r.scanSession(r.db.QueryRowContext(ctx, query, sessionID))
}

// LoadByPrimaryRecord retrieves the active session of a web form whose
// sticky primary record is the given record id
func (r *WebFormSessionRepository) LoadByPrimaryRecord(ctx context.Context, webFormID, recordID string) (*dmodels.WebFormSession, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND %s = ? AND %s = 1 ORDER BY %s DESC LIMIT 1",
		r.columns(), constants.TableWebFormSession,
		constants.FieldSysWebFormSession_WebFormID,
		constants.FieldSysWebFormSession_PrimaryRecordID,
		constants.FieldSysWebFormSession_IsActive,
		constants.FieldSysWebFormSession_LastModifiedDate)
	return r.scanSession(r.db.QueryRowContext(ctx, query, webFormID, recordID))
}

// LoadByIdentity retrieves the active session of a web form held by a
// visitor identity (contact id or anonymous cookie id)
func (r *WebFormSessionRepository) LoadByIdentity(ctx context.Context, webFormID, identity string) (*dmodels.WebFormSession, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND (%s = ? OR %s = ?) AND %s = 1 ORDER BY %s DESC LIMIT 1",
		r.columns(), constants.TableWebFormSession,
		constants.FieldSysWebFormSession_WebFormID,
		constants.FieldSysWebFormSession_ContactID,
		constants.FieldSysWebFormSession_AnonymousID,
		constants.FieldSysWebFormSession_IsActive,
		constants.FieldSysWebFormSession_LastModifiedDate)
	return r.scanSession(r.db.QueryRowContext(ctx, query, webFormID, identity, identity))
}

// Save upserts the full session state in one statement
func (r *WebFormSessionRepository) Save(ctx context.Context, session *dmodels.WebFormSession) (string, error) {
	history, err := json.Marshal(session.StepHistory)
	if err != nil {
		return "", fmt.Errorf("failed to serialize step history: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
			%s = VALUES(%s), %s = VALUES(%s), %s = VALUES(%s),
			%s = VALUES(%s), %s = VALUES(%s), %s = VALUES(%s),
			%s = VALUES(%s), %s = NOW()`,
		constants.TableWebFormSession, r.columns(),
		constants.FieldSysWebFormSession_CreatedDate,
		constants.FieldSysWebFormSession_LastModifiedDate,
		constants.FieldSysWebFormSession_CurrentStepID, constants.FieldSysWebFormSession_CurrentStepID,
		constants.FieldSysWebFormSession_CurrentStepIndex, constants.FieldSysWebFormSession_CurrentStepIndex,
		constants.FieldSysWebFormSession_StepHistory, constants.FieldSysWebFormSession_StepHistory,
		constants.FieldSysWebFormSession_PrimaryRecordEntity, constants.FieldSysWebFormSession_PrimaryRecordEntity,
		constants.FieldSysWebFormSession_PrimaryRecordKey, constants.FieldSysWebFormSession_PrimaryRecordKey,
		constants.FieldSysWebFormSession_PrimaryRecordID, constants.FieldSysWebFormSession_PrimaryRecordID,
		constants.FieldSysWebFormSession_IsActive, constants.FieldSysWebFormSession_IsActive,
		constants.FieldSysWebFormSession_LastModifiedDate)

	_, err = r.db.ExecContext(ctx, query,
		session.ID,
		session.WebFormID,
		session.CurrentStepID,
		session.CurrentStepIndex,
		string(history),
		session.PrimaryRecord.EntityName,
		session.PrimaryRecord.PrimaryKeyName,
		session.PrimaryRecord.ID,
		session.ContactID,
		session.AnonymousID,
		session.IsActive,
	)
	if err != nil {
		return "", err
	}
	return session.ID, nil
}

// Deactivate marks a session inactive without touching its history
func (r *WebFormSessionRepository) Deactivate(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf("UPDATE %s SET %s = 0, %s = NOW() WHERE %s = ?",
		constants.TableWebFormSession,
		constants.FieldSysWebFormSession_IsActive,
		constants.FieldSysWebFormSession_LastModifiedDate,
		constants.FieldID)
	_, err := r.db.ExecContext(ctx, query, sessionID)
	return err
}

func (r *WebFormSessionRepository) scanSession(row rowScanner) (*dmodels.WebFormSession, error) {
	var s dmodels.WebFormSession
	var history []byte
	var contactID, anonymousID, recordEntity, recordKey, recordID sql.NullString

	err := row.Scan(
		&s.ID,
		&s.WebFormID,
		&s.CurrentStepID,
		&s.CurrentStepIndex,
		&history,
		&recordEntity,
		&recordKey,
		&recordID,
		&contactID,
		&anonymousID,
		&s.IsActive,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &s.StepHistory); err != nil {
			return nil, fmt.Errorf("failed to deserialize step history of session %s: %w", s.ID, err)
		}
	}
	s.PrimaryRecord = dmodels.RecordRef{
		EntityName:     recordEntity.String,
		PrimaryKeyName: recordKey.String,
		ID:             recordID.String,
	}
	s.ContactID = contactID.String
	s.AnonymousID = anonymousID.String
	return &s, nil
}
