package bootstrap

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nexusportal/backend/internal/domain"
	dmodels "github.com/nexusportal/backend/internal/domain/models"
	"github.com/nexusportal/backend/pkg/constants"
)

//go:embed webforms.json
var webFormsJSON []byte

// InitializeWebForms ensures the standard web form definitions exist.
// Definitions are validated before touching the database and upserted so
// restarts converge on the embedded versions.
func InitializeWebForms(ctx context.Context, db *sql.DB) error {
	log.Println("🔧 Initializing web forms...")

	var forms []*dmodels.WebForm
	if err := json.Unmarshal(webFormsJSON, &forms); err != nil {
		return fmt.Errorf("failed to parse webforms.json: %w", err)
	}

	for _, form := range forms {
		for _, step := range form.Steps {
			step.WebFormID = form.ID
		}
		if err := domain.ValidateGraph(form, form.Steps); err != nil {
			return fmt.Errorf("embedded web form %s is invalid: %w", form.ID, err)
		}
		if err := upsertWebForm(ctx, db, form); err != nil {
			log.Printf("   ⚠️  Failed to upsert web form %s: %v", form.Name, err)
			continue
		}
		log.Printf("   ✅ Web form %s ready (%d steps)", form.Name, len(form.Steps))
	}

	return nil
}

func upsertWebForm(ctx context.Context, db *sql.DB, form *dmodels.WebForm) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, start_step_id, save_past_records, edit_existing_record, is_deleted)
		VALUES (?, ?, ?, ?, ?, 0)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name), start_step_id = VALUES(start_step_id),
			save_past_records = VALUES(save_past_records),
			edit_existing_record = VALUES(edit_existing_record), is_deleted = 0`,
		constants.TableWebForm)
	if _, err := db.ExecContext(ctx, query, form.ID, form.Name, form.StartStepID,
		form.SavePastRecords, form.EditExistingRecord); err != nil {
		return err
	}

	for _, step := range form.Steps {
		if err := upsertStep(ctx, db, step); err != nil {
			return fmt.Errorf("step %s: %w", step.ID, err)
		}
	}
	return nil
}

func upsertStep(ctx context.Context, db *sql.DB, step *dmodels.WebFormStep) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, web_form_id, name, type, next_step_id, condition_default_next_step_id,
			source_strategy, source_param, source_relationship, source_step_id,
			param_is_primary_key, create_if_absent, target_entity, target_primary_key,
			mode, condition_expression, redirect_url, allow_retreat, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name), type = VALUES(type), next_step_id = VALUES(next_step_id),
			condition_default_next_step_id = VALUES(condition_default_next_step_id),
			source_strategy = VALUES(source_strategy), source_param = VALUES(source_param),
			source_relationship = VALUES(source_relationship), source_step_id = VALUES(source_step_id),
			param_is_primary_key = VALUES(param_is_primary_key), create_if_absent = VALUES(create_if_absent),
			target_entity = VALUES(target_entity), target_primary_key = VALUES(target_primary_key),
			mode = VALUES(mode), condition_expression = VALUES(condition_expression),
			redirect_url = VALUES(redirect_url), allow_retreat = VALUES(allow_retreat), is_deleted = 0`,
		constants.TableWebFormStep)

	strategy := step.SourceStrategy
	if strategy == "" {
		strategy = dmodels.SourceNone
	}

	_, err := db.ExecContext(ctx, query,
		step.ID, step.WebFormID, step.Name, string(step.Kind),
		step.NextStepID, step.ConditionDefaultNextStepID,
		string(strategy), step.SourceParam, step.SourceRelationship, step.SourceStepID,
		step.ParamIsPrimaryKey, step.CreateIfAbsent, step.TargetEntity, step.TargetPrimaryKey,
		string(step.Mode), step.ConditionExpression, step.RedirectURL, step.AllowRetreat,
	)
	return err
}
