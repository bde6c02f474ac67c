package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/nexusportal/backend/pkg/constants"
)

// EnsureSystemTables creates the web form engine's system tables when
// absent. DDL is idempotent so startup can always run it.
func EnsureSystemTables(ctx context.Context, db *sql.DB) error {
	log.Println("🔧 Ensuring system tables...")

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			start_step_id VARCHAR(36),
			save_past_records BOOLEAN NOT NULL DEFAULT FALSE,
			edit_existing_record BOOLEAN NOT NULL DEFAULT FALSE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_modified_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`, constants.TableWebForm),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			web_form_id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			type VARCHAR(32) NOT NULL,
			next_step_id VARCHAR(36),
			condition_default_next_step_id VARCHAR(36),
			source_strategy VARCHAR(64) NOT NULL DEFAULT 'None',
			source_param VARCHAR(255),
			source_relationship VARCHAR(255),
			source_step_id VARCHAR(36),
			param_is_primary_key BOOLEAN NOT NULL DEFAULT FALSE,
			create_if_absent BOOLEAN NOT NULL DEFAULT FALSE,
			target_entity VARCHAR(255) NOT NULL DEFAULT '',
			target_primary_key VARCHAR(255) NOT NULL DEFAULT '',
			mode VARCHAR(32) NOT NULL DEFAULT '',
			condition_expression TEXT,
			redirect_url VARCHAR(1024),
			allow_retreat BOOLEAN NOT NULL DEFAULT FALSE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			INDEX idx_webformstep_form (web_form_id)
		)`, constants.TableWebFormStep),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			web_form_id VARCHAR(36) NOT NULL,
			current_step_id VARCHAR(36) NOT NULL,
			current_step_index INT NOT NULL DEFAULT 0,
			step_history JSON,
			primary_record_entity VARCHAR(255),
			primary_record_key VARCHAR(255),
			primary_record_id VARCHAR(36),
			contact_id VARCHAR(36),
			anonymous_id VARCHAR(64),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_modified_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_webformsession_record (web_form_id, primary_record_id),
			INDEX idx_webformsession_contact (web_form_id, contact_id),
			INDEX idx_webformsession_anon (web_form_id, anonymous_id)
		)`, constants.TableWebFormSession),
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create system table: %w", err)
		}
	}

	log.Println("✅ System tables ready")
	return nil
}
