package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_directory",
		SQL: `CREATE TABLE IF NOT EXISTS directory (
  directory_id        BIGSERIAL   PRIMARY KEY,
  name                VARCHAR(255) NOT NULL,
  parent_id           BIGINT      REFERENCES directory (directory_id),
  full_path           TEXT        NOT NULL,
  kind                TEXT        NOT NULL DEFAULT 'user',
  owner_id            BIGINT,
  is_public           BOOLEAN     NOT NULL DEFAULT FALSE,
  is_system_directory BOOLEAN     NOT NULL DEFAULT FALSE,
  description         TEXT        NOT NULL DEFAULT '',
  icon                TEXT        NOT NULL DEFAULT '',
  color               TEXT        NOT NULL DEFAULT '',
  sort_order          INTEGER     NOT NULL DEFAULT 0,
  can_create_subdirs  BOOLEAN     NOT NULL DEFAULT TRUE,
  can_upload_files    BOOLEAN     NOT NULL DEFAULT TRUE,
  created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
  modified_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_unique_index_directory_full_path",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS idx_directory_full_path ON directory (lower(full_path));`,
	},
	{
		Name: "create_index_directory_parent_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_directory_parent_id ON directory (parent_id);`,
	},
	{
		Name: "create_table_file_metadata",
		SQL: `CREATE TABLE IF NOT EXISTS file_metadata (
  file_id           BIGSERIAL   PRIMARY KEY,
  filename          TEXT        NOT NULL,
  original_filename TEXT        NOT NULL,
  file_type         TEXT        NOT NULL,
  mime_type         TEXT        NOT NULL,
  file_size         BIGINT      NOT NULL CHECK (file_size >= 0),
  storage_location  TEXT        NOT NULL,
  file_path         TEXT,
  checksum          TEXT        NOT NULL,
  directory_id      BIGINT      REFERENCES directory (directory_id),
  uploaded_by       BIGINT      NOT NULL,
  asset_id          BIGINT,
  project_id        BIGINT,
  description       TEXT        NOT NULL DEFAULT '',
  tags              TEXT        NOT NULL DEFAULT '',
  is_public         BOOLEAN     NOT NULL DEFAULT FALSE,
  uploaded_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
  last_accessed     TIMESTAMPTZ
);`,
	},
	{
		Name: "create_index_file_metadata_directory_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_file_metadata_directory_id ON file_metadata (directory_id);`,
	},
	{
		Name: "create_index_file_metadata_uploaded_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_file_metadata_uploaded_at ON file_metadata (uploaded_at);`,
	},
	{
		Name: "create_table_file_content",
		SQL: `CREATE TABLE IF NOT EXISTS file_content (
  content_id BIGSERIAL PRIMARY KEY,
  file_id    BIGINT    NOT NULL UNIQUE REFERENCES file_metadata (file_id) ON DELETE CASCADE,
  content    BYTEA     NOT NULL
);`,
	},
	{
		Name: "create_table_file_version",
		SQL: `CREATE TABLE IF NOT EXISTS file_version (
  version_id         BIGSERIAL   PRIMARY KEY,
  file_id            BIGINT      NOT NULL REFERENCES file_metadata (file_id) ON DELETE CASCADE,
  version_number     INTEGER     NOT NULL,
  file_path          TEXT,
  content            BYTEA,
  checksum           TEXT        NOT NULL,
  changed_by         BIGINT      NOT NULL,
  change_description TEXT        NOT NULL DEFAULT '',
  created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (file_id, version_number)
);`,
	},
	{
		Name: "create_table_document_link",
		SQL: `CREATE TABLE IF NOT EXISTS document_link (
  link_id     BIGSERIAL   PRIMARY KEY,
  file_id     BIGINT      NOT NULL REFERENCES file_metadata (file_id) ON DELETE CASCADE,
  entity_type TEXT        NOT NULL,
  entity_id   BIGINT      NOT NULL,
  link_type   TEXT        NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  created_by  BIGINT      NOT NULL
);`,
	},
	{
		Name: "create_index_document_link_entity",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_document_link_entity ON document_link (entity_type, entity_id);`,
	},
	{
		Name: "seed_root_directory",
		SQL: `INSERT INTO directory (name, parent_id, full_path, kind, is_system_directory, can_create_subdirs, can_upload_files, description)
SELECT 'Root', NULL, '/', 'system', TRUE, TRUE, FALSE, 'Namespace root'
WHERE NOT EXISTS (SELECT 1 FROM directory WHERE parent_id IS NULL);`,
	},
	{
		Name: "seed_playbook_directory",
		SQL: `INSERT INTO directory (name, parent_id, full_path, kind, is_system_directory, can_create_subdirs, can_upload_files, description, sort_order)
SELECT 'Playbook', d.directory_id, '/playbook', 'system', TRUE, TRUE, FALSE, 'Operational playbooks', 10
FROM directory d
WHERE d.full_path = '/'
  AND NOT EXISTS (SELECT 1 FROM directory WHERE full_path = '/playbook');`,
	},
	{
		Name: "seed_playbook_users_directory",
		SQL: `INSERT INTO directory (name, parent_id, full_path, kind, is_system_directory, can_create_subdirs, can_upload_files, description, sort_order)
SELECT 'Users', d.directory_id, '/playbook/users', 'system', TRUE, TRUE, FALSE, 'Per-user home directories', 20
FROM directory d
WHERE d.full_path = '/playbook'
  AND NOT EXISTS (SELECT 1 FROM directory WHERE full_path = '/playbook/users');`,
	},
	{
		Name: "seed_public_documents_directory",
		SQL: `INSERT INTO directory (name, parent_id, full_path, kind, is_public, is_system_directory, can_create_subdirs, can_upload_files, description, sort_order)
SELECT 'Public Documents', d.directory_id, '/public_documents', 'system', TRUE, TRUE, TRUE, TRUE, 'Shared document area', 30
FROM directory d
WHERE d.full_path = '/'
  AND NOT EXISTS (SELECT 1 FROM directory WHERE full_path = '/public_documents');`,
	},
}

// EnsureMigrated checks if the 'directory' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, loc *time.Location, dbHost string) error {
	start := time.Now()

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.directory') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_start",
		"status":    "in_progress",
		"db_host":   dbHost,
	})

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			logJSON(loc, map[string]any{
				"component":        "database",
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
