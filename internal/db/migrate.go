package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// ChangeFeedChannel is the Postgres NOTIFY channel the change-feed trigger publishes to.
const ChangeFeedChannel = "sitesync_changes"

// FeedTables lists the tables that publish row-level change notifications.
var FeedTables = []string{
	"profiles", "organisations", "organisation_members", "projects", "project_members",
	"phases", "tasks", "materials", "requests", "material_pricing", "project_templates",
}

// Migrate runs all schema migrations for the dialect.
func Migrate(db *sql.DB, dialect Dialect) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(dialect.DDL(stmt)); err != nil {
			// Tolerate re-applied ALTER TABLE statements since the
			// migration system re-runs all statements.
			if isDuplicateColumn(err) {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	if dialect == Postgres {
		if err := migrateChangeFeed(db); err != nil {
			return fmt.Errorf("installing change feed triggers: %w", err)
		}
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate column name") ||
		(strings.Contains(msg, "column") && strings.Contains(msg, "already exists"))
}

func migrateChangeFeed(db *sql.DB) error {
	fn := `CREATE OR REPLACE FUNCTION sitesync_notify() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('` + ChangeFeedChannel + `', json_build_object(
			'table', TG_TABLE_NAME,
			'type', lower(TG_OP),
			'record', CASE WHEN TG_OP = 'DELETE' THEN NULL ELSE row_to_json(NEW) END,
			'old_record', CASE WHEN TG_OP = 'INSERT' THEN NULL ELSE row_to_json(OLD) END
		)::text);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`
	if _, err := db.Exec(fn); err != nil {
		return fmt.Errorf("creating notify function: %w", err)
	}
	for _, table := range FeedTables {
		trigger := "sitesync_notify_" + table
		if _, err := db.Exec(fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, trigger, table)); err != nil {
			return fmt.Errorf("dropping trigger on %s: %w", table, err)
		}
		if _, err := db.Exec(fmt.Sprintf(
			`CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s FOR EACH ROW EXECUTE FUNCTION sitesync_notify()`,
			trigger, table)); err != nil {
			return fmt.Errorf("creating trigger on %s: %w", table, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL DEFAULT '',
		full_name  TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		is_admin   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS organisations (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		owner_id   TEXT NOT NULL REFERENCES profiles(id),
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_organisations_owner ON organisations(owner_id)`,

	`CREATE TABLE IF NOT EXISTS organisation_members (
		id              TEXT PRIMARY KEY,
		organisation_id TEXT NOT NULL REFERENCES organisations(id) ON DELETE CASCADE,
		profile_id      TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		role            TEXT NOT NULL DEFAULT 'Employee'
		                CHECK(role IN ('Admin','Supervisor','Employee')),
		joined_at       TEXT NOT NULL,
		UNIQUE (organisation_id, profile_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_organisation_members_profile ON organisation_members(profile_id)`,

	`CREATE TABLE IF NOT EXISTS projects (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		budget          DOUBLE PRECISION NOT NULL DEFAULT 0,
		spent           DOUBLE PRECISION NOT NULL DEFAULT 0,
		status          TEXT NOT NULL DEFAULT 'Inactive'
		                CHECK(status IN ('Inactive','Pending','Active','Reviewing','Completed')),
		organisation_id TEXT NOT NULL REFERENCES organisations(id) ON DELETE CASCADE,
		owner_id        TEXT NOT NULL REFERENCES profiles(id),
		start_date      TEXT,
		end_date        TEXT,
		created_at      TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_organisation ON projects(organisation_id)`,

	`CREATE TABLE IF NOT EXISTS project_members (
		id         TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		role       TEXT NOT NULL DEFAULT 'Employee'
		           CHECK(role IN ('Admin','Supervisor','Employee')),
		joined_at  TEXT NOT NULL,
		UNIQUE (project_id, profile_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_project_members_profile ON project_members(profile_id)`,

	`CREATE TABLE IF NOT EXISTS phases (
		id         TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		budget     DOUBLE PRECISION NOT NULL DEFAULT 0,
		"order"    INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_phases_project ON phases(project_id)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id                  TEXT PRIMARY KEY,
		phase_id            TEXT NOT NULL REFERENCES phases(id) ON DELETE CASCADE,
		project_id          TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name                TEXT NOT NULL,
		description         TEXT NOT NULL DEFAULT '',
		assigned_to         TEXT REFERENCES profiles(id) ON DELETE SET NULL,
		status              TEXT NOT NULL DEFAULT 'Inactive'
		                    CHECK(status IN ('Inactive','Pending','Active','Reviewing','Completed')),
		planned_budget      DOUBLE PRECISION NOT NULL DEFAULT 0,
		spent               DOUBLE PRECISION NOT NULL DEFAULT 0,
		estimated_duration  INTEGER NOT NULL DEFAULT 0,
		payment_completed   BOOLEAN NOT NULL DEFAULT FALSE,
		materials_completed BOOLEAN NOT NULL DEFAULT FALSE,
		completion_notes    TEXT NOT NULL DEFAULT '',
		rejection_reason    TEXT NOT NULL DEFAULT '',
		created_at          TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_phase ON tasks(phase_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id)`,

	`CREATE TABLE IF NOT EXISTS materials (
		id                 TEXT PRIMARY KEY,
		task_id            TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		name               TEXT NOT NULL,
		planned_quantity   DOUBLE PRECISION NOT NULL DEFAULT 0,
		used_quantity      DOUBLE PRECISION NOT NULL DEFAULT 0,
		unit_cost          DOUBLE PRECISION NOT NULL DEFAULT 0,
		unit               TEXT NOT NULL DEFAULT '',
		requested          BOOLEAN NOT NULL DEFAULT FALSE,
		approved           BOOLEAN NOT NULL DEFAULT FALSE,
		delivered_quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
		waste_quantity     DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at         TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_materials_task ON materials(task_id)`,

	`CREATE TABLE IF NOT EXISTS requests (
		id           TEXT PRIMARY KEY,
		type         TEXT NOT NULL
		             CHECK(type IN ('TaskAssignment','MaterialRequest','PaymentRequest','TaskCompletion','JoinOrganisation','JoinProject')),
		requested_by TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		requested_to TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		status       TEXT NOT NULL DEFAULT 'Pending'
		             CHECK(status IN ('Pending','Approved','Rejected')),
		request_data {{json}},
		photo_url    TEXT NOT NULL DEFAULT '',
		response     TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_requests_to ON requests(requested_to)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_by ON requests(requested_by)`,

	`CREATE TABLE IF NOT EXISTS material_pricing (
		id              TEXT PRIMARY KEY,
		organisation_id TEXT NOT NULL REFERENCES organisations(id) ON DELETE CASCADE,
		name            TEXT NOT NULL,
		unit            TEXT NOT NULL DEFAULT '',
		unit_cost       DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_material_pricing_organisation ON material_pricing(organisation_id)`,

	`CREATE TABLE IF NOT EXISTS project_templates (
		id              TEXT PRIMARY KEY,
		organisation_id TEXT NOT NULL REFERENCES organisations(id) ON DELETE CASCADE,
		name            TEXT NOT NULL,
		phases          {{json}},
		created_at      TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_project_templates_organisation ON project_templates(organisation_id)`,
}
