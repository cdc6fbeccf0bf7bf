//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Schema creates every table the stores use. Integration tests apply it to a
// fresh container; deployments apply the same DDL through their migration
// tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS event_types (
	entity_type TEXT NOT NULL,
	bundle TEXT NOT NULL,
	allow_duplicate_registrants BOOLEAN NOT NULL DEFAULT FALSE,
	allow_anonymous_registrants BOOLEAN NOT NULL DEFAULT FALSE,
	custom_rules_allowed BOOLEAN NOT NULL DEFAULT FALSE,
	default_registrant_kind TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (entity_type, bundle)
);

CREATE TABLE IF NOT EXISTS event_type_rules (
	entity_type TEXT NOT NULL,
	bundle TEXT NOT NULL,
	machine_name TEXT NOT NULL,
	trigger_id TEXT NOT NULL,
	conditions JSONB NOT NULL DEFAULT '{}'::jsonb,
	actions JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (entity_type, bundle, machine_name),
	FOREIGN KEY (entity_type, bundle) REFERENCES event_types (entity_type, bundle) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS rules (
	id UUID PRIMARY KEY,
	event_entity_type TEXT NOT NULL,
	event_entity_id TEXT NOT NULL,
	trigger_id TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS rules_event_idx
	ON rules (event_entity_type, event_entity_id, trigger_id);

CREATE TABLE IF NOT EXISTS rule_components (
	id UUID PRIMARY KEY,
	rule_id UUID NOT NULL REFERENCES rules (id) ON DELETE CASCADE,
	component_type TEXT NOT NULL,
	plugin_id TEXT NOT NULL,
	configuration JSONB NOT NULL DEFAULT '{}'::jsonb,
	position INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS registrations (
	id UUID PRIMARY KEY,
	event_entity_type TEXT NOT NULL,
	event_entity_id TEXT NOT NULL,
	registrant_qty INT NOT NULL DEFAULT 0,
	confirmed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS registrations_event_idx
	ON registrations (event_entity_type, event_entity_id);

CREATE TABLE IF NOT EXISTS registrants (
	id UUID PRIMARY KEY,
	registration_id UUID NOT NULL REFERENCES registrations (id) ON DELETE CASCADE,
	identity_entity_type TEXT,
	identity_entity_id TEXT,
	kind TEXT NOT NULL DEFAULT '',
	position INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS registrants_identity_idx
	ON registrants (identity_entity_type, identity_entity_id);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
}

// NewPostgresContainer starts a PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("eventgate"),
		tcpostgres.WithUsername("eventgate"),
		tcpostgres.WithPassword("eventgate"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	pc := &PostgresContainer{Container: container, DB: db}
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})
	return pc
}

// TruncateAll clears every table. Use between tests to ensure isolation.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `
		TRUNCATE registrants, registrations, rule_components, rules, event_type_rules, event_types
	`)
	return err
}
