package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"eventgate/internal/eventtype/models"
	"eventgate/pkg/platform/sentinel"
)

// PostgresStore persists event types and their default rule templates in
// PostgreSQL. Templates cascade from their owning event type at the schema
// level.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed event type store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, eventType *models.EventType) error {
	if err := eventType.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_types (entity_type, bundle, allow_duplicate_registrants, allow_anonymous_registrants, custom_rules_allowed, default_registrant_kind)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (entity_type, bundle) DO UPDATE SET
			allow_duplicate_registrants = EXCLUDED.allow_duplicate_registrants,
			allow_anonymous_registrants = EXCLUDED.allow_anonymous_registrants,
			custom_rules_allowed = EXCLUDED.custom_rules_allowed,
			default_registrant_kind = EXCLUDED.default_registrant_kind
	`, eventType.EntityType, eventType.Bundle, eventType.AllowDuplicateRegistrants,
		eventType.AllowAnonymousRegistrants, eventType.CustomRulesAllowed, eventType.DefaultRegistrantKind)
	if err != nil {
		return fmt.Errorf("save event type: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, entityType, bundle string) (*models.EventType, error) {
	var eventType models.EventType
	err := s.db.QueryRowContext(ctx, `
		SELECT entity_type, bundle, allow_duplicate_registrants, allow_anonymous_registrants, custom_rules_allowed, default_registrant_kind
		FROM event_types
		WHERE entity_type = $1 AND bundle = $2
	`, entityType, bundle).Scan(
		&eventType.EntityType, &eventType.Bundle, &eventType.AllowDuplicateRegistrants,
		&eventType.AllowAnonymousRegistrants, &eventType.CustomRulesAllowed, &eventType.DefaultRegistrantKind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event type %s.%s: %w", entityType, bundle, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find event type: %w", err)
	}
	return &eventType, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.EventType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, bundle, allow_duplicate_registrants, allow_anonymous_registrants, custom_rules_allowed, default_registrant_kind
		FROM event_types
		ORDER BY entity_type, bundle
	`)
	if err != nil {
		return nil, fmt.Errorf("list event types: %w", err)
	}
	defer rows.Close()

	var out []*models.EventType
	for rows.Next() {
		var eventType models.EventType
		if err := rows.Scan(
			&eventType.EntityType, &eventType.Bundle, &eventType.AllowDuplicateRegistrants,
			&eventType.AllowAnonymousRegistrants, &eventType.CustomRulesAllowed, &eventType.DefaultRegistrantKind); err != nil {
			return nil, fmt.Errorf("scan event type: %w", err)
		}
		out = append(out, &eventType)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list event types: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, entityType, bundle string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM event_types WHERE entity_type = $1 AND bundle = $2
	`, entityType, bundle)
	if err != nil {
		return fmt.Errorf("delete event type: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("event type %s.%s: %w", entityType, bundle, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) SaveRule(ctx context.Context, rule *models.EventTypeRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	conditions, err := encodeComponents(rule.Conditions)
	if err != nil {
		return err
	}
	actions, err := encodeComponents(rule.Actions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO event_type_rules (entity_type, bundle, machine_name, trigger_id, conditions, actions)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (entity_type, bundle, machine_name) DO UPDATE SET
			trigger_id = EXCLUDED.trigger_id,
			conditions = EXCLUDED.conditions,
			actions = EXCLUDED.actions
	`, rule.EventEntityType, rule.EventBundle, rule.MachineName, rule.TriggerID, conditions, actions)
	if err != nil {
		return fmt.Errorf("save event type rule: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRule(ctx context.Context, entityType, bundle, machineName string) (*models.EventTypeRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entity_type, bundle, machine_name, trigger_id, conditions, actions
		FROM event_type_rules
		WHERE entity_type = $1 AND bundle = $2 AND machine_name = $3
	`, entityType, bundle, machineName)
	rule, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event type rule %s.%s.%s: %w", entityType, bundle, machineName, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find event type rule: %w", err)
	}
	return rule, nil
}

func (s *PostgresStore) ListRulesByType(ctx context.Context, entityType, bundle string) ([]*models.EventTypeRule, error) {
	return s.listTemplates(ctx, `
		SELECT entity_type, bundle, machine_name, trigger_id, conditions, actions
		FROM event_type_rules
		WHERE entity_type = $1 AND bundle = $2
		ORDER BY machine_name
	`, entityType, bundle)
}

func (s *PostgresStore) ListRulesByTrigger(ctx context.Context, entityType, bundle, triggerID string) ([]*models.EventTypeRule, error) {
	return s.listTemplates(ctx, `
		SELECT entity_type, bundle, machine_name, trigger_id, conditions, actions
		FROM event_type_rules
		WHERE entity_type = $1 AND bundle = $2 AND trigger_id = $3
		ORDER BY machine_name
	`, entityType, bundle, triggerID)
}

func (s *PostgresStore) listTemplates(ctx context.Context, query string, args ...any) ([]*models.EventTypeRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list event type rules: %w", err)
	}
	defer rows.Close()

	var out []*models.EventTypeRule
	for rows.Next() {
		rule, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event type rule: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list event type rules: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteRule(ctx context.Context, entityType, bundle, machineName string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM event_type_rules WHERE entity_type = $1 AND bundle = $2 AND machine_name = $3
	`, entityType, bundle, machineName)
	if err != nil {
		return fmt.Errorf("delete event type rule: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("event type rule %s.%s.%s: %w", entityType, bundle, machineName, sentinel.ErrNotFound)
	}
	return nil
}

func encodeComponents(components map[string]models.DefaultComponent) ([]byte, error) {
	if components == nil {
		components = map[string]models.DefaultComponent{}
	}
	encoded, err := json.Marshal(components)
	if err != nil {
		return nil, fmt.Errorf("encode template components: %w", err)
	}
	return encoded, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*models.EventTypeRule, error) {
	var rule models.EventTypeRule
	var conditions, actions []byte
	if err := row.Scan(&rule.EventEntityType, &rule.EventBundle, &rule.MachineName, &rule.TriggerID, &conditions, &actions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("decode template conditions: %w", err)
	}
	if err := json.Unmarshal(actions, &rule.Actions); err != nil {
		return nil, fmt.Errorf("decode template actions: %w", err)
	}
	return &rule, nil
}
