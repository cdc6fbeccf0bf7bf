package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"eventgate/internal/rules/models"
	"eventgate/pkg/domain"
	"eventgate/pkg/platform/sentinel"
)

// PostgresStore persists rules and components in PostgreSQL. This store is
// pure I/O; cache invalidation and permission checks belong in the service.
// Component deletion cascades from rule deletion at the schema level.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed rule store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *PostgresStore) Create(ctx context.Context, rule *models.Rule) error {
	if rule == nil || rule.ID.IsNil() {
		return fmt.Errorf("rule with id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create rule: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rules (id, event_entity_type, event_entity_id, trigger_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rule.ID.String(), rule.EventRef.Type, rule.EventRef.ID, rule.TriggerID, rule.Active, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rule %s: %w", rule.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create rule: %w", err)
	}

	if err := insertComponents(ctx, tx, rule.ID, rule.Components); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create rule: %w", err)
	}
	return nil
}

func insertComponents(ctx context.Context, tx *sql.Tx, ruleID domain.RuleID, components []models.RuleComponent) error {
	for position, c := range components {
		cfg, err := json.Marshal(c.Configuration)
		if err != nil {
			return fmt.Errorf("encode component configuration: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rule_components (id, rule_id, component_type, plugin_id, configuration, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, c.ID.String(), ruleID.String(), string(c.Type), c.PluginID, cfg, position)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("component %s: %w", c.ID, sentinel.ErrConflict)
			}
			return fmt.Errorf("create rule component: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.RuleID) (*models.Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, event_entity_type, event_entity_id, trigger_id, active, created_at, updated_at
		FROM rules
		WHERE id = $1
	`, id.String())
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rule %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find rule: %w", err)
	}
	if err := s.loadComponents(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *PostgresStore) ListByEvent(ctx context.Context, event domain.EntityRef) ([]*models.Rule, error) {
	return s.listRules(ctx, `
		SELECT id, event_entity_type, event_entity_id, trigger_id, active, created_at, updated_at
		FROM rules
		WHERE event_entity_type = $1 AND event_entity_id = $2
		ORDER BY created_at
	`, event.Type, event.ID)
}

func (s *PostgresStore) ListByEventTrigger(ctx context.Context, event domain.EntityRef, triggerID string, activeOnly bool) ([]*models.Rule, error) {
	query := `
		SELECT id, event_entity_type, event_entity_id, trigger_id, active, created_at, updated_at
		FROM rules
		WHERE event_entity_type = $1 AND event_entity_id = $2 AND trigger_id = $3
	`
	args := []any{event.Type, event.ID, triggerID}
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY created_at`
	return s.listRules(ctx, query, args...)
}

func (s *PostgresStore) listRules(ctx context.Context, query string, args ...any) ([]*models.Rule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []*models.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	for _, rule := range out {
		if err := s.loadComponents(ctx, rule); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, rule *models.Rule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update rule: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE rules
		SET trigger_id = $2, active = $3, updated_at = $4
		WHERE id = $1
	`, rule.ID.String(), rule.TriggerID, rule.Active, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("rule %s: %w", rule.ID, sentinel.ErrNotFound)
	}

	// Update replaces the whole component list. Components are exclusively
	// owned, so there is nothing to preserve.
	if _, err := tx.ExecContext(ctx, `DELETE FROM rule_components WHERE rule_id = $1`, rule.ID.String()); err != nil {
		return fmt.Errorf("replace rule components: %w", err)
	}
	if err := insertComponents(ctx, tx, rule.ID, rule.Components); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update rule: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.RuleID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("rule %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteByEvent(ctx context.Context, event domain.EntityRef) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM rules WHERE event_entity_type = $1 AND event_entity_id = $2
	`, event.Type, event.ID)
	if err != nil {
		return 0, fmt.Errorf("delete rules by event: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func (s *PostgresStore) AddComponent(ctx context.Context, component *models.RuleComponent) error {
	if component == nil {
		return fmt.Errorf("component is required")
	}
	cfg, err := json.Marshal(component.Configuration)
	if err != nil {
		return fmt.Errorf("encode component configuration: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_components (id, rule_id, component_type, plugin_id, configuration, position)
		SELECT $1, $2, $3, $4, $5, COALESCE(MAX(position) + 1, 0)
		FROM rule_components
		WHERE rule_id = $2
	`, component.ID.String(), component.RuleID.String(), string(component.Type), component.PluginID, cfg)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("component %s: %w", component.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("add rule component: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("rule %s: %w", component.RuleID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) UpdateComponent(ctx context.Context, component *models.RuleComponent) error {
	if component == nil {
		return fmt.Errorf("component is required")
	}
	cfg, err := json.Marshal(component.Configuration)
	if err != nil {
		return fmt.Errorf("encode component configuration: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE rule_components
		SET plugin_id = $2, configuration = $3
		WHERE id = $1
	`, component.ID.String(), component.PluginID, cfg)
	if err != nil {
		return fmt.Errorf("update rule component: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("component %s: %w", component.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteComponent(ctx context.Context, id domain.ComponentID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rule_components WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete rule component: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("component %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindComponent(ctx context.Context, id domain.ComponentID) (*models.RuleComponent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, rule_id, component_type, plugin_id, configuration
		FROM rule_components
		WHERE id = $1
	`, id.String())
	component, err := scanComponent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("component %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find rule component: %w", err)
	}
	return component, nil
}

func (s *PostgresStore) loadComponents(ctx context.Context, rule *models.Rule) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_id, component_type, plugin_id, configuration
		FROM rule_components
		WHERE rule_id = $1
		ORDER BY position
	`, rule.ID.String())
	if err != nil {
		return fmt.Errorf("load rule components: %w", err)
	}
	defer rows.Close()

	rule.Components = nil
	for rows.Next() {
		component, err := scanComponent(rows)
		if err != nil {
			return fmt.Errorf("scan rule component: %w", err)
		}
		rule.Components = append(rule.Components, *component)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load rule components: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*models.Rule, error) {
	var rule models.Rule
	var id, eventType, eventID string
	if err := row.Scan(&id, &eventType, &eventID, &rule.TriggerID, &rule.Active, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return nil, err
	}
	ruleID, err := domain.ParseRuleID(id)
	if err != nil {
		return nil, err
	}
	rule.ID = ruleID
	rule.EventRef = domain.EntityRef{Type: eventType, ID: eventID}
	return &rule, nil
}

func scanComponent(row rowScanner) (*models.RuleComponent, error) {
	var component models.RuleComponent
	var id, ruleID, componentType string
	var cfg []byte
	if err := row.Scan(&id, &ruleID, &componentType, &component.PluginID, &cfg); err != nil {
		return nil, err
	}
	componentID, err := domain.ParseComponentID(id)
	if err != nil {
		return nil, err
	}
	parsedRuleID, err := domain.ParseRuleID(ruleID)
	if err != nil {
		return nil, err
	}
	parsedType, err := models.ParseComponentType(componentType)
	if err != nil {
		return nil, err
	}
	component.ID = componentID
	component.RuleID = parsedRuleID
	component.Type = parsedType
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &component.Configuration); err != nil {
			return nil, fmt.Errorf("decode component configuration: %w", err)
		}
	}
	return &component, nil
}
