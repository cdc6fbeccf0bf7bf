package plugin

import (
	"context"
	"strings"

	"eventgate/internal/rules/models"
	platformstrings "eventgate/pkg/platform/strings"
)

// Built-in plugin IDs.
const (
	PluginUserRole               = "user_role"
	PluginIdentityConfirmed      = "identity_confirmed"
	PluginRegistrationOperations = "registration_operations"
	PluginRegistrantOperations   = "registrant_operations"
)

// Configuration keys read by the built-in plugins.
const (
	ConfigKeyRoles      = "roles"
	ConfigKeyOperations = "operations"
)

// UserRoleCondition is satisfied when the identity's role set intersects the
// configured roles. An empty configured role list means "all roles": any
// identity satisfies it, including anonymous.
type UserRoleCondition struct{}

func (UserRoleCondition) Evaluate(_ context.Context, cfg models.Configuration, ectx models.EvalContext) (bool, error) {
	roles := platformstrings.DedupeAndTrimLower(cfg.StringSlice(ConfigKeyRoles))
	if len(roles) == 0 {
		return true, nil
	}
	if ectx.Anonymous() {
		return false, nil
	}
	for _, want := range roles {
		for _, have := range ectx.Identity.Roles {
			if strings.EqualFold(have, want) {
				return true, nil
			}
		}
	}
	return false, nil
}

// IdentityConfirmedCondition is satisfied when the identity exists and is
// confirmed. Anonymous contexts never satisfy it.
type IdentityConfirmedCondition struct{}

func (IdentityConfirmedCondition) Evaluate(_ context.Context, _ models.Configuration, ectx models.EvalContext) (bool, error) {
	return !ectx.Anonymous() && ectx.Identity.Confirmed, nil
}

// RegistrationOperationsAction grants the registration operations enabled in
// its configuration: the "operations" key maps operation name to bool, and
// only true entries are granted.
type RegistrationOperationsAction struct{}

func (RegistrationOperationsAction) Operations(_ context.Context, cfg models.Configuration, _ models.EvalContext) (models.OperationSet, error) {
	return enabledOperations(cfg), nil
}

// RegistrantOperationsAction grants registrant-level operations, using the
// same configuration shape as RegistrationOperationsAction.
type RegistrantOperationsAction struct{}

func (RegistrantOperationsAction) Operations(_ context.Context, cfg models.Configuration, _ models.EvalContext) (models.OperationSet, error) {
	return enabledOperations(cfg), nil
}

func enabledOperations(cfg models.Configuration) models.OperationSet {
	ops := models.NewOperationSet()
	for name, enabled := range cfg.BoolMap(ConfigKeyOperations) {
		if enabled {
			ops.Add(strings.TrimSpace(name))
		}
	}
	return ops
}
