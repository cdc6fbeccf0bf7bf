package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	eventtypemodels "eventgate/internal/eventtype/models"
	eventtypestore "eventgate/internal/eventtype/store"
	"eventgate/internal/rules/engine"
	"eventgate/internal/rules/plugin"
	"eventgate/internal/rules/service"
	"eventgate/internal/rules/store"
)

func newRulesRouter(t *testing.T) (http.Handler, *eventtypestore.InMemory) {
	t.Helper()
	rules := store.NewInMemory()
	types := eventtypestore.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng := engine.New(rules, types, plugin.NewBuiltinRegistry(), logger)
	svc := service.New(rules, types, types, nil, logger)

	h := New(eng, svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r, types
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to encode payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeRule(t *testing.T, rec *httptest.ResponseRecorder) RuleResponse {
	t.Helper()
	var resp RuleResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode rule response: %v", err)
	}
	return resp
}

func createRulePayload() map[string]any {
	return map[string]any{
		"trigger": "event.register",
		"components": []map[string]any{
			{
				"type":      "action",
				"plugin_id": "registration_operations",
				"configuration": map[string]any{
					"operations": map[string]bool{"create": true},
				},
			},
		},
	}
}

func TestCreateAndListRules(t *testing.T) {
	router, _ := newRulesRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/events/node/42/rules", createRulePayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating rule, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeRule(t, rec)
	if created.ID == "" || len(created.Components) != 1 {
		t.Fatalf("expected rule with one component, got %+v", created)
	}
	if !created.Active {
		t.Fatalf("expected new rule to be active")
	}

	listRec := doJSON(t, router, http.MethodGet, "/events/node/42/rules?trigger=event.register", nil)
	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing rules, got %d", listRec.Code)
	}
	var listed []RuleResponse
	if err := json.NewDecoder(listRec.Body).Decode(&listed); err != nil {
		t.Fatalf("failed to decode rule list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("expected the created rule in the listing, got %+v", listed)
	}
}

func TestResolveReflectsRules(t *testing.T) {
	router, _ := newRulesRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/events/node/42/rules", createRulePayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating rule, got %d", rec.Code)
	}

	resolveRec := doJSON(t, router, http.MethodPost, "/rules/resolve", map[string]any{
		"event":   map[string]string{"entity_type": "node", "entity_id": "42"},
		"bundle":  "conference",
		"trigger": "event.register",
		"identity": map[string]any{
			"entity_type": "user",
			"entity_id":   "alice",
		},
	})
	if resolveRec.Code != http.StatusOK {
		t.Fatalf("expected 200 resolving, got %d: %s", resolveRec.Code, resolveRec.Body.String())
	}
	var resolved ResolveResponse
	if err := json.NewDecoder(resolveRec.Body).Decode(&resolved); err != nil {
		t.Fatalf("failed to decode resolve response: %v", err)
	}
	if len(resolved.Operations) != 1 || resolved.Operations[0] != "create" {
		t.Fatalf("expected [create], got %v", resolved.Operations)
	}
}

func TestResolveRejectsMissingTrigger(t *testing.T) {
	router, _ := newRulesRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/rules/resolve", map[string]any{
		"event": map[string]string{"entity_type": "node", "entity_id": "42"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without trigger, got %d", rec.Code)
	}
}

func TestCreateRuleRejectsBadComponent(t *testing.T) {
	router, _ := newRulesRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/events/node/42/rules", map[string]any{
		"trigger": "event.register",
		"components": []map[string]any{
			{"type": "neither", "plugin_id": "registration_operations"},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad component type, got %d", rec.Code)
	}
}

func TestRuleLifecycle(t *testing.T) {
	router, _ := newRulesRouter(t)

	created := decodeRule(t, doJSON(t, router, http.MethodPost, "/events/node/42/rules", createRulePayload()))

	patchRec := doJSON(t, router, http.MethodPatch, "/rules/"+created.ID, map[string]any{"active": false})
	if patchRec.Code != http.StatusOK {
		t.Fatalf("expected 200 patching rule, got %d", patchRec.Code)
	}
	if patched := decodeRule(t, patchRec); patched.Active {
		t.Fatalf("expected rule to be inactive after patch")
	}

	deleteRec := doJSON(t, router, http.MethodDelete, "/rules/"+created.ID, nil)
	if deleteRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 deleting rule, got %d", deleteRec.Code)
	}

	listRec := doJSON(t, router, http.MethodGet, "/events/node/42/rules", nil)
	var listed []RuleResponse
	if err := json.NewDecoder(listRec.Body).Decode(&listed); err != nil {
		t.Fatalf("failed to decode rule list: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected no rules after deletion, got %d", len(listed))
	}
}

func TestComponentLifecycle(t *testing.T) {
	router, _ := newRulesRouter(t)

	created := decodeRule(t, doJSON(t, router, http.MethodPost, "/events/node/42/rules", createRulePayload()))

	addRec := doJSON(t, router, http.MethodPost, "/rules/"+created.ID+"/components", map[string]any{
		"type":          "condition",
		"plugin_id":     "user_role",
		"configuration": map[string]any{"roles": []string{"member"}},
	})
	if addRec.Code != http.StatusCreated {
		t.Fatalf("expected 201 adding component, got %d: %s", addRec.Code, addRec.Body.String())
	}
	var component ComponentResponse
	if err := json.NewDecoder(addRec.Body).Decode(&component); err != nil {
		t.Fatalf("failed to decode component response: %v", err)
	}

	updateRec := doJSON(t, router, http.MethodPut, "/rules/components/"+component.ID, map[string]any{
		"type":          "condition",
		"plugin_id":     "user_role",
		"configuration": map[string]any{"roles": []string{"member", "admin"}},
	})
	if updateRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 updating component, got %d", updateRec.Code)
	}

	removeRec := doJSON(t, router, http.MethodDelete, "/rules/components/"+component.ID, nil)
	if removeRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 deleting component, got %d", removeRec.Code)
	}
}

func TestInvalidRuleIDs(t *testing.T) {
	router, _ := newRulesRouter(t)

	if rec := doJSON(t, router, http.MethodDelete, "/rules/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed rule id, got %d", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodDelete, "/rules/"+uuid.New().String(), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown rule id, got %d", rec.Code)
	}
}

func TestCustomize(t *testing.T) {
	router, types := newRulesRouter(t)

	eventType := &eventtypemodels.EventType{
		EntityType:         "node",
		Bundle:             "conference",
		CustomRulesAllowed: true,
	}
	if err := types.Save(t.Context(), eventType); err != nil {
		t.Fatalf("failed to save event type: %v", err)
	}
	template := &eventtypemodels.EventTypeRule{
		EventEntityType: "node",
		EventBundle:     "conference",
		MachineName:     "open_registration",
		TriggerID:       "event.register",
	}
	template.SetAction("grant", "registration_operations", map[string]any{
		"operations": map[string]any{"create": true},
	})
	if err := types.SaveRule(t.Context(), template); err != nil {
		t.Fatalf("failed to save template: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/events/node/42/rules/customize", map[string]any{
		"bundle":  "conference",
		"trigger": "event.register",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 customizing, got %d: %s", rec.Code, rec.Body.String())
	}
	var materialized []RuleResponse
	if err := json.NewDecoder(rec.Body).Decode(&materialized); err != nil {
		t.Fatalf("failed to decode customized rules: %v", err)
	}
	if len(materialized) != 1 || materialized[0].Synthesized {
		t.Fatalf("expected one persisted rule, got %+v", materialized)
	}
}

func TestCustomizeDisabled(t *testing.T) {
	router, types := newRulesRouter(t)

	eventType := &eventtypemodels.EventType{
		EntityType: "node",
		Bundle:     "locked",
	}
	if err := types.Save(t.Context(), eventType); err != nil {
		t.Fatalf("failed to save event type: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/events/node/42/rules/customize", map[string]any{
		"bundle":  "locked",
		"trigger": "event.register",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 when customization is disabled, got %d", rec.Code)
	}
}
