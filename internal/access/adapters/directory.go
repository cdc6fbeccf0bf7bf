// Package adapters connects the eligibility service to the external system
// that owns events and identities.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"eventgate/internal/rules/models"
	"eventgate/pkg/domain"
	"eventgate/pkg/platform/sentinel"
)

// Directory loads events and identities from an upstream HTTP directory.
// It expects GET {base}/events/{type}/{id} and GET {base}/identities/{type}/{id}.
type Directory struct {
	baseURL string
	client  *http.Client
}

func NewDirectory(baseURL string) *Directory {
	return &Directory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type eventPayload struct {
	Bundle string `json:"bundle"`
}

type identityPayload struct {
	Roles     []string `json:"roles"`
	Confirmed bool     `json:"confirmed"`
}

func (d *Directory) LoadEvent(ctx context.Context, ref domain.EntityRef) (models.Event, error) {
	var payload eventPayload
	if err := d.get(ctx, fmt.Sprintf("events/%s/%s", url.PathEscape(ref.Type), url.PathEscape(ref.ID)), &payload); err != nil {
		return models.Event{}, fmt.Errorf("load event %s: %w", ref, err)
	}
	return models.Event{Ref: ref, Bundle: payload.Bundle}, nil
}

func (d *Directory) LoadIdentity(ctx context.Context, ref domain.EntityRef) (*models.Identity, error) {
	var payload identityPayload
	if err := d.get(ctx, fmt.Sprintf("identities/%s/%s", url.PathEscape(ref.Type), url.PathEscape(ref.ID)), &payload); err != nil {
		return nil, fmt.Errorf("load identity %s: %w", ref, err)
	}
	return &models.Identity{
		Ref:       ref,
		Roles:     payload.Roles,
		Confirmed: payload.Confirmed,
	}, nil
}

func (d *Directory) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/"+path, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: directory returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode directory response: %w", err)
	}
	return nil
}
