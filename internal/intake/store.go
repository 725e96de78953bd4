package intake

import (
	"context"
	"encoding/json"
	"fmt"
)

// SessionStore is a key-value store scoped to one client session.
type SessionStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Logical keys of the intake namespace.
const (
	KeyDraft              = "draft"
	KeyIdempotencyToken   = "idempotency-token"
	KeySelectedOfficeName = "selected-office-name"
	KeyAppointmentDate    = "appointment-date"
	KeySubmissionSummary  = "submission-summary"
	KeyFailureSnapshot    = "failure-snapshot"
	KeyClientSessionID    = "client-session-id"
	KeyStep               = "step"
	KeyRosterFile         = "roster-file"
	KeyOfficeReselect     = "office-reselect"
)

// draftKeys are removed once a submission has succeeded.
var draftKeys = []string{
	KeyDraft,
	KeyIdempotencyToken,
	KeySelectedOfficeName,
	KeyAppointmentDate,
	KeyRosterFile,
	KeyOfficeReselect,
}

func getJSON(ctx context.Context, s SessionStore, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func setJSON(ctx context.Context, s SessionStore, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

func getString(ctx context.Context, s SessionStore, key string) (string, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return "", err
	}
	return string(raw), nil
}

// setOrRemove stores a display field, removing the key when it is empty.
func setOrRemove(ctx context.Context, s SessionStore, key, value string) error {
	if value == "" {
		return s.Remove(ctx, key)
	}
	return s.Set(ctx, key, []byte(value))
}

func removeAll(ctx context.Context, s SessionStore, keys ...string) error {
	for _, k := range keys {
		if err := s.Remove(ctx, k); err != nil {
			return fmt.Errorf("remove %s: %w", k, err)
		}
	}
	return nil
}
