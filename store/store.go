package store

import (
	"encoding/json"
	"fmt"

	"mock-fcm/fcm"
)

// ErrorConfig is the failure injected for one device token.
type ErrorConfig struct {
	Status    json.RawMessage
	Reason    string
	Timestamp json.RawMessage // optional
}

// MarshalJSON encodes the config as the array [status, reason, timestamp]
// served by GET /error-tokens.
func (c ErrorConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{rawOrNull(c.Status), c.Reason, rawOrNull(c.Timestamp)})
}

func (c *ErrorConfig) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return fmt.Errorf("error config: expected 3 elements, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[1], &c.Reason); err != nil {
		return fmt.Errorf("error config reason: %w", err)
	}
	c.Status = parts[0]
	c.Timestamp = parts[2]
	return nil
}

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

// ErrorEntry is one element of an /error-tokens configuration body.
// Required fields are pointers or raw values so absence can be told apart
// from zero values.
type ErrorEntry struct {
	DeviceToken *string         `json:"device_token"`
	Status      json.RawMessage `json:"status"`
	Reason      *string         `json:"reason"`
	Timestamp   json.RawMessage `json:"timestamp,omitempty"`
}

// ValidationError reports a malformed configuration or send request.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func missingKey(name string) error {
	return &ValidationError{Msg: fmt.Sprintf("Missing key '%s'", name)}
}

// Validate checks the required fields and returns the token and config.
func (e ErrorEntry) Validate() (string, ErrorConfig, error) {
	if e.DeviceToken == nil {
		return "", ErrorConfig{}, missingKey("device_token")
	}
	if len(e.Status) == 0 {
		return "", ErrorConfig{}, missingKey("status")
	}
	if e.Reason == nil {
		return "", ErrorConfig{}, missingKey("reason")
	}
	return *e.DeviceToken, ErrorConfig{
		Status:    e.Status,
		Reason:    *e.Reason,
		Timestamp: e.Timestamp,
	}, nil
}

// ActivityRecord describes one recipient processed by one send call.
type ActivityRecord struct {
	DeviceToken    string            `json:"device_token"`
	RequestHeaders map[string]string `json:"request_headers"`
	RequestData    json.RawMessage   `json:"request_data"`
	ResponseStatus int               `json:"response_status"`
	ResponseData   fcm.SendResponse  `json:"response_data"`
}

// ErrorRegistry maps device tokens to injected failures.
type ErrorRegistry interface {
	// Upsert applies entries in order. It stops at the first invalid entry
	// and returns a *ValidationError; earlier entries stay applied.
	Upsert(entries []ErrorEntry) error
	// Replace validates every entry and then swaps the whole registry.
	Replace(entries []ErrorEntry) error
	Lookup(token string) (ErrorConfig, bool, error)
	ErrorTokens() (map[string]ErrorConfig, error)
	ClearErrorTokens() error
}

// ActivityLog is the append-only audit trail of simulated sends.
type ActivityLog interface {
	Append(rec ActivityRecord) error
	Activity() ([]ActivityRecord, error)
	ActivityCount() (int, error)
	ClearActivity() error
}

type Store interface {
	ErrorRegistry
	ActivityLog

	// Reset clears both the registry and the activity log.
	Reset() error
	Close() error
}

// validateAll returns the validated configs of entries, keyed by token,
// preserving last-write-wins for duplicates.
func validateAll(entries []ErrorEntry) (map[string]ErrorConfig, error) {
	configs := make(map[string]ErrorConfig, len(entries))
	for _, e := range entries {
		token, cfg, err := e.Validate()
		if err != nil {
			return nil, err
		}
		configs[token] = cfg
	}
	return configs, nil
}
