package dispatch

import (
	"errors"

	"mock-fcm/store"
)

// ConfigureErrors applies entries to the error registry and returns the
// resulting registry. With replace set the registry is swapped as a whole;
// otherwise entries are upserted in order and a validation failure leaves
// the earlier entries applied.
func (e *Engine) ConfigureErrors(entries []store.ErrorEntry, replace bool) (map[string]store.ErrorConfig, error) {
	var err error
	if replace {
		err = e.store.Replace(entries)
	} else {
		err = e.store.Upsert(entries)
	}
	if err != nil {
		var verr *store.ValidationError
		if !replace && errors.As(err, &verr) {
			e.metrics.ErrorTokensUpdated(validPrefix(entries))
		}
		return nil, err
	}
	e.metrics.ErrorTokensUpdated(len(entries))
	return e.store.ErrorTokens()
}

// validPrefix counts the entries before the first invalid one, which an
// upsert applies before failing.
func validPrefix(entries []store.ErrorEntry) int {
	for i, entry := range entries {
		if _, _, err := entry.Validate(); err != nil {
			return i
		}
	}
	return len(entries)
}

// ErrorTokens returns the current error registry.
func (e *Engine) ErrorTokens() (map[string]store.ErrorConfig, error) {
	return e.store.ErrorTokens()
}

// Activity returns the activity log in append order.
func (e *Engine) Activity() ([]store.ActivityRecord, error) {
	return e.store.Activity()
}

// Reset clears the error registry and the activity log.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Reset(); err != nil {
		return err
	}
	e.metrics.Reset()
	return nil
}

// Stats summarizes the current state for the health endpoint.
type Stats struct {
	ErrorTokens     int `json:"error_tokens"`
	ActivityRecords int `json:"activity_records"`
}

func (e *Engine) Stats() (Stats, error) {
	tokens, err := e.store.ErrorTokens()
	if err != nil {
		return Stats{}, err
	}
	count, err := e.store.ActivityCount()
	if err != nil {
		return Stats{}, err
	}
	return Stats{ErrorTokens: len(tokens), ActivityRecords: count}, nil
}
