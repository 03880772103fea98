package dispatch

import (
	"sync"

	"mock-fcm/metrics"
)

// RecordingSink implements metrics.Sink and keeps the calls it receives
type RecordingSink struct {
	mu             sync.Mutex
	Outcomes       map[string]int
	TokenUpdates   int
	Resets         int
	ActivityCount  int
	ConnectorFails map[string]int
}

var _ metrics.Sink = (*RecordingSink)(nil)

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{
		Outcomes:       map[string]int{},
		ConnectorFails: map[string]int{},
	}
}

func (r *RecordingSink) SendRequest(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outcomes[outcome]++
}

func (r *RecordingSink) RecipientProcessed(result string) {}

func (r *RecordingSink) ErrorTokensUpdated(entries int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TokenUpdates += entries
}

func (r *RecordingSink) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Resets++
}

func (r *RecordingSink) ActivityRecordsUpdate(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ActivityCount = count
}

func (r *RecordingSink) ConnectorError(connector string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ConnectorFails[connector]++
}

func (r *RecordingSink) Outcome(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Outcomes[name]
}
