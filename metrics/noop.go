package metrics

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) SendRequest(outcome string)       {}
func (n *NoopSink) RecipientProcessed(result string) {}
func (n *NoopSink) ErrorTokensUpdated(entries int)   {}
func (n *NoopSink) Reset()                           {}
func (n *NoopSink) ActivityRecordsUpdate(count int)  {}
func (n *NoopSink) ConnectorError(connector string)  {}
