package connectors

import (
	"context"
	"log"
)

// LogConnector is a connector that simply logs each activity record.
type LogConnector struct{}

// NewLogConnector creates a new LogConnector.
func NewLogConnector() *LogConnector {
	return &LogConnector{}
}

// Send logs the record payload.
func (l *LogConnector) Send(ctx context.Context, token string, payload []byte) error {
	log.Printf("[Activity] %s: %s", token, string(payload))
	return nil
}
