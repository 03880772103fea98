package connectors

import "context"

// Connector is notified of every activity record appended by the dispatch
// engine. The payload is the record encoded as JSON.
type Connector interface {
	// Send delivers the record for the given device token.
	Send(ctx context.Context, token string, payload []byte) error
}
