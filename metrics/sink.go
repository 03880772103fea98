package metrics

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations must not block or return errors.
type Sink interface {
	// Send endpoint
	SendRequest(outcome string)
	RecipientProcessed(result string)

	// Control surface
	ErrorTokensUpdated(entries int)
	Reset()

	// Activity log
	ActivityRecordsUpdate(count int)
	ConnectorError(connector string)
}

// Outcome constants for SendRequest.
const (
	OutcomeOK           = "ok"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

// Result constants for RecipientProcessed.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)
