package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"mock-fcm/connectors"
	"mock-fcm/fcm"
	"mock-fcm/metrics"
	"mock-fcm/store"
)

// ConnectorTimeout bounds a single connector notification.
const ConnectorTimeout = 5 * time.Second

// ErrUnauthorized is returned by Send when the request carried no
// authorization header.
var ErrUnauthorized = errors.New("authorization header missing")

// Engine turns batch push requests into multicast responses, consulting the
// error registry per recipient and recording every step in the activity log.
type Engine struct {
	// mu serializes sends and resets so the records of one batch stay
	// contiguous in the log.
	mu    sync.Mutex
	store store.Store

	// notifyMu is taken before mu is released, so connectors see batches in
	// log order without holding up the next send or reset.
	notifyMu sync.Mutex

	connMu     sync.RWMutex
	connectors map[string]connectors.Connector

	metrics     metrics.Sink
	multicastID func() int64
}

// NewEngine initializes an Engine over s.
func NewEngine(s store.Store) *Engine {
	return &Engine{
		store:       s,
		connectors:  map[string]connectors.Connector{},
		metrics:     metrics.NewNoopSink(),
		multicastID: randomMulticastID,
	}
}

// WithMetrics sets the sink that records send and control activity.
func (e *Engine) WithMetrics(sink metrics.Sink) *Engine {
	e.metrics = sink
	return e
}

// WithMulticastIDs overrides the multicast_id generator.
func (e *Engine) WithMulticastIDs(next func() int64) *Engine {
	e.multicastID = next
	return e
}

func randomMulticastID() int64 {
	return fcm.MinMulticastID + rand.Int64N(fcm.MaxMulticastID-fcm.MinMulticastID)
}

// RegisterConnector adds a connector notified of every appended record.
func (e *Engine) RegisterConnector(name string, c connectors.Connector) {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	e.connectors[name] = c
}

// Send simulates a push to every recipient of req.
//
// The returned response is the one built for the last recipient; the
// intermediate per-recipient responses only reach the activity log. Each
// response carries the results accumulated so far and a fresh multicast_id.
func (e *Engine) Send(ctx context.Context, authPresent bool, headers map[string]string, req fcm.SendRequest) (*fcm.SendResponse, error) {
	if !authPresent {
		e.metrics.SendRequest(metrics.OutcomeUnauthorized)
		return nil, ErrUnauthorized
	}

	tokens := req.Recipients()
	if len(tokens) == 0 {
		e.metrics.SendRequest(metrics.OutcomeInvalid)
		return nil, &store.ValidationError{Msg: "empty recipient list"}
	}

	lowered := lowerHeaders(headers)

	e.mu.Lock()
	resp, appended, err := e.process(lowered, req, tokens)
	e.notifyMu.Lock()
	e.mu.Unlock()
	defer e.notifyMu.Unlock()

	for _, rec := range appended {
		e.notify(ctx, rec)
	}
	if err != nil {
		e.metrics.SendRequest(metrics.OutcomeError)
		return nil, err
	}

	e.metrics.SendRequest(metrics.OutcomeOK)
	e.updateActivityGauge()
	return resp, nil
}

// SendRaw parses body and sends it. Once the authorization check has
// passed, a malformed body is reported as a *store.ValidationError.
func (e *Engine) SendRaw(ctx context.Context, authPresent bool, headers map[string]string, body []byte) (*fcm.SendResponse, error) {
	req, err := fcm.ParseSendRequest(body)
	if err != nil && authPresent {
		e.metrics.SendRequest(metrics.OutcomeInvalid)
		return nil, &store.ValidationError{Msg: "Invalid request body"}
	}
	return e.Send(ctx, authPresent, headers, req)
}

// process runs the batch against the store and returns the final response
// together with the records appended so far. Callers hold e.mu.
func (e *Engine) process(headers map[string]string, req fcm.SendRequest, tokens []string) (*fcm.SendResponse, []store.ActivityRecord, error) {
	var (
		resp     fcm.SendResponse
		results  []fcm.Result
		appended []store.ActivityRecord
		success  int
		failures int
	)
	for _, token := range tokens {
		cfg, found, err := e.store.Lookup(token)
		if err != nil {
			return nil, appended, fmt.Errorf("failed to look up %s: %w", token, err)
		}

		if found {
			failures++
			results = append(results, fcm.ErrorResult(cfg.Reason))
			e.metrics.RecipientProcessed(metrics.ResultFailure)
		} else {
			success++
			results = append(results, fcm.SuccessResult(fcm.PlaceholderMessageID))
			e.metrics.RecipientProcessed(metrics.ResultSuccess)
		}

		resp = fcm.SendResponse{
			MulticastID:  e.multicastID(),
			Success:      success,
			Failure:      failures,
			CanonicalIDs: 0,
			Results:      slices.Clone(results),
		}

		rec := store.ActivityRecord{
			DeviceToken:    token,
			RequestHeaders: headers,
			RequestData:    req.Raw,
			ResponseStatus: 200,
			ResponseData:   resp,
		}
		if err := e.store.Append(rec); err != nil {
			return nil, appended, fmt.Errorf("failed to record activity for %s: %w", token, err)
		}
		appended = append(appended, rec)
	}
	return &resp, appended, nil
}

// notify hands rec to every registered connector. Connector failures are
// logged and never fail the send. Connectors outlive the caller's request,
// so only its values are kept and each call gets ConnectorTimeout.
func (e *Engine) notify(ctx context.Context, rec store.ActivityRecord) {
	e.connMu.RLock()
	defer e.connMu.RUnlock()
	if len(e.connectors) == 0 {
		return
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		log.Printf("[Send] Failed to encode activity record for %s: %v", rec.DeviceToken, err)
		return
	}

	ctx = context.WithoutCancel(ctx)
	for name, c := range e.connectors {
		cctx, cancel := context.WithTimeout(ctx, ConnectorTimeout)
		err := c.Send(cctx, rec.DeviceToken, payload)
		cancel()
		if err != nil {
			log.Printf("[Send] Connector %s failed for %s: %v", name, rec.DeviceToken, err)
			e.metrics.ConnectorError(name)
		}
	}
}

func (e *Engine) updateActivityGauge() {
	count, err := e.store.ActivityCount()
	if err != nil {
		log.Printf("[Send] Failed to count activity: %v", err)
		return
	}
	e.metrics.ActivityRecordsUpdate(count)
}

func lowerHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[strings.ToLower(k)] = v
	}
	return out
}
