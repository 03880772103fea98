// Package fcm holds the wire types of the legacy FCM HTTP send API
// (POST /fcm/send) as the mock understands them.
package fcm

import (
	"encoding/json"
	"errors"
)

// PlaceholderMessageID is returned for every successful recipient.
const PlaceholderMessageID = "23hrjniofwc0923hno"

// Bounds of the random multicast_id, lower inclusive, upper exclusive.
const (
	MinMulticastID = 1000
	MaxMulticastID = 99999999
)

// SendRequest is a batch push request. Only the addressing fields are
// decoded; the rest of the body is kept verbatim in Raw.
type SendRequest struct {
	To              *string  `json:"to"`
	RegistrationIDs []string `json:"registration_ids"`

	Raw json.RawMessage `json:"-"`
}

// ParseSendRequest decodes body and keeps a copy of it as the request data.
func ParseSendRequest(body []byte) (SendRequest, error) {
	var req SendRequest
	if len(body) == 0 {
		return req, errors.New("empty request body")
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, err
	}
	req.Raw = append(json.RawMessage(nil), body...)
	return req, nil
}

// Recipients returns the tokens addressed by the request. A non-null "to"
// selects single-recipient mode regardless of registration_ids.
func (r SendRequest) Recipients() []string {
	if r.To != nil {
		return []string{*r.To}
	}
	return r.RegistrationIDs
}

// Result is the per-recipient outcome. It encodes as either
// {"message_id": ...} or {"error": ...}, even when the reason is empty.
type Result struct {
	MessageID string
	Error     string
	Failed    bool
}

// SuccessResult reports a delivered recipient.
func SuccessResult(messageID string) Result {
	return Result{MessageID: messageID}
}

// ErrorResult reports a failed recipient with the given reason.
func ErrorResult(reason string) Result {
	return Result{Error: reason, Failed: true}
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.Failed {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	return json.Marshal(struct {
		MessageID string `json:"message_id"`
	}{r.MessageID})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var aux struct {
		MessageID *string `json:"message_id"`
		Error     *string `json:"error"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Result{}
	if aux.Error != nil {
		r.Error, r.Failed = *aux.Error, true
	}
	if aux.MessageID != nil {
		r.MessageID = *aux.MessageID
	}
	return nil
}

// SendResponse is the multicast response body.
type SendResponse struct {
	MulticastID  int64    `json:"multicast_id"`
	Success      int      `json:"success"`
	Failure      int      `json:"failure"`
	CanonicalIDs int      `json:"canonical_ids"`
	Results      []Result `json:"results"`
}
