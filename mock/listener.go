package mock

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mhaga/apns-core"
)

// Received reconstructs what one request said and how the server
// answered it, for test assertions.
type Received struct {
	DeviceToken   string
	Topic         string
	APNsID        string
	Priority      int
	CollapseID    string
	Expiration    int64
	HasExpiration bool
	Payload       map[string]any

	Accepted                   bool
	Reason                     apns.RejectionReason
	TokenInvalidationTimestamp int64
}

// ParseNotification turns an IncomingRequest plus the Outcome the
// Handler produced for it back into a Received record.
func ParseNotification(req *IncomingRequest, outcome *Outcome) (*Received, error) {
	rec := &Received{
		DeviceToken:                req.DeviceToken,
		Topic:                      req.Topic,
		APNsID:                     outcome.APNsID,
		CollapseID:                 req.CollapseID,
		Accepted:                   outcome.Accept,
		Reason:                     outcome.Reason,
		TokenInvalidationTimestamp: outcome.TokenInvalidationTimestamp,
	}

	if req.Priority != "" {
		p, err := strconv.Atoi(req.Priority)
		if err != nil {
			return nil, fmt.Errorf("mock: malformed apns-priority %q: %w", req.Priority, err)
		}
		rec.Priority = p
	}

	if req.Expiration != "" {
		e, err := strconv.ParseInt(req.Expiration, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("mock: malformed apns-expiration %q: %w", req.Expiration, err)
		}
		rec.Expiration = e
		rec.HasExpiration = true
	}

	if len(req.Body) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(req.Body, &payload); err != nil {
			return nil, fmt.Errorf("mock: malformed payload: %w", err)
		}
		rec.Payload = payload
	}

	return rec, nil
}
