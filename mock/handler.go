// Package mock implements an HTTP/2 server that speaks the same wire
// protocol as APNs so a Client can be driven end-to-end in tests without
// a real Apple connection. It also validates requests the way Apple's
// servers do and reconstructs what a request said for test assertions.
package mock

import (
	"github.com/google/uuid"

	"github.com/mhaga/apns-core"
)

// IncomingRequest is everything the server extracted from one HTTP/2
// request before handing it to a Handler.
type IncomingRequest struct {
	Method        string
	Path          string
	DeviceToken   string
	Topic         string
	APNsID        string
	Priority      string
	CollapseID    string
	Expiration    string
	Authorization string
	Body          []byte
}

// Outcome is a Handler's verdict on one IncomingRequest.
type Outcome struct {
	Accept                     bool
	Reason                     apns.RejectionReason
	TokenInvalidationTimestamp int64
	// APNsID is echoed back on the response; when it is empty the server
	// sends no apns-id header. The built-in handlers allocate one when the
	// request didn't supply it.
	APNsID string
}

// Handler is the pluggable policy a Server dispatches every request to,
// letting callers replace the ordered Validator with their own policy
// (e.g. AcceptAll, a custom handler).
type Handler interface {
	Handle(req *IncomingRequest) *Outcome
}

// AcceptAllHandler accepts every request without running the Validator's
// ordered checks. Handle allocates an apns-id if the request didn't
// supply one.
type AcceptAllHandler struct{}

func (AcceptAllHandler) Handle(req *IncomingRequest) *Outcome {
	apnsID := req.APNsID
	if apnsID == "" {
		apnsID = uuid.NewString()
	}
	return &Outcome{Accept: true, APNsID: apnsID}
}
