package mock

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mhaga/apns-core"
	"github.com/mhaga/apns-core/auth"
)

// Validator implements APNs's ordered request-validation chain, given
// the device-to-topic and expiration bookkeeping a test would otherwise
// hand-roll per request.
type Validator struct {
	// DeviceTokensByTopic restricts which device tokens are considered
	// registered for a given topic. A topic absent from this map accepts
	// any token.
	DeviceTokensByTopic map[string]map[string]struct{}

	// ExpirationTimestampsByToken records, per device token, the Unix
	// time at which APNs considers the token's app uninstalled. A token
	// whose expiration is before "now" is rejected as Unregistered.
	ExpirationTimestampsByToken map[string]int64

	// Verifier authenticates the authorization header for token-auth
	// requests. Leave nil to run in certificate-auth mode, where check 9
	// is skipped entirely (the TLS handshake already proved identity).
	Verifier *auth.Verifier

	// Clock is used for "now" against ExpirationTimestampsByToken.
	// Defaults to auth.SystemClock{}.
	Clock auth.Clock
}

func (v *Validator) now() int64 {
	clock := v.Clock
	if clock == nil {
		clock = auth.SystemClock{}
	}
	return clock.Now().Unix()
}

// Handle runs the ordered checks below, returning the first failure
// encountered, or Accept if every check passes.
func (v *Validator) Handle(req *IncomingRequest) *Outcome {
	// 1. method + path already routed by Server to reach here; a
	// mismatch is caught by Server itself before Handle is called.

	// 2. device token present and hex, 64..=200 chars.
	if req.DeviceToken == "" {
		return reject(apns.ReasonMissingDeviceToken)
	}
	if !isHex(req.DeviceToken) || len(req.DeviceToken) < 64 || len(req.DeviceToken) > 200 {
		return reject(apns.ReasonBadDeviceToken)
	}

	// 3. apns-id, if present, must be a UUID. If absent, allocate one.
	apnsID := req.APNsID
	if apnsID != "" {
		if _, err := uuid.Parse(apnsID); err != nil {
			return reject(apns.ReasonBadMessageID)
		}
	} else {
		apnsID = uuid.NewString()
	}

	// 4. apns-topic required.
	if req.Topic == "" {
		return rejectWithID(apns.ReasonMissingTopic, apnsID)
	}

	// 5. apns-priority, if present, must be 10 or 5.
	if req.Priority != "" {
		p, err := strconv.Atoi(req.Priority)
		if err != nil || (p != 10 && p != 5) {
			return rejectWithID(apns.ReasonBadPriority, apnsID)
		}
	}

	// 6. apns-collapse-id, if present, must be <= 64 bytes.
	if len(req.CollapseID) > 64 {
		return rejectWithID(apns.ReasonBadCollapseID, apnsID)
	}

	// 7. apns-expiration, if present, must be a non-negative integer.
	if req.Expiration != "" {
		e, err := strconv.ParseInt(req.Expiration, 10, 64)
		if err != nil || e < 0 {
			return rejectWithID(apns.ReasonBadExpirationDate, apnsID)
		}
	}

	// 8. payload present, non-empty, and within budget.
	if len(req.Body) == 0 {
		return rejectWithID(apns.ReasonPayloadEmpty, apnsID)
	}
	if len(req.Body) > 4096 {
		return rejectWithID(apns.ReasonPayloadTooLarge, apnsID)
	}

	// 9. token auth.
	if v.Verifier != nil {
		if !strings.HasPrefix(strings.ToLower(req.Authorization), "bearer ") {
			return rejectWithID(apns.ReasonMissingProviderToken, apnsID)
		}
		bearer := req.Authorization[len("bearer "):]
		key, err := v.Verifier.Verify(bearer)
		if err != nil {
			if ve, ok := err.(*auth.VerifyError); ok && ve.Failure == auth.FailureExpired {
				return rejectWithID(apns.ReasonExpiredProviderToken, apnsID)
			}
			return rejectWithID(apns.ReasonInvalidProviderToken, apnsID)
		}
		if !key.Authorizes(req.Topic) {
			return rejectWithID(apns.ReasonInvalidProviderToken, apnsID)
		}
	}

	// 10. token/topic binding and registration.
	if tokens, ok := v.DeviceTokensByTopic[req.Topic]; ok {
		if _, ok := tokens[req.DeviceToken]; !ok {
			return rejectWithID(apns.ReasonDeviceTokenNotForTopic, apnsID)
		}
	}
	if expiresAt, ok := v.ExpirationTimestampsByToken[req.DeviceToken]; ok {
		if expiresAt < v.now() {
			out := rejectWithID(apns.ReasonUnregistered, apnsID)
			out.TokenInvalidationTimestamp = expiresAt
			return out
		}
	}

	return &Outcome{Accept: true, APNsID: apnsID}
}

func reject(reason apns.RejectionReason) *Outcome {
	return &Outcome{Accept: false, Reason: reason, APNsID: uuid.NewString()}
}

func rejectWithID(reason apns.RejectionReason, apnsID string) *Outcome {
	return &Outcome{Accept: false, Reason: reason, APNsID: apnsID}
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}
