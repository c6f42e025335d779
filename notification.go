package apns

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mhaga/apns-core/notification"
	"github.com/mhaga/apns-core/notification/priority"
)

// Notification is an immutable description of a single push to a single
// device token. Once constructed it is consumed by exactly one call to
// Client.Send and is never reused across retries.
type Notification struct {
	// BundleID is the app's bundle identifier. Used to derive Topic when
	// TopicOverride is empty.
	BundleID string

	// TopicOverride, when non-empty, is sent verbatim as apns-topic instead
	// of the BundleID-derived value.
	TopicOverride string

	// DeviceToken is the hex device token the notification is addressed to.
	DeviceToken string

	// Type is the apns-push-type header value.
	Type notification.PushType

	// APNsID, if set, must be a valid UUID and is echoed back by APNs.
	APNsID string

	// Expiration is the apns-expiration header value. nil omits the header.
	Expiration *notification.EpochTime

	// Priority is the apns-priority header value. Only priority.Immediate and
	// priority.Conserve are written; priority.None and priority.PowerOnly omit
	// the header.
	Priority priority.Priority

	// CollapseID is the apns-collapse-id header value, at most 64 bytes.
	CollapseID string

	// Payload is the notification body. Required for Alert and Background
	// push types.
	Payload *Payload
}

// topicSuffixes maps push types that widen the bundle ID into a topic onto
// their fixed suffix, per Apple's apns-topic conventions.
var topicSuffixes = map[notification.PushType]string{
	notification.Complication: ".complication",
	notification.Controls:     ".push-type.controls",
	notification.Fileprovider: ".pushkit.fileprovider",
	notification.Liveactivity: ".push-type.liveactivity",
	notification.Location:     ".location-query",
	notification.Pushtotalk:   ".voip-ptt",
	notification.Voip:         ".voip",
	notification.Widgets:      ".push-type.widgets",
}

// Topic returns TopicOverride if set, otherwise derives the topic from
// BundleID and Type.
func (n *Notification) Topic() string {
	if n.TopicOverride != "" {
		return n.TopicOverride
	}
	if suffix, ok := topicSuffixes[n.Type]; ok {
		return n.BundleID + suffix
	}
	return n.BundleID
}

func validPushType(t notification.PushType) bool {
	switch t {
	case notification.Alert, notification.Background, notification.Complication,
		notification.Controls, notification.Fileprovider, notification.Liveactivity,
		notification.Location, notification.Mdm, notification.Pushtotalk,
		notification.Voip, notification.Widgets:
		return true
	default:
		return false
	}
}

func validPriority(p priority.Priority) bool {
	switch p {
	case priority.None, priority.PowerOnly, priority.Conserve, priority.Immediate:
		return true
	default:
		return false
	}
}

// Validate checks required fields and cross-field constraints. It does not
// enforce wire-level formatting (hex token length, UTF-8 topic); that is
// the mock server's job per its own validation chain. This is the
// caller-side "don't even try to send garbage" check.
func (n *Notification) Validate() error {
	if n.BundleID == "" {
		return fmt.Errorf("%w: BundleID is required", ErrInvalidArgument)
	}
	if n.DeviceToken == "" {
		return fmt.Errorf("%w: DeviceToken is required", ErrInvalidArgument)
	}
	if n.Type == "" {
		return fmt.Errorf("%w: apns-push-type is required", ErrInvalidArgument)
	}
	if !validPushType(n.Type) {
		return fmt.Errorf("%w: invalid apns-push-type: %s", ErrInvalidArgument, n.Type)
	}
	if n.APNsID != "" {
		if _, err := uuid.Parse(n.APNsID); err != nil {
			return fmt.Errorf("%w: invalid APNsID: %s", ErrInvalidArgument, n.APNsID)
		}
	}
	if !validPriority(n.Priority) {
		return fmt.Errorf("%w: invalid apns-priority: %d", ErrInvalidArgument, n.Priority)
	}
	if n.CollapseID != "" && len(n.CollapseID) > 64 {
		return fmt.Errorf("%w: CollapseID exceeds 64 bytes", ErrInvalidArgument)
	}

	switch n.Type {
	case notification.Alert:
		if n.Payload == nil {
			return fmt.Errorf("%w: Payload is required for alert push type", ErrInvalidArgument)
		}
	case notification.Background:
		if n.Payload == nil {
			return fmt.Errorf("%w: Payload is required for background push type", ErrInvalidArgument)
		}
	}
	if n.Payload != nil {
		if err := n.Payload.APS.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a shallow copy suitable for retargeting at a different
// device token via PushMulti; Payload is shared, not deep-copied, since it
// is serialized once and treated as read-only thereafter.
func (n *Notification) Clone() *Notification {
	cp := *n
	return &cp
}

// RejectionReason enumerates the closed set of reasons APNs (or the mock
// server) can give for not accepting a notification.
type RejectionReason string

const (
	ReasonBadCollapseID                RejectionReason = "BadCollapseId"
	ReasonBadDeviceToken               RejectionReason = "BadDeviceToken"
	ReasonBadExpirationDate            RejectionReason = "BadExpirationDate"
	ReasonBadMessageID                 RejectionReason = "BadMessageId"
	ReasonBadPath                      RejectionReason = "BadPath"
	ReasonBadPriority                  RejectionReason = "BadPriority"
	ReasonBadTopic                     RejectionReason = "BadTopic"
	ReasonDeviceTokenNotForTopic       RejectionReason = "DeviceTokenNotForTopic"
	ReasonDuplicateHeaders             RejectionReason = "DuplicateHeaders"
	ReasonExpiredProviderToken         RejectionReason = "ExpiredProviderToken"
	ReasonForbidden                    RejectionReason = "Forbidden"
	ReasonIdleTimeout                  RejectionReason = "IdleTimeout"
	ReasonInvalidProviderToken         RejectionReason = "InvalidProviderToken"
	ReasonMissingDeviceToken           RejectionReason = "MissingDeviceToken"
	ReasonMissingProviderToken         RejectionReason = "MissingProviderToken"
	ReasonMissingTopic                 RejectionReason = "MissingTopic"
	ReasonPayloadEmpty                 RejectionReason = "PayloadEmpty"
	ReasonPayloadTooLarge              RejectionReason = "PayloadTooLarge"
	ReasonTooManyProviderTokenUpdates  RejectionReason = "TooManyProviderTokenUpdates"
	ReasonTooManyRequests              RejectionReason = "TooManyRequests"
	ReasonTopicDisallowed              RejectionReason = "TopicDisallowed"
	ReasonUnregistered                 RejectionReason = "Unregistered"
	ReasonInternalServerError          RejectionReason = "InternalServerError"
	ReasonServiceUnavailable           RejectionReason = "ServiceUnavailable"
	ReasonShutdown                     RejectionReason = "Shutdown"
)

// HTTPStatus returns the HTTP/2 :status code the mock server (and APNs
// itself) answers with for this reason.
func (r RejectionReason) HTTPStatus() int {
	switch r {
	case ReasonBadCollapseID, ReasonBadDeviceToken, ReasonBadExpirationDate,
		ReasonBadMessageID, ReasonBadPriority, ReasonBadTopic, ReasonDeviceTokenNotForTopic,
		ReasonDuplicateHeaders, ReasonMissingDeviceToken, ReasonMissingTopic,
		ReasonPayloadEmpty, ReasonTopicDisallowed:
		return 400
	case ReasonExpiredProviderToken, ReasonForbidden, ReasonInvalidProviderToken,
		ReasonMissingProviderToken:
		return 403
	case ReasonBadPath:
		return 405
	case ReasonUnregistered:
		return 410
	case ReasonPayloadTooLarge:
		return 413
	case ReasonTooManyProviderTokenUpdates, ReasonTooManyRequests:
		return 429
	case ReasonInternalServerError:
		return 500
	case ReasonServiceUnavailable, ReasonIdleTimeout, ReasonShutdown:
		return 503
	default:
		return 500
	}
}

// reasonFromWire maps the wire string back onto a RejectionReason. It trims
// surrounding whitespace and otherwise keeps the spelling as sent.
func reasonFromWire(s string) RejectionReason {
	return RejectionReason(strings.TrimSpace(s))
}

// Response is the outcome of a single Send call. It resolves exactly once.
type Response struct {
	// APNsID is the canonical UUID of the notification, always present.
	APNsID string

	// Accepted is true when APNs returned :status 200.
	Accepted bool

	// RejectionReason is set when Accepted is false.
	RejectionReason RejectionReason

	// TokenInvalidationTimestamp is set only when RejectionReason is
	// ReasonUnregistered.
	TokenInvalidationTimestamp int64
}
