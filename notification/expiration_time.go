// Package notification holds the value types that describe an APNs
// notification's delivery metadata: expiration, priority and push type.
package notification

import (
	"strconv"
	"time"
)

// EpochTime is a seconds-since-epoch UNIX timestamp, the wire
// representation APNs uses for apns-expiration and the aps stale-date/
// timestamp fields.
type EpochTime int64

// ExpirationOnce is the zero EpochTime: "do not store, attempt delivery
// once". It is still written as apns-expiration: 0, a no-retention
// marker; only a nil expiration omits the header.
var ExpirationOnce = NewEpochTime(time.Time{})

// NewEpochTime converts t to an *EpochTime. The zero time.Time maps to
// EpochTime(0) (ExpirationOnce) rather than a negative Unix value.
func NewEpochTime(t time.Time) *EpochTime {
	if t.IsZero() {
		zero := EpochTime(0)
		return &zero
	}
	sec := EpochTime(t.UTC().Unix())
	return &sec
}

// String renders e as the decimal seconds-since-epoch APNs expects on
// the wire.
func (e EpochTime) String() string {
	return strconv.FormatInt(int64(e), 10)
}
