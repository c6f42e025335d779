// Package priority defines the apns-priority header values.
package priority

import "strconv"

// Priority is the delivery priority APNs applies to a notification.
type Priority int

const (
	// None leaves the apns-priority header unset; APNs defaults to 10.
	None Priority = 0
	// PowerOnly delivers only while the device has power, without waking it.
	PowerOnly Priority = 1
	// Conserve delivers with power conservation in mind; may be delayed
	// on low-power devices.
	Conserve Priority = 5
	// Immediate delivers right away, waking the device if needed.
	Immediate Priority = 10
)

// String renders p as the decimal header value, or "" for None so
// callers know to omit the header rather than send a bogus one.
func (p Priority) String() string {
	switch p {
	case PowerOnly, Conserve, Immediate:
		return strconv.FormatInt(int64(p), 10)
	default:
		return ""
	}
}
