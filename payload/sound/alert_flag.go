// Package sound holds the flag type backing a Sound's critical field.
package sound

// AlertFlag is the `critical` field of a Sound object: 0 or 1, never a
// JSON boolean, per APNs's payload schema.
type AlertFlag int

const (
	None     AlertFlag = 0 // not a critical alert
	Critical AlertFlag = 1 // bypasses the mute switch and Do Not Disturb
)
