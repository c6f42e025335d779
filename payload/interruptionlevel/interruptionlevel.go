// Package interruptionlevel defines the aps.interruption-level
// values controlling how intrusively iOS presents a notification.
package interruptionlevel

// InterruptionLevel ranks how insistently the system should surface a
// notification, from silent delivery to bypassing Do Not Disturb.
type InterruptionLevel string

const (
	Active        InterruptionLevel = "active"        // normal foreground presentation
	Passive       InterruptionLevel = "passive"        // delivered quietly, no interruption
	TimeSensitive InterruptionLevel = "time-sensitive" // presented immediately
	Critical      InterruptionLevel = "critical"       // may bypass Do Not Disturb / silent mode
)
