// package payload provides types for constructing the payload of an APNs notification.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/mhaga/apns-core/payload/sound"
)

// ErrPayloadTooLarge is returned by Builder.Build when a payload cannot be
// made to fit the requested byte budget even after shortening the alert
// body down to nothing.
var ErrPayloadTooLarge = errors.New("payload: cannot fit within the requested size")

// Builder assembles an APNs JSON payload with a fluent API, mirroring the
// setter-based builders APNs provider libraries commonly expose. It wraps
// the same APS/Alert/Sound types the rest of this package already defines.
type Builder struct {
	aps      APS
	alert    Alert
	hasAlert bool

	preferString bool
	custom       map[string]any
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) ensureAlert() *Alert {
	b.hasAlert = true
	return &b.alert
}

// SetAlertBody sets the literal alert body text.
func (b *Builder) SetAlertBody(body string) *Builder {
	b.ensureAlert().Body = body
	return b
}

// SetAlertTitle sets the literal alert title.
func (b *Builder) SetAlertTitle(title string) *Builder {
	b.ensureAlert().Title = title
	return b
}

// SetAlertSubtitle sets the literal alert subtitle.
func (b *Builder) SetAlertSubtitle(subtitle string) *Builder {
	b.ensureAlert().Subtitle = subtitle
	return b
}

// SetLocalizedAlertBody sets loc-key/loc-args for the alert body, clearing
// any literal body previously set.
func (b *Builder) SetLocalizedAlertBody(locKey string, args []string) *Builder {
	a := b.ensureAlert()
	a.LocKey = locKey
	a.LocArgs = args
	a.Body = ""
	return b
}

// SetLocalizedAlertTitle sets title-loc-key/title-loc-args, clearing any
// literal title previously set.
func (b *Builder) SetLocalizedAlertTitle(locKey string, args []string) *Builder {
	a := b.ensureAlert()
	a.TitleLocKey = locKey
	a.TitleLocArgs = args
	a.Title = ""
	return b
}

// SetLocalizedAlertSubtitle sets subtitle-loc-key/subtitle-loc-args,
// clearing any literal subtitle previously set.
func (b *Builder) SetLocalizedAlertSubtitle(locKey string, args []string) *Builder {
	a := b.ensureAlert()
	a.SubtitleLocKey = locKey
	a.SubtitleLocArgs = args
	a.Subtitle = ""
	return b
}

// SetShowActionButton controls whether an action button is shown at all.
// Passing false marshals action-loc-key as JSON null.
func (b *Builder) SetShowActionButton(show bool) *Builder {
	a := b.ensureAlert()
	a.HideActionButton = !show
	if !show {
		a.ActionLocKey = ""
	}
	return b
}

// SetActionButtonLabel and SetLocalizedActionButtonKey both write the
// action-loc-key field; they are mutually exclusive and the most recent
// call wins.
func (b *Builder) SetActionButtonLabel(label string) *Builder {
	a := b.ensureAlert()
	a.HideActionButton = false
	a.ActionLocKey = label
	return b
}

// SetLocalizedActionButtonKey sets the loc-key used for the action button
// label, clearing any literal label previously set via SetActionButtonLabel.
func (b *Builder) SetLocalizedActionButtonKey(key string) *Builder {
	return b.SetActionButtonLabel(key)
}

// SetSound sets a plain sound file name.
func (b *Builder) SetSound(name string) *Builder {
	b.aps.Sound = name
	return b
}

// SetCriticalSound sets a critical-alert sound dictionary. volume must be in
// [0.0, 1.0] and name must not be empty.
func (b *Builder) SetCriticalSound(name string, critical bool, volume float64) (*Builder, error) {
	if name == "" {
		return b, errors.New("payload: sound name must not be empty")
	}
	if math.IsNaN(volume) || volume < 0.0 || volume > 1.0 {
		return b, fmt.Errorf("payload: volume out of range [0.0, 1.0]: %v", volume)
	}
	flag := sound.None
	if critical {
		flag = sound.Critical
	}
	b.aps.Sound = &Sound{Name: name, Critical: flag, Volume: Ratio(volume)}
	return b, nil
}

// SetBadgeNumber sets the badge count. 0 clears the badge rather than
// omitting the field.
func (b *Builder) SetBadgeNumber(n int) *Builder {
	b.aps.Badge = n
	return b
}

// SetCategoryName sets the notification category identifier.
func (b *Builder) SetCategoryName(name string) *Builder {
	b.aps.Category = name
	return b
}

// SetContentAvailable marks the notification as a background content-fetch
// trigger, emitting content-available:1 when true and omitting it otherwise.
func (b *Builder) SetContentAvailable(v bool) *Builder {
	if v {
		b.aps.ContentAvailable = 1
	} else {
		b.aps.ContentAvailable = nil
	}
	return b
}

// SetMutableContent enables a notification service extension, emitting
// mutable-content:1 when true and omitting it otherwise.
func (b *Builder) SetMutableContent(v bool) *Builder {
	if v {
		b.aps.MutableContent = 1
	} else {
		b.aps.MutableContent = nil
	}
	return b
}

// SetThreadID sets the thread-id used to group related notifications.
func (b *Builder) SetThreadID(id string) *Builder {
	b.aps.ThreadID = id
	return b
}

// SetTargetContentID sets the window identifier to bring forward.
func (b *Builder) SetTargetContentID(id string) *Builder {
	b.aps.TargetContentID = id
	return b
}

// SetSummaryArgument sets the summary-arg substitution value.
func (b *Builder) SetSummaryArgument(arg string) *Builder {
	b.aps.SummaryArg = arg
	return b
}

// SetSummaryArgumentCount sets summary-arg-count; n must be > 0.
func (b *Builder) SetSummaryArgumentCount(n int) (*Builder, error) {
	if n <= 0 {
		return b, fmt.Errorf("payload: summary argument count must be > 0, got %d", n)
	}
	b.aps.SummaryArgCount = n
	return b, nil
}

// SetURLArguments sets url-args. Passing a non-nil empty slice marshals it
// as JSON null; passing nil omits the field entirely.
func (b *Builder) SetURLArguments(args []string) *Builder {
	b.aps.URLArgs = args
	return b
}

// AddCustomProperty places a key/value pair at the payload's top level,
// alongside the aps dictionary.
func (b *Builder) AddCustomProperty(key string, value any) *Builder {
	if b.custom == nil {
		b.custom = make(map[string]any)
	}
	b.custom[key] = value
	return b
}

// PreferStringRepresentationForAlerts requests that the alert be emitted as
// a bare string instead of a dictionary when only a body is present. Ignored
// whenever any localized alert field is set.
func (b *Builder) PreferStringRepresentationForAlerts(prefer bool) *Builder {
	b.preferString = prefer
	return b
}

func (b *Builder) isLocalizedAlert() bool {
	return b.alert.LocKey != "" || b.alert.TitleLocKey != "" || b.alert.SubtitleLocKey != ""
}

func (b *Builder) finalAPS() APS {
	aps := b.aps
	if !b.hasAlert {
		return aps
	}
	switch {
	case b.isLocalizedAlert():
		aps.Alert = &b.alert
	case b.preferString && b.alert.Title == "" && b.alert.Subtitle == "" &&
		b.alert.LaunchImage == "" && b.alert.ActionLocKey == "" && !b.alert.HideActionButton:
		aps.Alert = b.alert.Body
	default:
		aps.Alert = &b.alert
	}
	return aps
}

func (b *Builder) assemble(aps APS) ([]byte, error) {
	apsBytes, err := aps.MarshalJSONFast()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(apsBytes)+len(b.custom)*24+8)
	out = append(out, '{')
	out = append(out, `"aps":`...)
	out = append(out, apsBytes...)

	if len(b.custom) > 0 {
		keys := make([]string, 0, len(b.custom))
		for k := range b.custom {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, ',')
			out = strconv.AppendQuote(out, k)
			out = append(out, ':')
			out, err = EncodeValue(out, b.custom[k])
			if err != nil {
				return nil, err
			}
		}
	}
	out = append(out, '}')
	return out, nil
}

// Build serializes the payload and, if it exceeds maxBytes, shortens the
// alert body one code point at a time from the end until it fits. It
// returns ErrPayloadTooLarge if the payload without any alert body still
// exceeds the budget.
func (b *Builder) Build(maxBytes int) (string, error) {
	raw, err := b.assemble(b.finalAPS())
	if err != nil {
		return "", err
	}
	if len(raw) <= maxBytes {
		return string(raw), nil
	}
	if !b.hasAlert || b.alert.Body == "" {
		return "", fmt.Errorf("%w: skeleton alone is %d bytes, budget is %d", ErrPayloadTooLarge, len(raw), maxBytes)
	}

	runes := []rune(b.alert.Body)
	overflow := len(raw) - maxBytes
	saved, cut := 0, len(runes)
	for cut > 0 && saved < overflow {
		cut--
		saved += sizeOfJSONEscapedRune(runes[cut])
	}

	for {
		trial := b.alert
		trial.Body = string(runes[:cut])
		aps := b.finalAPSWithAlert(trial)
		out, err := b.assemble(aps)
		if err != nil {
			return "", err
		}
		if len(out) <= maxBytes {
			return string(out), nil
		}
		if cut == 0 {
			return "", fmt.Errorf("%w: even with an empty alert body the payload is %d bytes, budget is %d", ErrPayloadTooLarge, len(out), maxBytes)
		}
		cut--
	}
}

// finalAPSWithAlert is finalAPS but for a substitute alert value, used while
// shortening so the original Builder state is never mutated.
func (b *Builder) finalAPSWithAlert(alert Alert) APS {
	aps := b.aps
	switch {
	case alert.LocKey != "" || alert.TitleLocKey != "" || alert.SubtitleLocKey != "":
		aps.Alert = &alert
	case b.preferString && alert.Title == "" && alert.Subtitle == "" &&
		alert.LaunchImage == "" && alert.ActionLocKey == "" && !alert.HideActionButton:
		aps.Alert = alert.Body
	default:
		aps.Alert = &alert
	}
	return aps
}

// BuildMDMPayload returns the fixed {"mdm": "<magic>"} payload used for MDM
// background checks; it bypasses the builder's alert/custom state entirely.
func BuildMDMPayload(magic string) (string, error) {
	out, err := json.Marshal(map[string]string{"mdm": magic})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
