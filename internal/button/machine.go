// Package button services the push-button interrupt: it lights the feedback
// indicator while the button is held and reports how long it was held.
package button

import (
	"fmt"

	"github.com/swotap/swotap/internal/hal"
)

// Kind classifies a serviced edge.
type Kind int

const (
	KindPress Kind = iota
	KindRelease
	// KindIgnored is an edge inside the debounce window.
	KindIgnored
)

// String returns the kind name used in metrics labels.
func (k Kind) String() string {
	switch k {
	case KindPress:
		return "press"
	case KindRelease:
		return "release"
	case KindIgnored:
		return "bounce"
	default:
		return "unknown"
	}
}

// PressMessage is printed on every accepted press.
const PressMessage = "Pushed down!\n"

// Machine is the button state between interrupts. The zero value waits for
// the first press.
type Machine struct {
	// Falling is true while the button is held, so the next edge is a release.
	Falling bool
	// Debounce is the minimum number of ticks between accepted edges. Zero
	// accepts every edge. The edge timer wraps after 65536 ticks, so a hold
	// that ends within Debounce ticks of a wrap reads as a bounce: the release
	// is ignored and the button stays held until its next release edge.
	Debounce uint16

	releasedAt  uint16
	hasReleased bool
}

// Effects is what the interrupt handler must do after a transition.
type Effects struct {
	Kind Kind
	// Indicator is the feedback indicator level to drive.
	Indicator bool
	// ResetTimer restarts hold measurement at zero.
	ResetTimer bool
	// Trigger is the polarity to arm for the next edge.
	Trigger hal.EdgeTrigger
	// Held is the hold time in ticks, set on release.
	Held uint16
}

// Message returns the line to print on stdout, or "" for an ignored edge.
func (e Effects) Message() string {
	switch e.Kind {
	case KindPress:
		return PressMessage
	case KindRelease:
		return fmt.Sprintf("held: %d ms\n", e.Held)
	default:
		return ""
	}
}

// Step returns the machine after an edge observed when the edge timer read
// now. The edge timer is reset on every press, so on release now is the hold time.
func (m Machine) Step(now uint16) (Machine, Effects) {
	if !m.Falling {
		if m.Debounce > 0 && m.hasReleased && now-m.releasedAt < m.Debounce {
			return m, ignored(m)
		}
		m.Falling = true
		return m, Effects{
			Kind:       KindPress,
			Indicator:  true,
			ResetTimer: true,
			Trigger:    hal.TriggerFalling,
		}
	}

	if m.Debounce > 0 && now < m.Debounce {
		return m, ignored(m)
	}
	m.Falling = false
	m.releasedAt = now
	m.hasReleased = true
	return m, Effects{
		Kind:      KindRelease,
		Indicator: false,
		Trigger:   hal.TriggerRising,
		Held:      now,
	}
}

// ignored leaves every output as it was.
func ignored(m Machine) Effects {
	e := Effects{Kind: KindIgnored, Indicator: m.Falling, Trigger: hal.TriggerRising}
	if m.Falling {
		e.Trigger = hal.TriggerFalling
	}
	return e
}
