package clock

import (
	"fmt"

	"github.com/tbelingar/operator-night/server/internal/events"
)

// Clock advances simulated night time. The minute counter is
// unbounded; display wraps modulo 1440 so a 22:00 to 06:00 night is a
// start of 1320 running past 1440.
type Clock struct {
	currentMinutes   int
	startMinutes     int
	endMinutes       int
	secondsPerMinute float64
	accumulated      float64
	running          bool
	dispatchMinute   *int
	bus              *events.Bus
}

// New creates a stopped clock
func New(bus *events.Bus) *Clock {
	return &Clock{bus: bus}
}

func (c *Clock) publish(e events.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

// Initialize resets all clock state for a new night. An end time
// earlier than the start is treated as crossing midnight.
func (c *Clock) Initialize(startMinutes, endMinutes int, realSecondsPerGameMinute float64) {
	if endMinutes < startMinutes {
		endMinutes += 1440
	}
	c.currentMinutes = startMinutes
	c.startMinutes = startMinutes
	c.endMinutes = endMinutes
	c.secondsPerMinute = realSecondsPerGameMinute
	c.accumulated = 0
	c.running = true
	c.dispatchMinute = nil
}

// Tick accumulates real seconds and advances whole in-game minutes.
// Returns the number of minutes advanced.
func (c *Clock) Tick(deltaSeconds float64) int {
	if !c.running || c.secondsPerMinute <= 0 {
		return 0
	}

	c.accumulated += deltaSeconds
	advanced := 0
	for c.accumulated >= c.secondsPerMinute && c.running {
		c.accumulated -= c.secondsPerMinute
		c.advanceOne()
		advanced++
	}
	return advanced
}

func (c *Clock) advanceOne() {
	old := c.currentMinutes
	c.currentMinutes++

	c.publish(events.Event{
		Type: events.TypeTimeChanged,
		Payload: events.TimeChanged{
			OldMinute: old,
			NewMinute: c.currentMinutes,
			Display:   FormatMinutes(c.currentMinutes),
		},
	})

	c.checkTimeUp()
}

// checkTimeUp stops the clock at the end minute. Stopping guarantees
// the time-up event fires once.
func (c *Clock) checkTimeUp() {
	if c.running && c.currentMinutes >= c.endMinutes {
		c.running = false
		c.publish(events.Event{
			Type:    events.TypeTimeUp,
			Payload: events.TimeUp{Minute: c.currentMinutes},
		})
	}
}

// AdvanceTime is an administrative override adding whole minutes
func (c *Clock) AdvanceTime(minutes int) {
	if minutes <= 0 {
		return
	}
	for i := 0; i < minutes && c.running; i++ {
		c.advanceOne()
	}
}

// SetTime is an administrative override jumping to an absolute minute
func (c *Clock) SetTime(minutes int) {
	old := c.currentMinutes
	c.currentMinutes = minutes

	c.publish(events.Event{
		Type: events.TypeTimeChanged,
		Payload: events.TimeChanged{
			OldMinute: old,
			NewMinute: c.currentMinutes,
			Display:   FormatMinutes(c.currentMinutes),
		},
	})

	c.checkTimeUp()
}

// RecordDispatchAt records the dispatch minute. Set-once: the first
// recorded dispatch always wins.
func (c *Clock) RecordDispatchAt(minute int) bool {
	if c.dispatchMinute != nil {
		return false
	}
	m := minute
	c.dispatchMinute = &m

	c.publish(events.Event{
		Type:    events.TypeDispatchRecorded,
		Payload: events.DispatchRecorded{Minute: minute},
	})
	return true
}

// DispatchMinute returns the recorded dispatch minute, nil when none
func (c *Clock) DispatchMinute() *int {
	if c.dispatchMinute == nil {
		return nil
	}
	m := *c.dispatchMinute
	return &m
}

// CurrentMinutes returns the raw minute counter
func (c *Clock) CurrentMinutes() int {
	return c.currentMinutes
}

// StartMinutes returns the configured start minute
func (c *Clock) StartMinutes() int {
	return c.startMinutes
}

// EndMinutes returns the adjusted end minute
func (c *Clock) EndMinutes() int {
	return c.endMinutes
}

// IsRunning reports whether the clock is still advancing
func (c *Clock) IsRunning() bool {
	return c.running
}

// Pause stops the clock without firing time-up
func (c *Clock) Pause() {
	c.running = false
}

// Resume restarts a paused clock unless the night already ended
func (c *Clock) Resume() {
	if c.currentMinutes < c.endMinutes {
		c.running = true
	}
}

// Display returns the current time formatted for the UI
func (c *Clock) Display() string {
	return FormatMinutes(c.currentMinutes)
}

// FormatMinutes renders a raw minute counter as wall-clock HH:MM
func FormatMinutes(minutes int) string {
	wrapped := ((minutes % 1440) + 1440) % 1440
	return fmt.Sprintf("%02d:%02d", wrapped/60, wrapped%60)
}
