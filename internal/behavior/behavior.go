// Package behavior holds the store policy snapshot that drives call
// handling: greetings, tone, escalation keywords and business hours.
// A snapshot is immutable; refresh replaces the whole value.
package behavior

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Snapshot is one immutable view of the store's AI behavior settings.
type Snapshot struct {
	Greetings        Greetings     `json:"greetings"`
	Tone             string        `json:"tone"`
	TransferKeywords []TransferKey `json:"auto_transfer_keywords"`
	BusinessHours    []DayHours    `json:"business_hours"`
}

// Greetings are the configured caller-facing messages.
type Greetings struct {
	OpeningHoursGreeting string `json:"opening_hours_greeting"`
	ClosedHoursMessage   string `json:"closed_hours_message"`
}

// TransferKey is one keyword that escalates the call to a human.
type TransferKey struct {
	Keyword string `json:"keyword"`
}

// DayHours is the configured window for one weekday. Day uses Monday=0
// numbering, matching the platform API.
type DayHours struct {
	Day       int    `json:"day"`
	IsOpen    bool   `json:"is_open"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

// Greeting renders the opening greeting with the store name substituted.
func (s *Snapshot) Greeting(storeName string) string {
	return strings.ReplaceAll(s.Greetings.OpeningHoursGreeting, "{store_name}", storeName)
}

// ClosedMessage returns the closed-hours message, with a fallback so the
// caller never hears silence on a misconfigured store.
func (s *Snapshot) ClosedMessage() string {
	if s.Greetings.ClosedHoursMessage == "" {
		return "We are currently closed. Please call back during business hours."
	}
	return s.Greetings.ClosedHoursMessage
}

// EscalationKeywords returns the lower-cased transfer keywords in
// configuration order.
func (s *Snapshot) EscalationKeywords() []string {
	keywords := make([]string, 0, len(s.TransferKeywords))
	for _, k := range s.TransferKeywords {
		kw := strings.ToLower(strings.TrimSpace(k.Keyword))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// IsOpen evaluates the business-hours gate at the given instant. A weekday
// with no configured entry does not constrain the store and counts as open;
// a day marked closed, or a time outside [open, close], closes the gate.
func (s *Snapshot) IsOpen(now time.Time) bool {
	// Monday=0 numbering, as the platform stores it.
	weekday := (int(now.Weekday()) + 6) % 7

	for _, day := range s.BusinessHours {
		if day.Day != weekday {
			continue
		}
		if !day.IsOpen {
			return false
		}

		open, err := parseClock(day.OpenTime)
		if err != nil {
			log.Printf("[behavior] bad open_time for day %d: %v", day.Day, err)
			return true
		}
		close, err := parseClock(day.CloseTime)
		if err != nil {
			log.Printf("[behavior] bad close_time for day %d: %v", day.Day, err)
			return true
		}

		current := now.Hour()*3600 + now.Minute()*60 + now.Second()
		return current >= open && current <= close
	}

	return true
}

// FormatHours renders the weekly schedule as a prompt-friendly block.
func (s *Snapshot) FormatHours() string {
	dayNames := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

	lines := make([]string, 0, len(s.BusinessHours))
	for _, day := range s.BusinessHours {
		name := fmt.Sprintf("Day %d", day.Day)
		if day.Day >= 0 && day.Day < len(dayNames) {
			name = dayNames[day.Day]
		}

		if !day.IsOpen {
			lines = append(lines, name+": Closed")
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s - %s", name, clipClock(day.OpenTime), clipClock(day.CloseTime)))
	}
	return strings.Join(lines, "\n")
}

// parseClock converts an "HH:MM:SS" platform time into seconds of day.
func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04:05", value)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", value, err)
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
}

// clipClock trims "HH:MM:SS" down to "HH:MM" for display.
func clipClock(value string) string {
	if len(value) > 5 {
		return value[:5]
	}
	return value
}
