package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Frequency is the recurrence rule of a schedule policy.
type Frequency int

const (
	FrequencyInstant Frequency = iota
	FrequencyHourly
	FrequencyDaily
	FrequencyCustom
)

var frequencyNames = map[Frequency]string{
	FrequencyInstant: "instant",
	FrequencyHourly:  "hourly",
	FrequencyDaily:   "daily",
	FrequencyCustom:  "custom",
}

func (f Frequency) String() string {
	if name, ok := frequencyNames[f]; ok {
		return name
	}
	return "frequency(" + strconv.Itoa(int(f)) + ")"
}

// ParseFrequency maps a stored or configured name onto a Frequency.
func ParseFrequency(raw string) (Frequency, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for f, n := range frequencyNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown frequency %q", ErrPolicyMisconfigured, raw)
}

func (f Frequency) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Frequency) UnmarshalText(b []byte) error {
	parsed, err := ParseFrequency(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var reClock = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	m := reClock.FindStringSubmatch(raw)
	if len(m) != 3 {
		return TimeOfDay{}, fmt.Errorf("%w: invalid time of day %q, want HH:MM", ErrPolicyMisconfigured, raw)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	tod := TimeOfDay{Hour: hour, Minute: minute}
	if !tod.valid() {
		return TimeOfDay{}, fmt.Errorf("%w: invalid time of day %q: hour 0-23, minute 0-59", ErrPolicyMisconfigured, raw)
	}
	return tod, nil
}

func (t TimeOfDay) valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// TimeOfDayFromMinutes is the inverse of Minutes.
func TimeOfDayFromMinutes(m int) TimeOfDay {
	return TimeOfDay{Hour: m / 60, Minute: m % 60}
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ForbiddenWindow is a daily range [Start, End) during which nothing is published.
// Start after End means the window spans midnight.
type ForbiddenWindow struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Wraps reports whether the window crosses 00:00.
func (w ForbiddenWindow) Wraps() bool {
	return w.Start.Minutes() > w.End.Minutes()
}

// Contains reports whether t's time of day, in t's location, lies inside the window.
func (w ForbiddenWindow) Contains(t time.Time) bool {
	sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
	start := w.Start.Minutes() * 60
	end := w.End.Minutes() * 60
	if w.Wraps() {
		return sec >= start || sec < end
	}
	return sec >= start && sec < end
}

// endFor returns the instant the window containing t closes.
func (w ForbiddenWindow) endFor(t time.Time) time.Time {
	y, m, d := t.Date()
	sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
	if w.Wraps() && sec >= w.Start.Minutes()*60 {
		d++
	}
	return time.Date(y, m, d, w.End.Hour, w.End.Minute, 0, 0, t.Location())
}

// Policy is a named recurring publication rule.
type Policy struct {
	Name                  string           `json:"name"`
	Active                bool             `json:"active"`
	Frequency             Frequency        `json:"frequency"`
	CustomIntervalMinutes int              `json:"custom_interval_minutes,omitempty"`
	Window                *ForbiddenWindow `json:"forbidden_window,omitempty"`
	MaxPerDay             int              `json:"max_per_day,omitempty"` // 0 = uncapped
	Priority              int              `json:"priority"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// Validate rejects configurations the engine cannot compute with.
func (p Policy) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrPolicyMisconfigured)
	}
	switch p.Frequency {
	case FrequencyInstant, FrequencyHourly, FrequencyDaily:
	case FrequencyCustom:
		if p.CustomIntervalMinutes <= 0 {
			return fmt.Errorf("%w: policy %s: custom frequency requires a positive interval", ErrPolicyMisconfigured, p.Name)
		}
	default:
		return fmt.Errorf("%w: policy %s: unknown frequency %d", ErrPolicyMisconfigured, p.Name, int(p.Frequency))
	}
	if p.Window != nil {
		if !p.Window.Start.valid() || !p.Window.End.valid() {
			return fmt.Errorf("%w: policy %s: forbidden window out of range", ErrPolicyMisconfigured, p.Name)
		}
		if p.Window.Start == p.Window.End {
			return fmt.Errorf("%w: policy %s: forbidden window start equals end", ErrPolicyMisconfigured, p.Name)
		}
	}
	if p.MaxPerDay < 0 {
		return fmt.Errorf("%w: policy %s: max per day must not be negative", ErrPolicyMisconfigured, p.Name)
	}
	return nil
}

// Interval is the spacing between publishes implied by the frequency.
func (p Policy) Interval() time.Duration {
	switch p.Frequency {
	case FrequencyInstant:
		return 0
	case FrequencyHourly:
		return time.Hour
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyCustom:
		return time.Duration(p.CustomIntervalMinutes) * time.Minute
	}
	return 0
}

// HasDailyCap reports whether MaxPerDay limits publishing.
func (p Policy) HasDailyCap() bool {
	return p.MaxPerDay > 0
}

// NextPublishTime returns the first eligible publish instant after from.
// Instant policies return from unchanged and ignore the forbidden window.
// A candidate landing in the forbidden window moves to the window's end; at most
// two corrections are applied, so the result is never more than a day past the candidate.
func (p Policy) NextPublishTime(from time.Time) time.Time {
	if p.Frequency == FrequencyInstant {
		return from
	}
	candidate := from.Add(p.Interval())
	if p.Window == nil {
		return candidate
	}
	for i := 0; i < 2 && p.Window.Contains(candidate); i++ {
		candidate = p.Window.endFor(candidate)
	}
	return candidate
}

// IsTimeAllowed reports whether t lies outside the forbidden window.
func (p Policy) IsTimeAllowed(t time.Time) bool {
	if p.Window == nil {
		return true
	}
	return !p.Window.Contains(t)
}

// SelectDefault picks the highest-priority active policy. Ties go to the
// lexically smallest name so the choice is stable.
func SelectDefault(policies []Policy) (Policy, bool) {
	var (
		best  Policy
		found bool
	)
	for _, p := range policies {
		if !p.Active {
			continue
		}
		if !found || p.Priority > best.Priority || (p.Priority == best.Priority && p.Name < best.Name) {
			best = p
			found = true
		}
	}
	return best, found
}
