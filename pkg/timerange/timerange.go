// Package timerange maps coarse look-back tokens such as "30d" onto absolute
// lower bounds for behavior log queries.
package timerange

import (
	"strings"
	"time"
)

// Recognised window keys.
const (
	Key7Days    = "7d"
	Key30Days   = "30d"
	Key90Days   = "90d"
	Key12Months = "12m"
	Key365Days  = "365d"
	KeyAll      = "all"

	DefaultKey = Key30Days
)

// Window is a resolved look-back range. From is nil when the window has no lower bound.
type Window struct {
	Key   string     `json:"key"`
	From  *time.Time `json:"from"`
	Label string     `json:"label"`
}

// FromISO renders the lower bound as an RFC 3339 instant in UTC, or "" for an unbounded window.
func (w Window) FromISO() string {
	if w.From == nil {
		return ""
	}
	return w.From.UTC().Format(time.RFC3339)
}

type spec struct {
	days   int
	months int
	label  string
}

var standard = map[string]spec{
	Key7Days:    {days: 7, label: "Last 7 days"},
	Key30Days:   {days: 30, label: "Last 30 days"},
	Key90Days:   {days: 90, label: "Last 90 days"},
	Key12Months: {months: 12, label: "Last 12 months"},
}

var extended = map[string]spec{
	Key365Days: {days: 365, label: "Last 365 days"},
	KeyAll:     {label: "All time"},
}

// Resolve maps token onto a window relative to now using the standard token set.
// Unknown tokens resolve to the 30 day window.
func Resolve(token string, now time.Time) Window {
	return ResolveWith(token, DefaultKey, false, now)
}

// ResolveExtended also accepts "365d" and "all".
func ResolveExtended(token string, now time.Time) Window {
	return ResolveWith(token, DefaultKey, true, now)
}

// ResolveWith resolves token against the standard set, plus the extended set when
// allowExtended is true. Unrecognised input falls back to fallback, and to the
// 30 day window if fallback itself is not recognised.
func ResolveWith(token, fallback string, allowExtended bool, now time.Time) Window {
	key := strings.ToLower(strings.TrimSpace(token))
	s, ok := lookup(key, allowExtended)
	if !ok {
		key = strings.ToLower(strings.TrimSpace(fallback))
		s, ok = lookup(key, allowExtended)
	}
	if !ok {
		key = DefaultKey
		s = standard[DefaultKey]
	}
	return build(key, s, now)
}

// Valid reports whether token is part of the standard set.
func Valid(token string) bool {
	_, ok := standard[strings.ToLower(strings.TrimSpace(token))]
	return ok
}

func lookup(key string, allowExtended bool) (spec, bool) {
	if s, ok := standard[key]; ok {
		return s, true
	}
	if allowExtended {
		if s, ok := extended[key]; ok {
			return s, true
		}
	}
	return spec{}, false
}

func build(key string, s spec, now time.Time) Window {
	w := Window{Key: key, Label: s.label}
	if s.days == 0 && s.months == 0 {
		return w
	}
	from := now.UTC().AddDate(0, -s.months, -s.days)
	w.From = &from
	return w
}
