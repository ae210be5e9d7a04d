// Package dates implements the date value used by tasks: either a concrete
// point in time or one of a few symbolic "fuzzy" markers such as someday.
package dates

import (
	"cmp"
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind identifies whether a Date is concrete or which fuzzy marker it is.
type Kind int

const (
	// KindNoDate is the zero Kind: no date at all.
	KindNoDate Kind = iota
	// KindConcrete is a real calendar date or timestamp.
	KindConcrete
	KindNow
	KindToday
	KindSoon
	KindSomeday
)

// soonDays is how far ahead "soon" resolves when ordering dates.
const soonDays = 15

const dayLayout = "2006-01-02"

// farFuture is the instant used for NoDate; Someday sorts one day before it.
var farFuture = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// now is the clock used to resolve fuzzy markers. Tests replace it.
var now = time.Now

var fuzzyNames = map[Kind]string{
	KindNoDate:  "",
	KindNow:     "now",
	KindToday:   "today",
	KindSoon:    "soon",
	KindSomeday: "someday",
}

// Date is a task date. The zero value is NoDate.
type Date struct {
	kind     Kind
	t        time.Time
	dateOnly bool
}

// New returns a concrete date carrying the full timestamp.
func New(t time.Time) Date {
	return Date{kind: KindConcrete, t: t}
}

// OnDay returns a concrete date-only value (midnight, local time) for t's day.
func OnDay(t time.Time) Date {
	return Date{kind: KindConcrete, t: midnight(t), dateOnly: true}
}

// NoDate returns the empty date.
func NoDate() Date { return Date{} }

// Today returns today's date as a concrete, date-only value.
func Today() Date { return OnDay(now()) }

// NowTime returns the current instant as a concrete date.
func NowTime() Date { return New(now()) }

// Fuzzy returns the fuzzy marker of the given kind. Passing KindConcrete
// yields NoDate.
func Fuzzy(k Kind) Date {
	if k == KindConcrete {
		return Date{}
	}
	return Date{kind: k}
}

// Kind reports the kind of the date.
func (d Date) Kind() Kind { return d.kind }

// IsFuzzy reports whether d is a symbolic marker. NoDate counts as fuzzy.
func (d Date) IsFuzzy() bool { return d.kind != KindConcrete }

// IsSet reports whether d is anything other than NoDate.
func (d Date) IsSet() bool { return d.kind != KindNoDate }

// Time returns the instant the date resolves to. Fuzzy markers resolve
// against the current day.
func (d Date) Time() time.Time { return d.instant() }

func midnight(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.Local)
}

func (d Date) instant() time.Time {
	switch d.kind {
	case KindConcrete:
		return d.t
	case KindNow, KindToday:
		return midnight(now())
	case KindSoon:
		return midnight(now()).AddDate(0, 0, soonDays)
	case KindSomeday:
		return farFuture.AddDate(0, 0, -1)
	default:
		return farFuture
	}
}

// rank breaks ties between values resolving to the same instant.
func (d Date) rank() int {
	switch d.kind {
	case KindConcrete:
		return 0
	case KindNow:
		return 1
	case KindToday:
		return 2
	case KindSoon:
		return 3
	case KindSomeday:
		return 4
	default:
		return 5
	}
}

// Compare returns -1, 0 or +1 ordering a before, equal to, or after b.
func Compare(a, b Date) int {
	if c := a.instant().Compare(b.instant()); c != 0 {
		return c
	}
	return cmp.Compare(a.rank(), b.rank())
}

// Before reports whether d sorts before o.
func (d Date) Before(o Date) bool { return Compare(d, o) < 0 }

// After reports whether d sorts after o.
func (d Date) After(o Date) bool { return Compare(d, o) > 0 }

// Equal reports whether d and o are the same date.
func (d Date) Equal(o Date) bool { return Compare(d, o) == 0 }

// DaysLeft returns the number of whole days between today and d.
// NoDate has no days left.
func (d Date) DaysLeft() int {
	if !d.IsSet() {
		return 0
	}
	from := midnight(now())
	to := midnight(d.instant())
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// String returns the canonical text encoding of the date.
func (d Date) String() string {
	if d.kind != KindConcrete {
		return fuzzyNames[d.kind]
	}
	if d.dateOnly {
		return d.t.Format(dayLayout)
	}
	return d.t.Format(time.RFC3339Nano)
}

// Display returns a short human form: the marker name or the day.
func (d Date) Display() string {
	if d.kind != KindConcrete {
		return fuzzyNames[d.kind]
	}
	return d.t.Format(dayLayout)
}

// layouts accepted by Parse after the fuzzy names and the plain day.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Parse decodes the text encoding produced by String. It also accepts
// naive ISO timestamps as written by older data files.
func Parse(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}

	lower := strings.ToLower(s)
	for k, name := range fuzzyNames {
		if name != "" && name == lower {
			return Date{kind: k}, nil
		}
	}
	if lower == "nodate" {
		return Date{}, nil
	}

	if t, err := time.ParseInLocation(dayLayout, s, time.Local); err == nil {
		return Date{kind: KindConcrete, t: t, dateOnly: true}, nil
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return New(t), nil
		}
	}
	return Date{}, fmt.Errorf("unrecognised date %q", s)
}
