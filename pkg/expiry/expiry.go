// Package expiry extracts best-before dates from free-form recognized text
// and normalizes them to a canonical UTC timestamp. It is pure computation:
// no I/O, no shared state. Both the scan pipeline and manual date entry go
// through ValidateAndNormalize so a typed date and a scanned date are judged
// identically.
package expiry

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

// Kind distinguishes a day-month-year date from a month-year-only date.
type Kind int

const (
	// KindFull is a complete day-month-year date.
	KindFull Kind = iota
	// KindPartial is a month-year date; the day resolves to the last
	// calendar day of that month.
	KindPartial
)

func (k Kind) String() string {
	switch k {
	case KindFull:
		return "Full"
	case KindPartial:
		return "Partial"
	default:
		return "Unknown"
	}
}

// Candidate is a date-like substring found in recognized text, not yet validated.
type Candidate struct {
	Text string
	Kind Kind
}

// Normalized is a validated expiry date: UTC midnight of the calendar day,
// in milliseconds since the epoch.
type Normalized struct {
	EpochMillisUTC int64
	Kind           Kind
}

// Time returns the normalized date as a UTC time.Time.
func (n Normalized) Time() time.Time {
	return time.UnixMilli(n.EpochMillisUTC).UTC()
}

// Validation failures. Both are recoverable: the candidate is discarded and
// scanning continues.
var (
	ErrInvalidCalendarDate = xerrors.New("invalid calendar date")
	ErrOutOfRange          = xerrors.New("date outside the accepted window")
)

// acceptYears is the upper bound of the accepted window: dates further than
// this many years past today are rejected.
const acceptYears = 10

var (
	// Day, month and year separated by the same separator. RE2 has no
	// backreferences, so both separators are captured and compared in code.
	fullPattern = regexp.MustCompile(`\b(\d{1,2})([./-])(\d{1,2})([./-])(\d{4}|\d{2})\b`)
	// Month and year only, e.g. "05-2027" or "05/27". Anchored: the scan
	// drives the start position itself so candidate starts may overlap.
	partialPattern = regexp.MustCompile(`^(\d{1,2})([./-])(\d{4}|\d{2})\b`)
)

// FindCandidates scans text for date-like substrings. Full day-month-year
// matches are returned first, followed by month-year matches that do not
// overlap any full match. Matches whose day or month component cannot be a
// calendar day or month are not candidates at all.
func FindCandidates(text string) []Candidate {
	var out []Candidate

	type span struct{ lo, hi int }
	var fullSpans []span

	for _, m := range fullPattern.FindAllStringSubmatchIndex(text, -1) {
		match := text[m[0]:m[1]]
		day := text[m[2]:m[3]]
		sep1 := text[m[4]:m[5]]
		month := text[m[6]:m[7]]
		sep2 := text[m[8]:m[9]]
		if sep1 != sep2 {
			continue
		}
		d, _ := strconv.Atoi(day)
		mo, _ := strconv.Atoi(month)
		if d < 1 || d > 31 || mo < 1 || mo > 12 {
			continue
		}
		fullSpans = append(fullSpans, span{m[0], m[1]})
		out = append(out, Candidate{Text: match, Kind: KindFull})
	}

	// The partial scan tries every word-boundary digit as a start instead
	// of consuming the text left to right: a rejected prefix like "12.05"
	// in "12.05-2027" must not swallow the digits of the month-year
	// behind it.
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' || (i > 0 && isWordByte(text[i-1])) {
			continue
		}
		m := partialPattern.FindStringSubmatchIndex(text[i:])
		if m == nil {
			continue
		}
		lo, hi := i+m[0], i+m[1]
		overlaps := false
		for _, s := range fullSpans {
			if lo < s.hi && hi > s.lo {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		mo, _ := strconv.Atoi(text[i+m[2] : i+m[3]])
		if mo < 1 || mo > 12 {
			continue
		}
		out = append(out, Candidate{Text: text[lo:hi], Kind: KindPartial})
	}

	return out
}

// isWordByte mirrors RE2's ASCII \b word-character set.
func isWordByte(b byte) bool {
	return b == '_' ||
		('0' <= b && b <= '9') ||
		('a' <= b && b <= 'z') ||
		('A' <= b && b <= 'Z')
}

// ValidateAndNormalize turns a candidate into a canonical expiry date.
// Two-digit years are expanded by adding 2000. Partial candidates resolve to
// the last day of their month. The date must fall within
// [today, today+10 years], both bounds inclusive, where today is truncated to
// a UTC calendar day.
func ValidateAndNormalize(c Candidate, today time.Time) (Normalized, error) {
	parts := strings.FieldsFunc(c.Text, func(r rune) bool {
		return r == '.' || r == '/' || r == '-'
	})

	want := 3
	if c.Kind == KindPartial {
		want = 2
	}
	if len(parts) != want {
		return Normalized{}, xerrors.Errorf("%q: %w", c.Text, ErrInvalidCalendarDate)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Normalized{}, xerrors.Errorf("%q: %w", c.Text, ErrInvalidCalendarDate)
		}
		nums[i] = n
	}

	var day, month, year int
	if c.Kind == KindFull {
		day, month, year = nums[0], nums[1], nums[2]
	} else {
		month, year = nums[0], nums[1]
	}
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 {
		return Normalized{}, xerrors.Errorf("%q: %w", c.Text, ErrInvalidCalendarDate)
	}

	var date time.Time
	if c.Kind == KindFull {
		if day < 1 {
			return Normalized{}, xerrors.Errorf("%q: %w", c.Text, ErrInvalidCalendarDate)
		}
		date = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		// time.Date normalizes impossible dates (Apr 31 becomes May 1);
		// a shifted result means the day did not exist in that month.
		if date.Year() != year || date.Month() != time.Month(month) || date.Day() != day {
			return Normalized{}, xerrors.Errorf("%q: %w", c.Text, ErrInvalidCalendarDate)
		}
	} else {
		// Day zero of the following month is the last day of this one.
		date = time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
	}

	lower := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	upper := lower.AddDate(acceptYears, 0, 0)
	if date.Before(lower) || date.After(upper) {
		return Normalized{}, xerrors.Errorf("%q: %w", c.Text, ErrOutOfRange)
	}

	return Normalized{EpochMillisUTC: date.UnixMilli(), Kind: c.Kind}, nil
}

// Scan is the convenience used per OCR result: it returns the first full
// candidate that validates, and otherwise the first partial candidate that
// validates. Partial dates never shadow a valid full date in the same text.
func Scan(text string, today time.Time) (full *Normalized, partial *Normalized) {
	for _, c := range FindCandidates(text) {
		n, err := ValidateAndNormalize(c, today)
		if err != nil {
			continue
		}
		switch c.Kind {
		case KindFull:
			if full == nil {
				f := n
				full = &f
			}
		case KindPartial:
			if partial == nil {
				p := n
				partial = &p
			}
		}
		if full != nil {
			break
		}
	}
	if full != nil {
		return full, nil
	}
	return nil, partial
}
