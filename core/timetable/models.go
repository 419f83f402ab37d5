package timetable

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
)

// SlotPrefix prefixes the slot of every (class, section) timetable.
const SlotPrefix = "timetable:"

// Days are the school days, in order.
var Days = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

var ErrInvalidDay = errors.New("invalid day")

type Period struct {
	Time    string `json:"time" validate:"notblank"` // e.g. 9:00-9:45
	Subject string `json:"subject" validate:"notblank"`
	Teacher string `json:"teacher"`
	Room    string `json:"room"`
}

func (p *Period) Clean() {
	p.Time = core.CleanString(p.Time)
	p.Subject = core.CleanString(p.Subject)
	p.Teacher = core.CleanString(p.Teacher)
	p.Room = core.CleanString(p.Room)
}

type Timetable struct {
	Class     string              `json:"class"`
	Section   string              `json:"section"`
	Days      map[string][]Period `json:"days"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Day returns the periods of a day, never nil.
func (tt Timetable) Day(day string) []Period {
	if periods := tt.Days[day]; periods != nil {
		return periods
	}
	return make([]Period, 0)
}

// Key returns the slot name of the timetable of (class, section).
func Key(class, section string) string {
	return SlotPrefix + core.CleanString(class) + core.CleanString(section)
}

// NormalizeDay returns the canonical name of a day, matched case-insensitively.
func NormalizeDay(day string) (string, error) {
	day = core.CleanString(day)
	for _, d := range Days {
		if strings.EqualFold(d, day) {
			return d, nil
		}
	}
	return "", core.NewValidationError(ErrInvalidDay, core.FieldError{Field: "day", Error: "must be a day from Monday to Saturday"})
}

// Overlap reports two periods of the same day sharing some time.
type Overlap struct {
	First  int    `json:"first"`
	Second int    `json:"second"`
	Time   string `json:"time"`
}

// Overlaps returns the pairs of periods whose time ranges intersect.
// Periods whose time is not a "H:MM-H:MM" range are ignored.
func Overlaps(periods []Period) []Overlap {
	type span struct{ start, end int }
	spans := make([]*span, len(periods))
	for i, p := range periods {
		if start, end, ok := parseRange(p.Time); ok {
			spans[i] = &span{start, end}
		}
	}

	overlaps := make([]Overlap, 0)
	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if a == nil || b == nil {
				continue
			}
			if a.start < b.end && b.start < a.end {
				overlaps = append(overlaps, Overlap{First: i, Second: j, Time: periods[j].Time})
			}
		}
	}
	return overlaps
}

// parseRange parses "9:00-9:45" (spaces allowed) into minutes since midnight.
func parseRange(s string) (start, end int, ok bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return 0, 0, false
	}
	if start, ok = parseClock(parts[0]); !ok {
		return 0, 0, false
	}
	if end, ok = parseClock(parts[1]); !ok || end <= start {
		return 0, 0, false
	}
	return start, end, true
}

func parseClock(s string) (int, bool) {
	hm := strings.Split(strings.TrimSpace(s), ":")
	if len(hm) != 2 || len(hm[1]) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(hm[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(hm[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
