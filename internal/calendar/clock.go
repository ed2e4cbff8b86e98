package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const (
	dateLayout    = "2006-01-02"
	minutesPerDay = 24 * 60
)

var (
	ErrInvalidDate  = errors.New("invalid date format, expected YYYY-MM-DD")
	ErrInvalidClock = errors.New("invalid time format, expected HH:MM")
)

// ParseDate разбирает дату YYYY-MM-DD в полночь UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// DateOf отбрасывает время суток, сохраняя календарную дату.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseClock разбирает время суток HH:MM (секунды допускаются и отбрасываются).
func ParseClock(s string) (datatypes.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{"15:04", "15:04:05"}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return datatypes.NewTime(t.Hour(), t.Minute(), 0, 0), nil
		}
	}
	return 0, ErrInvalidClock
}

// MustClock — для констант в тестах и сидерах.
func MustClock(s string) datatypes.Time {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// FormatClock возвращает HH:MM.
func FormatClock(c datatypes.Time) string {
	minutes := int(time.Duration(c) / time.Minute)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ClockPtr — удобство для необязательных границ исключений.
func ClockPtr(c datatypes.Time) *datatypes.Time {
	return &c
}

// At собирает дату и время суток в момент времени в зоне loc.
func At(date time.Time, c datatypes.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(time.Duration(c))
}

// ClockRange — полуоткрытый интервал времени суток [Start, End).
type ClockRange struct {
	Start datatypes.Time
	End   datatypes.Time
}

func (r ClockRange) Valid() bool {
	return r.Start < r.End && time.Duration(r.End) <= minutesPerDay*time.Minute
}

func (r ClockRange) Contains(c datatypes.Time) bool {
	return r.Start <= c && c < r.End
}

// Overlaps: inclusive = true — касание концами тоже считается пересечением.
func (r ClockRange) Overlaps(o ClockRange, inclusive bool) bool {
	if inclusive {
		return r.Start <= o.End && o.Start <= r.End
	}
	return r.Start < o.End && o.Start < r.End
}
