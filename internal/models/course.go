package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScheduleBlock is one weekly meeting of a course, stored in minutes from
// midnight. The interval is half-open: [StartMinute, EndMinute).
type ScheduleBlock struct {
	DayOfWeek   time.Weekday
	StartMinute int
	EndMinute   int
}

type scheduleBlockJSON struct {
	DayOfWeek int    `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// MarshalJSON renders times as "HH:MM".
func (b ScheduleBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(scheduleBlockJSON{
		DayOfWeek: int(b.DayOfWeek),
		StartTime: FormatClock(b.StartMinute),
		EndTime:   FormatClock(b.EndMinute),
	})
}

// UnmarshalJSON parses "HH:MM" times and validates the block.
func (b *ScheduleBlock) UnmarshalJSON(data []byte) error {
	var raw scheduleBlockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := ParseClock(raw.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseClock(raw.EndTime)
	if err != nil {
		return err
	}
	block := ScheduleBlock{DayOfWeek: time.Weekday(raw.DayOfWeek), StartMinute: start, EndMinute: end}
	if err := block.Validate(); err != nil {
		return err
	}
	*b = block
	return nil
}

// Validate checks the day range and that the block has positive length.
func (b ScheduleBlock) Validate() error {
	if b.DayOfWeek < time.Sunday || b.DayOfWeek > time.Saturday {
		return fmt.Errorf("day of week %d out of range", b.DayOfWeek)
	}
	if b.StartMinute < 0 || b.EndMinute > 24*60 || b.StartMinute >= b.EndMinute {
		return fmt.Errorf("invalid time range %s-%s", FormatClock(b.StartMinute), FormatClock(b.EndMinute))
	}
	return nil
}

// WeeklySchedule is the set of weekly meetings of a course. It is persisted
// as JSONB.
type WeeklySchedule []ScheduleBlock

// Value implements driver.Valuer.
func (s WeeklySchedule) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]ScheduleBlock(s))
}

// Scan implements sql.Scanner.
func (s *WeeklySchedule) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = WeeklySchedule{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported schedule type %T", src)
	}
	var blocks []ScheduleBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("decode schedule: %w", err)
	}
	*s = blocks
	return nil
}

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 24 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 || (hours == 24 && minutes != 0) {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hours*60 + minutes, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Course is a catalog entry students can enroll in and swap between.
type Course struct {
	ID          string         `db:"id" json:"id"`
	Code        string         `db:"code" json:"code"`
	Name        string         `db:"name" json:"name"`
	Teacher     string         `db:"teacher" json:"teacher"`
	Description string         `db:"description" json:"description"`
	Location    string         `db:"location" json:"location"`
	Credits     int            `db:"credits" json:"credits"`
	Department  string         `db:"department" json:"department"`
	Semester    string         `db:"semester" json:"semester"`
	Schedule    WeeklySchedule `db:"schedule" json:"schedule"`
	Capacity    int            `db:"capacity" json:"capacity"`
	Enrolled    int            `db:"enrolled" json:"enrolled"`
	IsSwapable  bool           `db:"is_swapable" json:"isSwapable"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// HasCapacity reports whether another student can be enrolled.
func (c *Course) HasCapacity() bool {
	return c.Enrolled < c.Capacity
}

// RemainingSeats returns the number of free seats, never negative.
func (c *Course) RemainingSeats() int {
	if c.Enrolled >= c.Capacity {
		return 0
	}
	return c.Capacity - c.Enrolled
}

// CourseFilter constrains catalog listing queries.
type CourseFilter struct {
	AvailableOnly bool
	Department    string
	Semester      string
	Page          int
	PageSize      int
}
