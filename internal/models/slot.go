package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Days lists the week in schedule-grid order. Week starts on Monday.
var Days = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// TimeSlots enumerates the bookable lesson start times in canonical
// 12-hour display form. This is also the storage form; comparisons go
// through ParseClock first.
var TimeSlots = []string{
	"8:30 AM", "9:30 AM", "10:30 AM", "11:30 AM", "12:30 PM",
	"1:30 PM", "2:30 PM", "3:30 PM", "4:30 PM", "5:30 PM", "6:30 PM", "7:30 PM",
}

// BlockKind distinguishes the two kinds of availability block a tutor
// can place on a slot.
type BlockKind string

const (
	// BlockWeek blocks a slot for a single calendar week.
	BlockWeek BlockKind = "unavailable"
	// BlockRecurring blocks a slot every week until cleared.
	BlockRecurring BlockKind = "recurring"
)

// SlotState is the effective state of a schedule cell as shown to the
// tutor: available, blocked this week, or blocked every week.
type SlotState string

const (
	SlotAvailable SlotState = "available"
	SlotWeek      SlotState = SlotState(BlockWeek)
	SlotRecurring SlotState = SlotState(BlockRecurring)
)

// NormalizeDay maps case-insensitive day names onto the canonical form.
func NormalizeDay(day string) (string, error) {
	for _, d := range Days {
		if strings.EqualFold(d, day) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown day of week %q", day)
}

// ParseClock converts a 12-hour "h:mm AM/PM" string into minutes since
// midnight.
func ParseClock(clock string) (int, error) {
	fields := strings.Fields(strings.TrimSpace(clock))
	if len(fields) != 2 {
		return 0, fmt.Errorf("malformed time %q", clock)
	}
	meridian := strings.ToUpper(fields[1])
	if meridian != "AM" && meridian != "PM" {
		return 0, fmt.Errorf("malformed meridian in %q", clock)
	}
	hm := strings.SplitN(fields[0], ":", 2)
	if len(hm) != 2 {
		return 0, fmt.Errorf("malformed time %q", clock)
	}
	hour, err := strconv.Atoi(hm[0])
	if err != nil || hour < 1 || hour > 12 {
		return 0, fmt.Errorf("bad hour in %q", clock)
	}
	minute, err := strconv.Atoi(hm[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("bad minute in %q", clock)
	}
	if hour == 12 {
		hour = 0
	}
	if meridian == "PM" {
		hour += 12
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight back into the canonical
// "h:mm AM/PM" form.
func FormatClock(minutes int) string {
	minutes = ((minutes % 1440) + 1440) % 1440
	hour := minutes / 60
	minute := minutes % 60
	meridian := "AM"
	if hour >= 12 {
		meridian = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:%02d %s", display, minute, meridian)
}

// RecurringKey builds the every-week slot key.
func RecurringKey(day, timeSlot string) string {
	return day + "-" + timeSlot
}

// WeekKey builds the single-week slot key from the epoch-millisecond
// timestamp of the week's Monday.
func WeekKey(day, timeSlot string, weekStartMs int64) string {
	return fmt.Sprintf("%s-%s-%d", day, timeSlot, weekStartMs)
}

// WeekStart truncates the date to Monday 00:00 UTC of its week.
func WeekStart(date time.Time) time.Time {
	d := date.UTC()
	weekday := int(d.Weekday())
	// time.Weekday has Sunday == 0; shift so Monday == 0.
	offset := (weekday + 6) % 7
	d = d.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekStartMs is WeekStart expressed as epoch milliseconds, the unit
// embedded in week-specific slot keys.
func WeekStartMs(date time.Time) int64 {
	return WeekStart(date).UnixMilli()
}
