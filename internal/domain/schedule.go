package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday is a day of week, 0 = Sunday through 6 = Saturday.
type Weekday int

var weekdayLabels = [7]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

// Valid reports whether d is within 0..6.
func (d Weekday) Valid() bool { return d >= 0 && d <= 6 }

// Label returns the Spanish day name.
func (d Weekday) Label() string {
	if !d.Valid() {
		return fmt.Sprintf("día %d", int(d))
	}
	return weekdayLabels[d]
}

// TimeOfDay is a wall-clock time expressed as seconds since midnight.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS" (Postgres time format),
// including "24:00" for the end of the day.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, &ErrValidation{Field: "time", Message: fmt.Sprintf("hora inválida: %q", s)}
	}
	limits := []int{24, 59, 59}
	var vals [3]int
	for i, p := range parts {
		// tolerate fractional seconds ("08:00:00.000")
		if i == 2 {
			p, _, _ = strings.Cut(p, ".")
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, &ErrValidation{Field: "time", Message: fmt.Sprintf("hora inválida: %q", s)}
		}
		vals[i] = n
	}
	// Postgres allows 24:00:00 as end of day, nothing past it
	if vals[0] == 24 && (vals[1] != 0 || vals[2] != 0) {
		return 0, &ErrValidation{Field: "time", Message: fmt.Sprintf("hora inválida: %q", s)}
	}
	return TimeOfDay(vals[0]*3600 + vals[1]*60 + vals[2]), nil
}

// MustTimeOfDay is ParseTimeOfDay for literals.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeOfDayOf returns the time of day of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// String renders HH:MM, adding seconds only when non-zero.
func (t TimeOfDay) String() string {
	h, m, s := int(t)/3600, (int(t)%3600)/60, int(t)%60
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ScheduleWindow is a recurring weekly interval during which a role may be
// activated (row of employee_schedules).
type ScheduleWindow struct {
	ID         string    `json:"id,omitempty"`
	EmployeeID string    `json:"employee_id"`
	Role       Role      `json:"role"`
	DayOfWeek  Weekday   `json:"day_of_week"`
	StartTime  TimeOfDay `json:"start_time"`
	EndTime    TimeOfDay `json:"end_time"`
	IsActive   bool      `json:"is_active"`
}

// Contains reports whether now falls inside the window: same weekday and
// start <= time < end.
func (w ScheduleWindow) Contains(now time.Time) bool {
	if Weekday(now.Weekday()) != w.DayOfWeek {
		return false
	}
	t := TimeOfDayOf(now)
	return w.StartTime <= t && t < w.EndTime
}

// Less orders windows by (day_of_week, start_time).
func (w ScheduleWindow) Less(o ScheduleWindow) bool {
	if w.DayOfWeek != o.DayOfWeek {
		return w.DayOfWeek < o.DayOfWeek
	}
	return w.StartTime < o.StartTime
}

// Describe renders "Lunes 09:00 - 10:00".
func (w ScheduleWindow) Describe() string {
	return fmt.Sprintf("%s %s - %s", w.DayOfWeek.Label(), w.StartTime, w.EndTime)
}

// Validate checks a window before it is written.
func (w ScheduleWindow) Validate() error {
	if w.EmployeeID == "" {
		return &ErrValidation{Field: "employee_id", Message: "empleado requerido"}
	}
	if !w.Role.Schedulable() {
		return &ErrValidation{Field: "role", Message: fmt.Sprintf("el rol %s no admite horarios", w.Role.Label())}
	}
	if !w.DayOfWeek.Valid() {
		return &ErrValidation{Field: "day_of_week", Message: "día de la semana debe estar entre 0 y 6"}
	}
	if w.EndTime <= w.StartTime {
		return &ErrValidation{Field: "end_time", Message: "la hora de fin debe ser posterior a la de inicio"}
	}
	return nil
}
