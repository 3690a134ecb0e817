package budget

import (
	"fmt"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/domain"
)

// Month is a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing d.
func MonthOf(d domain.Date) Month {
	return Month{Year: d.Year(), Month: d.Month()}
}

// First returns the first day of the month.
func (m Month) First() domain.Date {
	return domain.NewDate(m.Year, m.Month, 1)
}

// Last returns the last day of the month.
func (m Month) Last() domain.Date {
	return domain.NewDate(m.Year, m.Month+1, 0)
}

// Next returns the following month.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Key formats the month as YYYY-MM.
func (m Month) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Label formats the month for humans, e.g. "September 2025".
func (m Month) Label() string {
	return fmt.Sprintf("%s %d", m.Month, m.Year)
}

// MonthsBetween lists every calendar month touched by the inclusive
// range [start, end], in order. It returns nil when end is before start.
func MonthsBetween(start, end domain.Date) []Month {
	if end.Before(start) {
		return nil
	}
	last := MonthOf(end)
	var months []Month
	for m := MonthOf(start); ; m = m.Next() {
		months = append(months, m)
		if m == last {
			return months
		}
	}
}
