package budget

import (
	"testing"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  []string
	}{
		{"single day", "2025-09-15", "2025-09-15", []string{"2025-09"}},
		{"within a month", "2025-09-01", "2025-09-30", []string{"2025-09"}},
		{"two months", "2025-09-15", "2025-10-15", []string{"2025-09", "2025-10"}},
		{"year boundary", "2025-11-20", "2026-02-01", []string{"2025-11", "2025-12", "2026-01", "2026-02"}},
		{"reversed", "2025-10-01", "2025-09-01", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, m := range MonthsBetween(mustDate(t, tt.start), mustDate(t, tt.end)) {
				got = append(got, m.Key())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonthBounds(t *testing.T) {
	feb := Month{Year: 2024, Month: time.February}
	assert.Equal(t, "2024-02-01", feb.First().String())
	assert.Equal(t, "2024-02-29", feb.Last().String())

	dec := Month{Year: 2025, Month: time.December}
	assert.Equal(t, "2025-12-31", dec.Last().String())
	assert.Equal(t, Month{Year: 2026, Month: time.January}, dec.Next())
}

func mustDate(t *testing.T, s string) domain.Date {
	t.Helper()
	d, err := domain.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
