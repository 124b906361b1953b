package ledger

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

var monthKeyRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// MonthKey is a calendar month in YYYY-MM form. Keys compare chronologically
// as plain strings, which the window logic relies on throughout.
type MonthKey string

// ParseMonthKey validates and returns a month key.
func ParseMonthKey(s string) (MonthKey, error) {
	if !monthKeyRe.MatchString(s) {
		return "", fmt.Errorf("ledger: invalid month key %q", s)
	}
	return MonthKey(s), nil
}

// Bounds returns the half-open UTC date range [start, end) covering the month.
func (m MonthKey) Bounds() (time.Time, time.Time) {
	t, err := time.Parse("2006-01", string(m))
	if err != nil {
		return time.Time{}, time.Time{}
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Window is the ordered reporting window plus the two source cutover boundaries.
type Window struct {
	months            []MonthKey
	historicalCutover MonthKey
	currentFrom       MonthKey
}

// NewWindow builds a reporting window. Months must be valid keys ordered
// oldest first; historicalCutover is the last month served by the historical
// table and currentFrom the first month read from the current voucher table.
func NewWindow(months []string, historicalCutover, currentFrom string) (Window, error) {
	if len(months) == 0 {
		return Window{}, fmt.Errorf("ledger: reporting window is empty")
	}
	keys := make([]MonthKey, 0, len(months))
	for _, m := range months {
		key, err := ParseMonthKey(m)
		if err != nil {
			return Window{}, err
		}
		keys = append(keys, key)
	}
	if !sort.SliceIsSorted(keys, func(i, j int) bool { return keys[i] < keys[j] }) {
		return Window{}, fmt.Errorf("ledger: window months must be ordered oldest first")
	}
	for i := 1; i < len(keys); i++ {
		if keys[i] == keys[i-1] {
			return Window{}, fmt.Errorf("ledger: duplicate month %s in window", keys[i])
		}
	}
	cutover, err := ParseMonthKey(historicalCutover)
	if err != nil {
		return Window{}, err
	}
	from, err := ParseMonthKey(currentFrom)
	if err != nil {
		return Window{}, err
	}
	return Window{months: keys, historicalCutover: cutover, currentFrom: from}, nil
}

// Months returns the window months in order.
func (w Window) Months() []MonthKey {
	out := make([]MonthKey, len(w.months))
	copy(out, w.months)
	return out
}

// Contains reports whether the month is part of the window.
func (w Window) Contains(m MonthKey) bool {
	for _, key := range w.months {
		if key == m {
			return true
		}
	}
	return false
}

// IsHistorical reports whether the month is served by the historical table.
func (w Window) IsHistorical(m MonthKey) bool {
	return m <= w.historicalCutover
}

// CutoverMonth returns the first window month computed from raw transactions,
// or empty when the whole window is historical.
func (w Window) CutoverMonth() MonthKey {
	for _, m := range w.months {
		if m > w.historicalCutover {
			return m
		}
	}
	return ""
}

// UsesCurrentTable reports whether the month's vouchers live in the
// current-period table rather than the archival one.
func (w Window) UsesCurrentTable(m MonthKey) bool {
	return m >= w.currentFrom
}
