package ledger

import (
	"fmt"
	"strings"
)

// Classification partitions the opening-balance snapshot into the two policy
// groups. Accounts matching neither keyword set are dropped.
type Classification struct {
	Cumulative []SnapshotRow
	Periodic   []SnapshotRow
}

func matchesCumulative(accountType string) bool {
	t := strings.ToLower(accountType)
	return strings.Contains(t, "asset") || strings.Contains(t, "liab")
}

func matchesPeriodic(accountType string) bool {
	t := strings.ToLower(accountType)
	return strings.Contains(t, "income") || strings.Contains(t, "expens")
}

// Classify splits snapshot rows by accumulation policy. An account whose type
// label matches both keyword sets is malformed data and fails the run rather
// than being silently routed to one group.
func Classify(rows []SnapshotRow) (Classification, error) {
	var out Classification
	var conflicts []string
	for _, row := range rows {
		cum := matchesCumulative(row.AccountType)
		per := matchesPeriodic(row.AccountType)
		switch {
		case cum && per:
			conflicts = append(conflicts, row.Account)
		case cum:
			out.Cumulative = append(out.Cumulative, row)
		case per:
			out.Periodic = append(out.Periodic, row)
		}
	}
	if len(conflicts) > 0 {
		err := fmt.Errorf("account type matches both asset/liability and income/expense keywords: %s",
			strings.Join(conflicts, ", "))
		return Classification{}, newRunError(FailureClassification, "classify accounts", "", err)
	}
	return out, nil
}

// AccountCodes extracts the account codes of a policy group.
func AccountCodes(rows []SnapshotRow) []string {
	codes := make([]string, len(rows))
	for i, row := range rows {
		codes[i] = row.Account
	}
	return codes
}
