package recurrence

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Freq string

const (
	Daily    Freq = "daily"
	Weekly   Freq = "weekly"
	Biweekly Freq = "biweekly"
	Monthly  Freq = "monthly"
	Yearly   Freq = "yearly"
)

func (f Freq) valid() bool {
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Yearly:
		return true
	}
	return false
}

// DateLayout is the format of EndDate and of every date this package
// accepts or returns.
const DateLayout = "2006-01-02"

// Rule is the stored form of a task's recurrence. DaysOfWeek uses 0 for
// Sunday through 6 for Saturday and only applies to weekly and biweekly
// rules.
type Rule struct {
	Frequency  Freq   `json:"frequency"`
	Interval   int    `json:"interval"`
	EndDate    string `json:"endDate,omitempty"`
	DaysOfWeek []int  `json:"daysOfWeek,omitempty"`
}

// Parse decodes a JSON rule such as {"frequency":"weekly","interval":2}.
// A missing or zero interval defaults to 1.
func Parse(encoded string) (Rule, error) {
	if strings.TrimSpace(encoded) == "" {
		return Rule{}, fmt.Errorf("empty rule")
	}

	var r Rule
	if err := json.Unmarshal([]byte(encoded), &r); err != nil {
		return Rule{}, fmt.Errorf("decode rule: %w", err)
	}
	if r.Interval == 0 {
		r.Interval = 1
	}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

func (r Rule) Validate() error {
	if !r.Frequency.valid() {
		return fmt.Errorf("unknown frequency: %q", r.Frequency)
	}
	if r.Interval < 1 {
		return fmt.Errorf("invalid interval: %d", r.Interval)
	}
	if r.EndDate != "" {
		if _, err := time.Parse(DateLayout, r.EndDate); err != nil {
			return fmt.Errorf("invalid endDate: %q", r.EndDate)
		}
	}
	for _, d := range r.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("invalid day of week: %d", d)
		}
	}
	return nil
}

// Encode serializes the rule to its stored JSON form. Days are sorted and
// deduplicated.
func (r Rule) Encode() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	r.DaysOfWeek = normalizeDays(r.DaysOfWeek)
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode rule: %w", err)
	}
	return string(b), nil
}

func normalizeDays(days []int) []int {
	if len(days) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}

// Describe returns the label shown next to a recurring task, for example
// "Every day" or "Every 3 weeks on Mon, Thu".
func (r Rule) Describe() string {
	n := r.Interval
	if n < 1 {
		n = 1
	}

	var label string
	switch r.Frequency {
	case Daily:
		label = every(n, "day")
	case Weekly:
		label = every(n, "week")
	case Biweekly:
		label = every(2*n, "week")
	case Monthly:
		label = every(n, "month")
	case Yearly:
		label = every(n, "year")
	default:
		return ""
	}

	if r.weekly() && len(r.DaysOfWeek) > 0 {
		var names []string
		for _, d := range normalizeDays(r.DaysOfWeek) {
			names = append(names, time.Weekday(d).String()[:3])
		}
		label += " on " + strings.Join(names, ", ")
	}
	if r.EndDate != "" {
		label += " until " + r.EndDate
	}
	return label
}

func every(n int, unit string) string {
	if n == 1 {
		return "Every " + unit
	}
	return fmt.Sprintf("Every %d %ss", n, unit)
}

func (r Rule) weekly() bool {
	return r.Frequency == Weekly || r.Frequency == Biweekly
}
