package recurrence

import "time"

// NextOccurrence returns the date following base under the rule. ok is false
// when that date falls after the rule's end date. base is treated as a
// calendar date; its clock time and zone are ignored.
func NextOccurrence(base time.Time, r Rule) (next time.Time, ok bool) {
	base = midnight(base)
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}

	switch r.Frequency {
	case Daily:
		next = base.AddDate(0, 0, interval)
	case Weekly:
		next = nextWeekly(base, interval, r.DaysOfWeek)
	case Biweekly:
		next = nextWeekly(base, 2*interval, r.DaysOfWeek)
	case Monthly:
		next = addMonthsClamped(base, interval)
	case Yearly:
		next = addMonthsClamped(base, 12*interval)
	default:
		next = base.AddDate(0, 0, 1)
	}

	if r.EndDate != "" {
		end, err := time.Parse(DateLayout, r.EndDate)
		if err == nil && next.After(end) {
			return next, false
		}
	}
	return next, true
}

// NextDueDate applies NextOccurrence to a stored due date. A nil or
// unparseable due date counts from today.
func NextDueDate(dueDate *string, r Rule, today time.Time) (string, bool) {
	base := today
	if dueDate != nil {
		if d, err := time.Parse(DateLayout, *dueDate); err == nil {
			base = d
		}
	}
	next, ok := NextOccurrence(base, r)
	return next.Format(DateLayout), ok
}

// Occurrences lists the dates of a series starting at first that fall within
// [from, to], including first itself. At most limit dates are returned.
func Occurrences(r Rule, first, from, to time.Time, limit int) []time.Time {
	const maxIterations = 10000

	from, to = midnight(from), midnight(to)
	cur := midnight(first)
	var out []time.Time
	for i := 0; i < maxIterations && len(out) < limit; i++ {
		if cur.After(to) {
			break
		}
		if !cur.Before(from) {
			out = append(out, cur)
		}
		next, ok := NextOccurrence(cur, r)
		if !ok || !next.After(cur) {
			break
		}
		cur = next
	}
	return out
}

func nextWeekly(base time.Time, weeks int, days []int) time.Time {
	days = normalizeDays(days)
	if len(days) == 0 {
		return base.AddDate(0, 0, 7*weeks)
	}

	// Remaining selected days in the current Sunday-based week come first.
	for _, d := range days {
		if d > int(base.Weekday()) {
			return base.AddDate(0, 0, d-int(base.Weekday()))
		}
	}
	start := weekStart(base).AddDate(0, 0, 7*weeks)
	return start.AddDate(0, 0, days[0])
}

func weekStart(t time.Time) time.Time {
	return t.AddDate(0, 0, -int(t.Weekday()))
}

// addMonthsClamped moves by n months, pinning the day to the last day of the
// target month when it does not exist there (Jan 31 + 1 month = Feb 28).
func addMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := daysInMonth(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
