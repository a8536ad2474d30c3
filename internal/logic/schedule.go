package logic

import "sort"

// TableCapacity is the maximum number of feeding entries installed at once.
const TableCapacity = 8

// Entry is one feeding time. LastFired is owned by the Table.
type Entry struct {
	Hour      int
	Minute    int
	Grams     int
	LastFired DayNumber
}

// Valid reports whether the entry's time and amount are in range.
func (e Entry) Valid() bool {
	return e.Hour >= 0 && e.Hour <= 23 &&
		e.Minute >= 0 && e.Minute <= 59 &&
		e.Grams > 0
}

// ReplaceResult reports what Replace did with its candidates.
type ReplaceResult struct {
	Installed int
	Invalid   int // failed validation
	Dropped   int // valid but beyond capacity
}

// Rejected is the total number of candidates not installed.
func (r ReplaceResult) Rejected() int {
	return r.Invalid + r.Dropped
}

// Due identifies an entry matching the current minute.
type Due struct {
	Index int
	Entry Entry
}

// Table is an insertion-ordered, fixed-capacity set of feeding entries.
type Table struct {
	entries []Entry
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Replace swaps the whole table. Invalid candidates are skipped; valid ones are
// installed in order until capacity, the rest dropped. Fired marks are cleared.
func (t *Table) Replace(candidates []Entry) ReplaceResult {
	var res ReplaceResult
	next := make([]Entry, 0, TableCapacity)
	for _, c := range candidates {
		if !c.Valid() {
			res.Invalid++
			continue
		}
		if len(next) == TableCapacity {
			res.Dropped++
			continue
		}
		c.LastFired = NoDay
		next = append(next, c)
	}
	t.entries = next
	res.Installed = len(next)
	return res
}

// Restore installs previously persisted entries, keeping their fired marks.
// Invalid entries and entries beyond capacity are discarded.
func (t *Table) Restore(entries []Entry) int {
	next := make([]Entry, 0, TableCapacity)
	for _, e := range entries {
		if !e.Valid() || len(next) == TableCapacity {
			continue
		}
		next = append(next, e)
	}
	t.entries = next
	return len(entries) - len(next)
}

// Due returns the entries matching m's hour and minute that have not fired on m's day.
// An unknown moment never matches.
func (t *Table) Due(m Moment) []Due {
	if !m.Known {
		return nil
	}
	var out []Due
	for i, e := range t.entries {
		if e.Hour == m.Hour && e.Minute == m.Minute && e.LastFired != m.Day {
			out = append(out, Due{Index: i, Entry: e})
		}
	}
	return out
}

// MarkFired records that entry i fired on day.
func (t *Table) MarkFired(i int, day DayNumber) {
	if i < 0 || i >= len(t.entries) {
		return
	}
	t.entries[i].LastFired = day
}

// TakeDue returns the due entries and marks each as fired for m's day.
func (t *Table) TakeDue(m Moment) []Due {
	due := t.Due(m)
	for i := range due {
		t.MarkFired(due[i].Index, m.Day)
		due[i].Entry.LastFired = m.Day
	}
	return due
}

// Entries returns a copy of the installed entries in insertion order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of installed entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Next returns the first entry strictly after m's minute, wrapping to the earliest
// entry of the next day. ok is false for an empty table or unknown moment.
func (t *Table) Next(m Moment) (Entry, bool) {
	if !m.Known || len(t.entries) == 0 {
		return Entry{}, false
	}
	sorted := t.Entries()
	sort.SliceStable(sorted, func(i, j int) bool {
		return minuteOfDay(sorted[i]) < minuteOfDay(sorted[j])
	})
	now := m.Hour*60 + m.Minute
	for _, e := range sorted {
		if minuteOfDay(e) > now {
			return e, true
		}
	}
	return sorted[0], true
}

func minuteOfDay(e Entry) int {
	return e.Hour*60 + e.Minute
}
