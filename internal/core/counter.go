package core

// counter.go implements the per-day publication counter.
//
// The counter is a single record "ddmmyyyy,count" held by a CounterStore.
// It labels same-day publications: the first is unversioned, the n-th
// carries "V{n}". The counter advances only after the report has been
// delivered, so a publication whose notification failed can be retried and
// reuses the same version.
//
// Without a CounterSwapper store the read-then-write is not safe across
// processes: two publications on the same day can both read count N and
// both write N+1. Stores that implement CounterSwapper close that window.

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CounterDateLayout is the date stamp format of the counter record and subject.
const CounterDateLayout = "02012006"

// DefaultTimeZone is the zone that defines the calendar day.
const DefaultTimeZone = "America/Costa_Rica"

// maxSwapAttempts bounds compare-and-swap retries in Advance.
const maxSwapAttempts = 3

// ErrCounterConflict is returned when concurrent writers keep winning the
// compare-and-swap race.
var ErrCounterConflict = errors.New("day counter changed concurrently")

// CounterStore persists the single counter record.
type CounterStore interface {
	// ReadRecord returns the raw record and whether it exists.
	// A missing record is not an error.
	ReadRecord(ctx context.Context) (string, bool, error)

	// WriteRecord creates or overwrites the record.
	WriteRecord(ctx context.Context, record string) error
}

// CounterSwapper is implemented by stores that can update the record atomically.
type CounterSwapper interface {
	// CompareAndSwap writes next only if the stored record still equals old
	// (or is still absent when oldFound is false). Returns false on conflict.
	CompareAndSwap(ctx context.Context, old string, oldFound bool, next string) (bool, error)
}

// VersionCounter reads and advances the day counter.
type VersionCounter struct {
	store CounterStore
	loc   *time.Location
	now   func() time.Time
}

// NewVersionCounter creates a counter evaluated in loc.
// A nil loc uses UTC; a nil now uses time.Now.
func NewVersionCounter(store CounterStore, loc *time.Location, now func() time.Time) *VersionCounter {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &VersionCounter{store: store, loc: loc, now: now}
}

// Today returns today's date stamp in the counter's zone.
func (c *VersionCounter) Today() string {
	return c.now().In(c.loc).Format(CounterDateLayout)
}

// ReadToday returns today's stamp and the number of publications already
// committed today. An absent, unparseable or other-day record yields 0.
// Only store failures are returned as errors.
func (c *VersionCounter) ReadToday(ctx context.Context) (DayCounter, error) {
	today := c.Today()

	record, found, err := c.store.ReadRecord(ctx)
	if err != nil {
		return DayCounter{}, fmt.Errorf("read day counter: %w", err)
	}

	dc := DayCounter{Date: today, record: record, found: found}
	if !found {
		return dc, nil
	}

	date, count, ok := ParseCounterRecord(record)
	if ok && date == today {
		dc.Count = count
	}
	return dc, nil
}

// WriteToday persists the counter unconditionally.
func (c *VersionCounter) WriteToday(ctx context.Context, dc DayCounter) error {
	if err := c.store.WriteRecord(ctx, FormatCounterRecord(dc.Date, dc.Count)); err != nil {
		return fmt.Errorf("write day counter: %w", err)
	}
	return nil
}

// Advance commits one more publication for the day of read, where read is
// the value returned by ReadToday before the notification was sent.
//
// With a CounterSwapper store the write only succeeds if the record is
// unchanged since read. If another writer got there first and already
// recorded at least the same count for the same day, that result stands.
func (c *VersionCounter) Advance(ctx context.Context, read DayCounter) (DayCounter, error) {
	next := DayCounter{Date: read.Date, Count: read.Count + 1}

	swapper, ok := c.store.(CounterSwapper)
	if !ok {
		return next, c.WriteToday(ctx, next)
	}

	current := read
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		record := FormatCounterRecord(next.Date, next.Count)
		swapped, err := swapper.CompareAndSwap(ctx, current.record, current.found, record)
		if err != nil {
			return DayCounter{}, fmt.Errorf("swap day counter: %w", err)
		}
		if swapped {
			next.record, next.found = record, true
			return next, nil
		}

		current, err = c.ReadToday(ctx)
		if err != nil {
			return DayCounter{}, err
		}
		if current.Date == next.Date && current.Count >= next.Count {
			return current, nil
		}
	}

	return DayCounter{}, fmt.Errorf("%w after %d attempts", ErrCounterConflict, maxSwapAttempts)
}

// ParseCounterRecord parses "ddmmyyyy,count". Surrounding whitespace is ignored.
func ParseCounterRecord(record string) (date string, count int, ok bool) {
	parts := strings.Split(strings.TrimSpace(record), ",")
	if len(parts) != 2 {
		return "", 0, false
	}
	date = strings.TrimSpace(parts[0])
	if _, err := time.Parse(CounterDateLayout, date); err != nil {
		return "", 0, false
	}
	count, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || count < 0 {
		return "", 0, false
	}
	return date, count, true
}

// FormatCounterRecord renders the counter record.
func FormatCounterRecord(date string, count int) string {
	return date + "," + strconv.Itoa(count)
}

// Subject returns the notification subject for the publication that follows dc:
// "{title} {ddmmyyyy}" for the first of the day, "{title} {ddmmyyyy} V{n}" after.
func Subject(title string, dc DayCounter) string {
	if dc.Count == 0 {
		return fmt.Sprintf("%s %s", title, dc.Date)
	}
	return fmt.Sprintf("%s %s V%d", title, dc.Date, dc.Version())
}
