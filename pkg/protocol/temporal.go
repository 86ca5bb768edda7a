package protocol

import (
	"fmt"
	"time"
)

// TicksPerSecond is the resolution of encoded durations (100ns ticks).
const TicksPerSecond = 10_000_000

const tickDuration = time.Second / TicksPerSecond

// Date is a calendar date without a time or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the date portion of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// String returns the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// TimeOfDay is a wall-clock time without a date or zone.
type TimeOfDay struct {
	Hour        int
	Minute      int
	Second      int
	Millisecond int
	Microsecond int
}

// String returns the time as hh:mm:ss.ffffff.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d%03d", t.Hour, t.Minute, t.Second, t.Millisecond, t.Microsecond)
}

// WriteDate writes [year, month, day, 0].
func (w *Writer) WriteDate(d Date) {
	w.StartArray(4)
	w.WriteInt(int64(d.Year))
	w.WriteInt(int64(d.Month))
	w.WriteInt(int64(d.Day))
	w.WriteInt(0)
	w.EndArray()
}

// WriteTimeOfDay writes [hour, minute, second, millisecond, microsecond].
func (w *Writer) WriteTimeOfDay(t TimeOfDay) {
	w.StartArray(5)
	w.WriteInt(int64(t.Hour))
	w.WriteInt(int64(t.Minute))
	w.WriteInt(int64(t.Second))
	w.WriteInt(int64(t.Millisecond))
	w.WriteInt(int64(t.Microsecond))
	w.EndArray()
}

// WriteDuration writes d as a count of 100ns ticks.
func (w *Writer) WriteDuration(d time.Duration) {
	w.WriteInt(int64(d / tickDuration))
}

// ReadDate reads a date tuple. Trailing elements beyond the fourth are
// skipped.
func (r *Reader) ReadDate() (Date, error) {
	parts, err := r.readIntTuple(4)
	if err != nil {
		return Date{}, err
	}
	return Date{Year: int(parts[0]), Month: time.Month(parts[1]), Day: int(parts[2])}, nil
}

// ReadTimeOfDay reads a time tuple. Trailing elements beyond the fifth
// are skipped.
func (r *Reader) ReadTimeOfDay() (TimeOfDay, error) {
	parts, err := r.readIntTuple(5)
	if err != nil {
		return TimeOfDay{}, err
	}
	return TimeOfDay{
		Hour:        int(parts[0]),
		Minute:      int(parts[1]),
		Second:      int(parts[2]),
		Millisecond: int(parts[3]),
		Microsecond: int(parts[4]),
	}, nil
}

// ReadDuration reads a 100ns tick count.
func (r *Reader) ReadDuration() (time.Duration, error) {
	ticks, err := r.ReadInt64()
	if err != nil {
		return 0, err
	}
	return time.Duration(ticks) * tickDuration, nil
}

func (r *Reader) readIntTuple(arity int) ([]int64, error) {
	n, err := r.StartArray()
	if err != nil {
		return nil, err
	}
	if n == Indefinite {
		return nil, ErrIndefiniteLengthNotSupported
	}
	if n < arity {
		return nil, fmt.Errorf("protocol: tuple has %d elements, want %d: %w", n, arity, ErrContainerNotExhausted)
	}
	parts := make([]int64, arity)
	for i := range parts {
		if parts[i], err = r.ReadInt64(); err != nil {
			return nil, err
		}
	}
	if err := r.EndArrayAndSkip(n - arity); err != nil {
		return nil, err
	}
	return parts, nil
}
