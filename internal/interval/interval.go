// Package interval implements the half-open time interval algebra the booking
// engine is built on: overlap testing, free-time subtraction and slot
// quantization. All functions are pure; callers pass the current time in.
package interval

import "time"

// Span is a half-open time range [Start, End).
type Span struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Slot is a fixed-length bookable chunk. Available is false when the slot
// ends at or before the reference time; past slots are exposed, not hidden.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
// Touching endpoints do not count: [9,10) and [10,11) are disjoint.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Subtract removes every busy range from the base ranges and returns what is
// left. Each base span is split repeatedly: a busy range cutting through it
// leaves at most a left remainder before busy.Start and a right remainder
// after busy.End. Empty remainders are dropped.
func Subtract(base, busy []Span) []Span {
	var free []Span
	for _, b := range base {
		parts := []Span{b}
		for _, cut := range busy {
			var next []Span
			for _, p := range parts {
				if !Overlaps(p.Start, p.End, cut.Start, cut.End) {
					next = append(next, p)
					continue
				}
				if p.Start.Before(cut.Start) {
					next = append(next, Span{Start: p.Start, End: minTime(p.End, cut.Start)})
				}
				if cut.End.Before(p.End) {
					next = append(next, Span{Start: maxTime(p.Start, cut.End), End: p.End})
				}
			}
			parts = next
		}
		free = append(free, parts...)
	}

	out := free[:0]
	for _, s := range free {
		if s.Start.Before(s.End) {
			out = append(out, s)
		}
	}
	return out
}

// Quantize greedily slices each free span into consecutive step-length slots
// starting at the span's start. A tail shorter than step is dropped. Slots
// ending at or before now are marked unavailable.
func Quantize(free []Span, step time.Duration, now time.Time) []Slot {
	if step <= 0 {
		return nil
	}

	var slots []Slot
	for _, s := range free {
		cur := s.Start
		for !cur.Add(step).After(s.End) {
			end := cur.Add(step)
			slots = append(slots, Slot{
				Start:     cur,
				End:       end,
				Available: end.After(now),
			})
			cur = end
		}
	}
	return slots
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
