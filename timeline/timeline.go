// Package timeline provides a chronological series of values keyed by
// time, with nearest at-or-before resolution.
package timeline

import (
	"iter"
	"sort"
	"time"
)

type entry[T any] struct {
	at    time.Time
	value T
}

// Series is an ordered sequence of timestamped values. The zero Series
// is empty and ready to use. Series is not safe for concurrent use.
type Series[T any] struct {
	entries []entry[T]
}

// Append records a value at the given instant, keeping the series
// sorted. Appending in chronological order is O(1); out-of-order
// appends are inserted at the right position. Ties keep insertion order.
func (s *Series[T]) Append(at time.Time, value T) {
	e := entry[T]{at: at, value: value}
	n := len(s.entries)
	if n == 0 || !at.Before(s.entries[n-1].at) {
		s.entries = append(s.entries, e)
		return
	}
	i := sort.Search(n, func(i int) bool { return s.entries[i].at.After(at) })
	s.entries = append(s.entries, entry[T]{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = e
}

// Len returns the number of recorded values.
func (s *Series[T]) Len() int { return len(s.entries) }

// Latest returns the most recent value, or false on an empty series.
func (s *Series[T]) Latest() (T, time.Time, bool) {
	if len(s.entries) == 0 {
		var zero T
		return zero, time.Time{}, false
	}
	last := s.entries[len(s.entries)-1]
	return last.value, last.at, true
}

// ValueAsOf returns the value recorded nearest at or before t, or false
// when every entry is after t. Among ties the latest inserted wins.
func (s *Series[T]) ValueAsOf(t time.Time) (T, bool) {
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].at.After(t) })
	if i == 0 {
		var zero T
		return zero, false
	}
	return s.entries[i-1].value, true
}

// Values iterates over the series in chronological order.
func (s *Series[T]) Values() iter.Seq2[time.Time, T] {
	return func(yield func(time.Time, T) bool) {
		for _, e := range s.entries {
			if !yield(e.at, e.value) {
				return
			}
		}
	}
}
