// Package ordering keeps the order field of a course's video and file
// lists dense: after any mutation the set of order values is exactly
// 1..N, regardless of how corrupted the input list was.
package ordering

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Item is implemented by the entities whose ordering is managed here.
// WithOrder returns a copy with the order replaced so the functions in
// this package stay pure; callers persist the returned list atomically
// as a whole, never as a partial patch.
type Item[T any] interface {
	ItemID() string
	ItemOrder() int
	WithOrder(n int) T
}

// Renumber sorts by the current order and reassigns 1..N. It is the
// final step of every mutation and repairs gaps and duplicates left by
// earlier writes.
func Renumber[T Item[T]](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ItemOrder() < out[j].ItemOrder()
	})

	for i := range out {
		out[i] = out[i].WithOrder(i + 1)
	}

	return out
}

// AppendBatch places incoming after the current maximum order,
// preserving the supplied order of incoming, then renumbers.
func AppendBatch[T Item[T]](existing, incoming []T) []T {
	max := 0
	for _, it := range existing {
		if it.ItemOrder() > max {
			max = it.ItemOrder()
		}
	}

	out := make([]T, 0, len(existing)+len(incoming))
	out = append(out, existing...)
	for i, it := range incoming {
		out = append(out, it.WithOrder(max+1+i))
	}

	return Renumber(out)
}

// InsertBatch places incoming so the first of them ends up at position
// at, shifting every existing item at or past that position down by
// len(incoming). An at past the end behaves like AppendBatch.
func InsertBatch[T Item[T]](existing, incoming []T, at int) []T {
	if at < 1 {
		at = 1
	}

	out := make([]T, 0, len(existing)+len(incoming))
	for _, it := range existing {
		if it.ItemOrder() >= at {
			out = append(out, it.WithOrder(it.ItemOrder()+len(incoming)))
			continue
		}
		out = append(out, it)
	}

	for i, it := range incoming {
		out = append(out, it.WithOrder(at+i))
	}

	return Renumber(out)
}

// Remove filters out the item with the given id and renumbers the
// remainder to 1..N-1. Removing an unknown id is a no-op.
func Remove[T Item[T]](items []T, id string) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it.ItemID() == id {
			continue
		}
		out = append(out, it)
	}

	return Renumber(out)
}

// MoveTo splices the item with the given id out of the list and back in
// so it ends up at position newOrder, then renumbers. An out-of-range
// newOrder is clamped to the nearest end of the list.
func MoveTo[T Item[T]](items []T, id string, newOrder int) ([]T, error) {
	sorted := Renumber(items)

	idx := -1
	for i, it := range sorted {
		if it.ItemID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("item[%s] not found", id)
	}

	target := sorted[idx]
	rest := append(sorted[:idx:idx], sorted[idx+1:]...)

	pos := newOrder - 1
	if pos < 0 {
		pos = 0
	}
	if pos > len(rest) {
		pos = len(rest)
	}

	out := make([]T, 0, len(sorted))
	out = append(out, rest[:pos]...)
	out = append(out, target)
	out = append(out, rest[pos:]...)

	for i := range out {
		out[i] = out[i].WithOrder(i + 1)
	}

	return out, nil
}

// NextID derives the next id in a prefix_N sequence from the ids
// already in use. Ids without a numeric suffix count as 0, so a list of
// free-form ids simply starts the sequence at prefix_1.
func NextID(ids []string, prefix string) string {
	max := 0
	for _, id := range ids {
		n := numericSuffix(id)
		if n > max {
			max = n
		}
	}

	return fmt.Sprintf("%s_%d", prefix, max+1)
}

func numericSuffix(id string) int {
	i := strings.LastIndex(id, "_")
	if i < 0 || i == len(id)-1 {
		return 0
	}

	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
