package ordering

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type entry struct {
	ID    string
	Order int
}

func (e entry) ItemID() string  { return e.ID }
func (e entry) ItemOrder() int  { return e.Order }
func (e entry) WithOrder(n int) entry {
	e.Order = n
	return e
}

func checkDense(t *testing.T, items []entry) {
	t.Helper()

	seen := make(map[int]string, len(items))
	for _, it := range items {
		if it.Order < 1 || it.Order > len(items) {
			t.Fatalf("item[%s] has order %d outside 1..%d", it.ID, it.Order, len(items))
		}
		if prev, ok := seen[it.Order]; ok {
			t.Fatalf("items [%s] and [%s] share order %d", prev, it.ID, it.Order)
		}
		seen[it.Order] = it.ID
	}
}

func TestRenumberRepairsCorruption(t *testing.T) {
	in := []entry{
		{ID: "video_3", Order: 7},
		{ID: "video_1", Order: 0},
		{ID: "video_2", Order: 7},
		{ID: "video_4", Order: -2},
	}

	got := Renumber(in)
	checkDense(t, got)

	// Stable sort: equal orders keep their relative position.
	want := []entry{
		{ID: "video_4", Order: 1},
		{ID: "video_1", Order: 2},
		{ID: "video_3", Order: 3},
		{ID: "video_2", Order: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected renumbering (-want +got):\n%s", diff)
	}
}

func TestAppendBatch(t *testing.T) {
	existing := []entry{
		{ID: "video_1", Order: 1},
		{ID: "video_2", Order: 2},
	}
	incoming := []entry{
		{ID: "video_3"},
		{ID: "video_4"},
	}

	got := AppendBatch(existing, incoming)
	checkDense(t, got)

	want := []entry{
		{ID: "video_1", Order: 1},
		{ID: "video_2", Order: 2},
		{ID: "video_3", Order: 3},
		{ID: "video_4", Order: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected append result (-want +got):\n%s", diff)
	}
}

func TestAppendBatchOntoEmpty(t *testing.T) {
	got := AppendBatch(nil, []entry{{ID: "video_1"}})
	if len(got) != 1 || got[0].Order != 1 {
		t.Fatalf("expected single item with order 1, got %+v", got)
	}
}

func TestInsertBatchShiftsTail(t *testing.T) {
	existing := []entry{
		{ID: "video_1", Order: 1},
		{ID: "video_2", Order: 2},
		{ID: "video_3", Order: 3},
	}
	incoming := []entry{
		{ID: "video_4"},
		{ID: "video_5"},
	}

	got := InsertBatch(existing, incoming, 2)
	checkDense(t, got)

	want := []entry{
		{ID: "video_1", Order: 1},
		{ID: "video_4", Order: 2},
		{ID: "video_5", Order: 3},
		{ID: "video_2", Order: 4},
		{ID: "video_3", Order: 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected insert result (-want +got):\n%s", diff)
	}
}

func TestInsertBatchPastEndAppends(t *testing.T) {
	existing := []entry{{ID: "video_1", Order: 1}}
	got := InsertBatch(existing, []entry{{ID: "video_2"}}, 99)
	checkDense(t, got)

	if got[1].ID != "video_2" || got[1].Order != 2 {
		t.Fatalf("expected video_2 appended at order 2, got %+v", got)
	}
}

func TestRemoveMiddle(t *testing.T) {
	in := []entry{
		{ID: "video_1", Order: 1},
		{ID: "video_2", Order: 2},
		{ID: "video_3", Order: 3},
	}

	got := Remove(in, "video_2")
	checkDense(t, got)

	want := []entry{
		{ID: "video_1", Order: 1},
		{ID: "video_3", Order: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected remove result (-want +got):\n%s", diff)
	}
}

func TestRemoveUnknownIDKeepsList(t *testing.T) {
	in := []entry{
		{ID: "video_1", Order: 1},
		{ID: "video_2", Order: 2},
	}

	got := Remove(in, "video_9")
	if diff := cmp.Diff(in, got); diff != "" {
		t.Fatalf("unexpected change removing unknown id (-want +got):\n%s", diff)
	}
}

func TestMoveLastToFront(t *testing.T) {
	in := []entry{
		{ID: "video_1", Order: 1},
		{ID: "video_2", Order: 2},
		{ID: "video_3", Order: 3},
	}

	got, err := MoveTo(in, "video_3", 1)
	if err != nil {
		t.Fatal(err)
	}
	checkDense(t, got)

	want := []entry{
		{ID: "video_3", Order: 1},
		{ID: "video_1", Order: 2},
		{ID: "video_2", Order: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected move result (-want +got):\n%s", diff)
	}
}

func TestMoveToClampsOutOfRange(t *testing.T) {
	in := []entry{
		{ID: "video_1", Order: 1},
		{ID: "video_2", Order: 2},
		{ID: "video_3", Order: 3},
	}

	low, err := MoveTo(in, "video_2", -5)
	if err != nil {
		t.Fatal(err)
	}
	if low[0].ID != "video_2" {
		t.Fatalf("expected video_2 clamped to the front, got %+v", low)
	}

	high, err := MoveTo(in, "video_2", 42)
	if err != nil {
		t.Fatal(err)
	}
	if high[len(high)-1].ID != "video_2" {
		t.Fatalf("expected video_2 clamped to the back, got %+v", high)
	}
	checkDense(t, low)
	checkDense(t, high)
}

func TestMoveToUnknownID(t *testing.T) {
	in := []entry{{ID: "video_1", Order: 1}}
	if _, err := MoveTo(in, "video_9", 1); err == nil {
		t.Fatal("expected an error moving an unknown id")
	}
}

func TestMoveToSortsCorruptedInput(t *testing.T) {
	in := []entry{
		{ID: "video_2", Order: 9},
		{ID: "video_1", Order: 4},
	}

	got, err := MoveTo(in, "video_2", 1)
	if err != nil {
		t.Fatal(err)
	}
	checkDense(t, got)

	if got[0].ID != "video_2" || got[1].ID != "video_1" {
		t.Fatalf("unexpected order after move: %+v", got)
	}
}

func TestDensityUnderRandomMutations(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	var items []entry
	next := 0

	for i := 0; i < 500; i++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(items) == 0:
			n := rng.Intn(3) + 1
			batch := make([]entry, 0, n)
			for j := 0; j < n; j++ {
				next++
				batch = append(batch, entry{ID: fmt.Sprintf("video_%d", next)})
			}
			if len(items) > 0 && rng.Intn(2) == 0 {
				items = InsertBatch(items, batch, rng.Intn(len(items)+2))
			} else {
				items = AppendBatch(items, batch)
			}

		case op == 1:
			items = Remove(items, items[rng.Intn(len(items))].ID)

		default:
			var err error
			items, err = MoveTo(items, items[rng.Intn(len(items))].ID, rng.Intn(len(items)+4)-1)
			if err != nil {
				t.Fatal(err)
			}
		}

		checkDense(t, items)
	}
}

func TestNextID(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		want string
	}{
		{"empty", nil, "video_1"},
		{"sequence", []string{"video_1", "video_2"}, "video_3"},
		{"gap", []string{"video_1", "video_7"}, "video_8"},
		{"non numeric suffix", []string{"video_x", "legacy"}, "video_1"},
		{"mixed", []string{"video_3", "imported", "video_abc"}, "video_4"},
		{"negative suffix ignored", []string{"video_-2"}, "video_1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextID(tc.ids, "video"); got != tc.want {
				t.Fatalf("NextID(%v) = %q, want %q", tc.ids, got, tc.want)
			}
		})
	}
}
