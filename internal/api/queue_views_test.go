package api

import "testing"

func TestSortJobsNewestFirst(t *testing.T) {
	items := []QueueItem{
		{ID: 1, CreatedAt: "2026-03-14T09:00:00.000Z"},
		{ID: 3, CreatedAt: "2026-03-14T11:00:00.000Z"},
		{ID: 2, CreatedAt: "2026-03-14T10:00:00.000Z"},
	}

	sorted := SortJobsNewestFirst(items)
	if sorted[0].ID != 3 || sorted[1].ID != 2 || sorted[2].ID != 1 {
		t.Fatalf("unexpected order: %#v", sorted)
	}
	if items[0].ID != 1 {
		t.Fatal("expected input slice untouched")
	}
}

func TestSortJobsNewestFirst_TieBreaksByID(t *testing.T) {
	items := []QueueItem{
		{ID: 5, CreatedAt: "2026-03-14T09:00:00.000Z"},
		{ID: 9, CreatedAt: "2026-03-14T09:00:00.000Z"},
	}

	sorted := SortJobsNewestFirst(items)
	if sorted[0].ID != 9 {
		t.Fatalf("expected higher ID first on tie, got %#v", sorted)
	}
}

func TestSortJobsNewestFirst_Empty(t *testing.T) {
	if got := SortJobsNewestFirst(nil); got != nil {
		t.Fatalf("expected nil for empty input, got %#v", got)
	}
}
