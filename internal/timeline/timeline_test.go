package timeline

import (
	"math"
	"testing"
	"time"

	"dotflow/internal/models"
)

func planned(taskID string, start time.Time, durSec int) models.PlannedQueueItem {
	return models.PlannedQueueItem{
		ID: "i-" + taskID, TaskID: taskID,
		Status:         models.PlannedPending,
		ScheduledAt:    start,
		ScheduledEndAt: start.Add(time.Duration(durSec) * time.Second),
		DurationSec:    durSec,
	}
}

func TestItemBoxGeometry(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	box := ItemBox(planned("a", start, 300), 6400, time.UTC)

	if want := float64(9 * 6400); box.Top != want {
		t.Fatalf("top = %v, want %v", box.Top, want)
	}
	wantHeight := (300.0 / 60) * (6400.0 / 60)
	if math.Abs(box.Height-wantHeight) > 0.01 {
		t.Fatalf("height = %v, want %v", box.Height, wantHeight)
	}
}

func TestYForTimeCountsSeconds(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 3, 10, 0, 1, 30, 0, time.UTC)
	if got, want := YForTime(at, 64, time.UTC), 1.5*64.0/60; math.Abs(got-want) > 0.001 {
		t.Fatalf("y = %v, want %v", got, want)
	}
}

func TestZoomLadderClamps(t *testing.T) {
	t.Parallel()
	if got := ZoomIn(12800); got != 12800 {
		t.Fatalf("ZoomIn at top = %d", got)
	}
	if got := ZoomOut(64); got != 64 {
		t.Fatalf("ZoomOut at bottom = %d", got)
	}
	if got := ZoomIn(640); got != 1280 {
		t.Fatalf("ZoomIn(640) = %d, want 1280", got)
	}
	if got := ZoomOut(1280); got != 640 {
		t.Fatalf("ZoomOut(1280) = %d, want 640", got)
	}
}

func TestTickDensityAcrossLadder(t *testing.T) {
	t.Parallel()
	if ticks := TicksFor(64); ticks.IntervalMin != 60 || ticks.ShowMinutes {
		t.Fatalf("low zoom ticks = %+v, want hour-only", ticks)
	}
	if ticks := TicksFor(12800); ticks.IntervalMin != 1 {
		t.Fatalf("high zoom ticks = %+v, want minute-level", ticks)
	}
	// Density must never get coarser while zooming in.
	prev := TicksFor(ZoomLevels[0]).IntervalMin
	for _, level := range ZoomLevels[1:] {
		cur := TicksFor(level).IntervalMin
		if cur > prev {
			t.Fatalf("ticks coarsened at level %d: %d > %d", level, cur, prev)
		}
		prev = cur
	}
}

func TestSplitAtNow(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	items := []models.PlannedQueueItem{
		planned("c", now.Add(time.Hour), 300),
		planned("a", now.Add(-2*time.Hour), 300),
		planned("b", now, 300), // exactly now counts as past
	}

	past, future := Split(items, now)
	if len(past) != 2 || past[0].TaskID != "a" || past[1].TaskID != "b" {
		t.Fatalf("past = %+v", past)
	}
	if len(future) != 1 || future[0].TaskID != "c" {
		t.Fatalf("future = %+v", future)
	}
}

func TestStackAssignsLanesToOverlaps(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	rank := map[string]int{"a": 0, "b": 1, "c": 2}
	items := []models.PlannedQueueItem{
		planned("b", start, 600),
		planned("a", start, 600),               // same start, higher rank: first
		planned("c", start.Add(time.Hour), 60), // past both, back to lane 0
	}

	boxes := Stack(items, func(id string) int { return rank[id] }, 6400, time.UTC)
	if boxes[0].Item.TaskID != "a" || boxes[1].Item.TaskID != "b" {
		t.Fatalf("tie-break order: %s, %s", boxes[0].Item.TaskID, boxes[1].Item.TaskID)
	}
	if boxes[0].Lane != 0 || boxes[1].Lane != 1 {
		t.Fatalf("overlap lanes = %d, %d", boxes[0].Lane, boxes[1].Lane)
	}
	if boxes[2].Lane != 0 {
		t.Fatalf("non-overlapping item lane = %d, want 0", boxes[2].Lane)
	}
	if boxes[0].Z <= boxes[1].Z {
		t.Fatalf("z-order does not favor priority: %d vs %d", boxes[0].Z, boxes[1].Z)
	}
	for _, b := range boxes {
		if b.Z >= ModalZ {
			t.Fatalf("item z %d reaches modal layer", b.Z)
		}
	}
}

func TestStackZOrderFavorsPriorityAcrossStarts(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	rank := map[string]int{"hi": 0, "lo": 5}
	// The low-priority item starts first and overlaps the high-priority one.
	items := []models.PlannedQueueItem{
		planned("lo", start, 3600),
		planned("hi", start.Add(30*time.Minute), 3600),
	}

	boxes := Stack(items, func(id string) int { return rank[id] }, 6400, time.UTC)
	var zHi, zLo int
	for _, b := range boxes {
		switch b.Item.TaskID {
		case "hi":
			zHi = b.Z
		case "lo":
			zLo = b.Z
		}
	}
	if zHi <= zLo {
		t.Fatalf("higher-priority item stacks below: z(hi)=%d z(lo)=%d", zHi, zLo)
	}
}

func TestSnapZoom(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want int
	}{
		{0, 64},
		{-300, 64},
		{64, 64},
		{200, 256},
		{7000, 6400},
		{1000000, 12800},
	}
	for _, tt := range tests {
		if got := SnapZoom(tt.in); got != tt.want {
			t.Fatalf("SnapZoom(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestViewportAutoCenter(t *testing.T) {
	t.Parallel()
	v := NewViewport(800) // margin 80
	v.Offset = 0

	// Marker comfortably inside: no movement.
	if v.AutoCenter(400) {
		t.Fatal("re-centered while marker was mid-viewport")
	}
	// Marker inside the bottom margin: re-center.
	if !v.AutoCenter(760) {
		t.Fatal("did not re-center near the edge")
	}
	if v.Offset != 760-400 {
		t.Fatalf("offset = %v, want %v", v.Offset, 760-400)
	}

	// Manual scroll suppresses centering until re-enter.
	v.ScrolledTo(2000)
	if v.AutoCenter(5000) {
		t.Fatal("auto-center fought a manual scroll")
	}
	v.Reenter()
	if !v.AutoCenter(5000) {
		t.Fatal("re-enter did not restore auto-centering")
	}
}
