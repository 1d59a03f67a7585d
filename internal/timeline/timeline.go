// Package timeline projects planned queue items onto a zoomable 24-hour
// agenda and a chronological table split at "now". It is pure geometry:
// callers own scrolling and rendering.
package timeline

import (
	"sort"
	"time"

	"dotflow/internal/models"
)

// ZoomLevels is the preset ladder for hourHeightPx. Zooming only moves
// between these steps so tick density stays predictable.
var ZoomLevels = []int{64, 128, 256, 640, 1280, 3200, 6400, 12800}

// ModalZ is the overlay z-order floor. Agenda items always stack below it.
const ModalZ = 1000

// ZoomIn returns the next larger preset, clamped at the top of the ladder.
func ZoomIn(hourHeightPx int) int {
	for _, level := range ZoomLevels {
		if level > hourHeightPx {
			return level
		}
	}
	return ZoomLevels[len(ZoomLevels)-1]
}

// SnapZoom maps an arbitrary pixel height onto the nearest ladder preset.
// All geometry is computed from preset values only.
func SnapZoom(hourHeightPx int) int {
	best := ZoomLevels[0]
	for _, level := range ZoomLevels[1:] {
		if absInt(level-hourHeightPx) < absInt(best-hourHeightPx) {
			best = level
		}
	}
	return best
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ZoomOut returns the next smaller preset, clamped at the bottom.
func ZoomOut(hourHeightPx int) int {
	for i := len(ZoomLevels) - 1; i >= 0; i-- {
		if ZoomLevels[i] < hourHeightPx {
			return ZoomLevels[i]
		}
	}
	return ZoomLevels[0]
}

// YForTime maps an instant to its vertical pixel offset within the day:
// y = minuteOfDay * (hourHeightPx / 60).
func YForTime(t time.Time, hourHeightPx int, loc *time.Location) float64 {
	t = t.In(loc)
	minuteOfDay := float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60
	return minuteOfDay * float64(hourHeightPx) / 60
}

// Box is the rendered geometry of one agenda item.
type Box struct {
	Item   models.PlannedQueueItem `json:"item"`
	Top    float64                 `json:"top"`
	Height float64                 `json:"height"`
	Lane   int                     `json:"lane"`
	Z      int                     `json:"z"`
}

// ItemBox computes the vertical extent of a single item.
func ItemBox(item models.PlannedQueueItem, hourHeightPx int, loc *time.Location) Box {
	top := YForTime(item.ScheduledAt, hourHeightPx, loc)
	minutes := item.ScheduledEndAt.Sub(item.ScheduledAt).Minutes()
	if minutes <= 0 {
		minutes = float64(item.DurationSec) / 60
	}
	return Box{
		Item:   item,
		Top:    top,
		Height: minutes * float64(hourHeightPx) / 60,
	}
}

// Ticks describes gridline density for a zoom level.
type Ticks struct {
	IntervalMin int  `json:"interval_min"`
	LabelEvery  int  `json:"label_every"` // label every Nth tick
	ShowMinutes bool `json:"show_minutes"`
}

// TicksFor picks gridline density from pixels-per-minute thresholds so the
// on-screen spacing stays roughly constant across the ladder.
func TicksFor(hourHeightPx int) Ticks {
	pxPerMin := float64(hourHeightPx) / 60
	switch {
	case pxPerMin < 2:
		return Ticks{IntervalMin: 60, LabelEvery: 2, ShowMinutes: false}
	case pxPerMin < 8:
		return Ticks{IntervalMin: 30, LabelEvery: 2, ShowMinutes: false}
	case pxPerMin < 30:
		return Ticks{IntervalMin: 15, LabelEvery: 4, ShowMinutes: true}
	case pxPerMin < 120:
		return Ticks{IntervalMin: 5, LabelEvery: 6, ShowMinutes: true}
	default:
		return Ticks{IntervalMin: 1, LabelEvery: 5, ShowMinutes: true}
	}
}

// Split partitions items at "now" for the chronological table. Past holds
// items whose scheduled time is at or before now, newest last.
func Split(items []models.PlannedQueueItem, now time.Time) (past, future []models.PlannedQueueItem) {
	sorted := append([]models.PlannedQueueItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ScheduledAt.Before(sorted[j].ScheduledAt)
	})
	for _, item := range sorted {
		if item.ScheduledAt.After(now) {
			future = append(future, item)
		} else {
			past = append(past, item)
		}
	}
	return past, future
}

// Stack lays out one day's items as agenda boxes. Items sort by ascending
// start time, ties broken by priority rank; overlapping items go to the
// first free lane, and higher-priority items get the higher z-order while
// staying below ModalZ.
func Stack(items []models.PlannedQueueItem, rank func(taskID string) int, hourHeightPx int, loc *time.Location) []Box {
	sorted := append([]models.PlannedQueueItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ScheduledAt.Equal(sorted[j].ScheduledAt) {
			return sorted[i].ScheduledAt.Before(sorted[j].ScheduledAt)
		}
		return rank(sorted[i].TaskID) < rank(sorted[j].TaskID)
	})

	boxes := make([]Box, 0, len(sorted))
	var laneEnds []float64 // bottom y currently occupied per lane
	for _, item := range sorted {
		box := ItemBox(item, hourHeightPx, loc)
		lane := -1
		for l, end := range laneEnds {
			if box.Top >= end {
				lane = l
				break
			}
		}
		if lane < 0 {
			lane = len(laneEnds)
			laneEnds = append(laneEnds, 0)
		}
		laneEnds[lane] = box.Top + box.Height
		box.Lane = lane
		box.Z = ModalZ - 1 - rank(item.TaskID) // higher priority above, regardless of start
		if box.Z < 0 {
			box.Z = 0
		}
		boxes = append(boxes, box)
	}
	return boxes
}

// Viewport tracks auto-center state for one scrollable view. The marker is
// re-centered only when it drifts near the viewport edge; any manual scroll
// suppresses centering until the view is re-entered.
type Viewport struct {
	Height       float64
	EdgeMargin   float64 // distance from the edge that triggers re-centering
	Offset       float64 // current scroll offset (top of viewport)
	manualScroll bool
}

// NewViewport creates a viewport with the edge margin defaulted to a tenth
// of the height.
func NewViewport(height float64) *Viewport {
	return &Viewport{Height: height, EdgeMargin: height / 10}
}

// ScrolledTo records a user-driven scroll, which disables auto-centering.
func (v *Viewport) ScrolledTo(offset float64) {
	v.Offset = offset
	v.manualScroll = true
}

// Reenter clears the manual-scroll flag, e.g. on tab switch back to the view.
func (v *Viewport) Reenter() {
	v.manualScroll = false
}

// AutoCenter re-centers the viewport on markerY when the marker is within
// the edge margin (or outside the viewport entirely). Returns true when the
// offset changed.
func (v *Viewport) AutoCenter(markerY float64) bool {
	if v.manualScroll {
		return false
	}
	top := v.Offset + v.EdgeMargin
	bottom := v.Offset + v.Height - v.EdgeMargin
	if markerY >= top && markerY <= bottom {
		return false
	}
	offset := markerY - v.Height/2
	if offset < 0 {
		offset = 0
	}
	if offset == v.Offset {
		return false
	}
	v.Offset = offset
	return true
}
