package models

import (
	"fmt"
	"time"
)

// TaskType identifies what kind of content a task pushes to the display.
type TaskType string

const (
	TaskText          TaskType = "text"
	TaskImage         TaskType = "image"
	TaskComposedImage TaskType = "composed-image"
)

// TextElement is a single positioned text block inside a composed image.
type TextElement struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	FontSize   float64 `json:"font_size"`
	Rotation   float64 `json:"rotation"`
	FontWeight string  `json:"font_weight"`
	TextAlign  string  `json:"text_align"`
	Color      string  `json:"color"`
	FontFamily string  `json:"font_family"`
}

// TaskPayload carries the content-type specific fields of a task. Only the
// fields relevant to the task's type are populated.
type TaskPayload struct {
	// text
	Title     string `json:"title,omitempty"`
	Message   string `json:"message,omitempty"`
	Signature string `json:"signature,omitempty"`
	Icon      string `json:"icon,omitempty"`

	// image
	ImageData string `json:"image_data,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`

	// composed-image
	BackgroundColor string        `json:"background_color,omitempty"`
	BackgroundImage string        `json:"background_image,omitempty"`
	Texts           []TextElement `json:"texts,omitempty"`

	Link string `json:"link,omitempty"`
}

// AutomationTask is a single automation definition. Exactly one of Schedule,
// FixedAt and IntervalSec is populated; the schedule mode is derived from
// which one it is.
type AutomationTask struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      TaskType    `json:"type"`
	Enabled   bool        `json:"enabled"`
	DeviceIDs []string    `json:"device_ids"`
	Payload   TaskPayload `json:"payload"`

	// DurationSec is how long the task occupies the display, used by the
	// backend when assigning queue slots.
	DurationSec int `json:"duration_sec"`

	Schedule    string `json:"schedule,omitempty"`     // cron-style string
	FixedAt     string `json:"fixed_at,omitempty"`     // ISO-8601 instant, one-shot
	IntervalSec int    `json:"interval_sec,omitempty"` // 1..86400

	// Priority is the backend-assigned numeric rank; nil when the backend
	// has never been told an order for this task.
	Priority *int `json:"priority,omitempty"`

	RunCount   int64      `json:"run_count"`
	ErrorCount int64      `json:"error_count"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ScheduleMode distinguishes the three mutually exclusive schedule fields.
type ScheduleMode string

const (
	ModeCron     ScheduleMode = "cron"
	ModeFixed    ScheduleMode = "fixed"
	ModeInterval ScheduleMode = "interval"
	ModeNone     ScheduleMode = "none"
)

// Mode reports which schedule field is populated.
func (t *AutomationTask) Mode() ScheduleMode {
	switch {
	case t.IntervalSec > 0:
		return ModeInterval
	case t.FixedAt != "":
		return ModeFixed
	case t.Schedule != "":
		return ModeCron
	}
	return ModeNone
}

// NormalizeScheduleFields clears every schedule field except the one the
// given mode owns. The editor calls this before save so a mode switch never
// leaves leftover values from the previous mode on the wire.
func (t *AutomationTask) NormalizeScheduleFields(mode ScheduleMode) {
	switch mode {
	case ModeCron:
		t.FixedAt = ""
		t.IntervalSec = 0
	case ModeFixed:
		t.Schedule = ""
		t.IntervalSec = 0
	case ModeInterval:
		t.Schedule = ""
		t.FixedAt = ""
	}
}

const (
	MinIntervalSec = 1
	MaxIntervalSec = 86400
)

// Validate performs the local checks that must pass before any backend call
// is attempted.
func (t *AutomationTask) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if len(t.DeviceIDs) == 0 {
		return fmt.Errorf("at least one device is required")
	}
	switch t.Type {
	case TaskText, TaskImage, TaskComposedImage:
	default:
		return fmt.Errorf("unknown task type %q", t.Type)
	}
	if t.Type == TaskImage && t.Payload.ImageData == "" {
		return fmt.Errorf("image task has no image data")
	}
	if t.Type == TaskComposedImage && t.Payload.BackgroundColor == "" && len(t.Payload.Texts) == 0 {
		return fmt.Errorf("composed-image task has an empty payload")
	}

	populated := 0
	if t.Schedule != "" {
		populated++
	}
	if t.FixedAt != "" {
		populated++
	}
	if t.IntervalSec != 0 {
		populated++
	}
	if populated != 1 {
		return fmt.Errorf("exactly one of schedule, fixed_at, interval_sec must be set")
	}
	if t.IntervalSec != 0 && (t.IntervalSec < MinIntervalSec || t.IntervalSec > MaxIntervalSec) {
		return fmt.Errorf("interval_sec must be in [%d, %d]", MinIntervalSec, MaxIntervalSec)
	}
	if t.FixedAt != "" {
		if _, err := time.Parse(time.RFC3339, t.FixedAt); err != nil {
			return fmt.Errorf("fixed_at is not a valid instant: %w", err)
		}
	}
	return nil
}
