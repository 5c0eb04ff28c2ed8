package models

import "time"

// Preset schedule types.
const (
	ScheduleNone    = "none"
	ScheduleOneTime = "one_time"
	ScheduleDaily   = "daily"
)

// Preset is a named selection of menu categories and items, either captured
// from the catalog or supplied explicitly. At most one preset is active per
// branch at any time; applying one deactivates the previous.
type Preset struct {
	ID           int64     `json:"id"`
	BranchID     int64     `json:"branch_id" db:"branch_id"`
	Name         string    `json:"name" db:"name"`
	CategoryIDs  []int64   `json:"category_ids" db:"category_ids"`
	ItemIDs      []int64   `json:"item_ids" db:"item_ids"`
	ScheduleType string    `json:"schedule_type" db:"schedule_type"`
	// One-time window, absolute timestamps.
	StartAt *time.Time `json:"start_at,omitempty" db:"start_at"`
	EndAt   *time.Time `json:"end_at,omitempty" db:"end_at"`
	// Daily-recurring window, wall clock HH:MM in the branch timezone.
	StartTime *string   `json:"start_time,omitempty" db:"start_time"`
	EndTime   *string   `json:"end_time,omitempty" db:"end_time"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
