package services

import (
	"context"
	"fmt"
	"time"

	"resto_platform_backend/internal/models"
	"resto_platform_backend/internal/repositories"
	"resto_platform_backend/pkg/utils"
)

// PresetScheduler flips scheduled presets on and off. It polls rather than
// arming timers so a restart needs no recovery pass: every tick re-derives
// the desired state from the schedules alone.
type PresetScheduler struct {
	presets    *presetService
	tenantRepo repositories.TenantRepository
	interval   time.Duration
}

// NewPresetScheduler builds a scheduler around the preset service.
func NewPresetScheduler(ps PresetService, tr repositories.TenantRepository, interval time.Duration) (*PresetScheduler, error) {
	impl, ok := ps.(*presetService)
	if !ok {
		return nil, fmt.Errorf("unsupported PresetService implementation %T", ps)
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &PresetScheduler{presets: impl, tenantRepo: tr, interval: interval}, nil
}

// Run blocks until ctx is cancelled, evaluating schedules once per interval.
func (ps *PresetScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(ps.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := ps.Tick(now); err != nil {
				utils.LogError(err, "Preset schedule evaluation failed")
			}
		}
	}
}

// Tick evaluates every scheduled preset once against now.
func (ps *PresetScheduler) Tick(now time.Time) error {
	presets, err := ps.presets.presetRepo.ListScheduled()
	if err != nil {
		return fmt.Errorf("failed to list scheduled presets: %w", err)
	}

	zones := map[int64]*time.Location{}
	for i := range presets {
		preset := &presets[i]
		loc, ok := zones[preset.BranchID]
		if !ok {
			loc = ps.branchLocation(preset.BranchID)
			zones[preset.BranchID] = loc
		}

		open := PresetWindowOpen(preset, now, loc)
		switch {
		case open && !preset.IsActive:
			if err := ps.presets.applyLocked(preset.BranchID, preset); err != nil {
				utils.LogError(err, fmt.Sprintf("Failed to activate scheduled preset %d", preset.ID))
			}
		case !open && preset.IsActive:
			// Window closed with no successor: the full catalog comes back.
			if err := ps.presets.deactivate(preset.BranchID); err != nil {
				utils.LogError(err, fmt.Sprintf("Failed to deactivate scheduled preset %d", preset.ID))
			}
		}
	}
	return nil
}

func (ps *PresetScheduler) branchLocation(branchID int64) *time.Location {
	branch, err := ps.tenantRepo.GetBranchByID(branchID)
	if err != nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(branch.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PresetWindowOpen reports whether the preset's schedule window contains now.
// Daily windows are wall-clock in the branch timezone and may wrap midnight
// (22:00-02:00 covers late evening plus the small hours).
func PresetWindowOpen(preset *models.Preset, now time.Time, loc *time.Location) bool {
	switch preset.ScheduleType {
	case models.ScheduleOneTime:
		if preset.StartAt == nil {
			return false
		}
		if now.Before(*preset.StartAt) {
			return false
		}
		// Nil EndAt keeps the window open indefinitely.
		return preset.EndAt == nil || now.Before(*preset.EndAt)
	case models.ScheduleDaily:
		if preset.StartTime == nil || preset.EndTime == nil {
			return false
		}
		local := now.In(loc)
		minutes := local.Hour()*60 + local.Minute()
		start, err := parseClockMinutes(*preset.StartTime)
		if err != nil {
			return false
		}
		end, err := parseClockMinutes(*preset.EndTime)
		if err != nil {
			return false
		}
		if start <= end {
			return minutes >= start && minutes < end
		}
		return minutes >= start || minutes < end
	default:
		return false
	}
}

func parseClockMinutes(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
