package services

import (
	"testing"
	"time"

	"resto_platform_backend/internal/models"
)

func TestPresetWindowOpenOneTime(t *testing.T) {
	start := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)
	end := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	preset := &models.Preset{ScheduleType: models.ScheduleOneTime, StartAt: &start, EndAt: &end}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before window", start.Add(-time.Minute), false},
		{"at start", start, true},
		{"inside", start.Add(time.Hour), true},
		{"at end", end, false},
		{"after window", end.Add(time.Minute), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PresetWindowOpen(preset, tc.now, time.UTC); got != tc.want {
				t.Errorf("open = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPresetWindowOpenOneTimeWithoutEnd(t *testing.T) {
	start := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)
	preset := &models.Preset{ScheduleType: models.ScheduleOneTime, StartAt: &start}

	if PresetWindowOpen(preset, start.Add(-time.Minute), time.UTC) {
		t.Error("window open before start")
	}
	if !PresetWindowOpen(preset, start, time.UTC) {
		t.Error("window closed at start")
	}
	if !PresetWindowOpen(preset, start.AddDate(0, 1, 0), time.UTC) {
		t.Error("open-ended window closed a month after start")
	}
}

func TestPresetWindowOpenDaily(t *testing.T) {
	from, until := "11:00", "14:00"
	preset := &models.Preset{ScheduleType: models.ScheduleDaily, StartTime: &from, EndTime: &until}
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before", day.Add(10*time.Hour + 59*time.Minute), false},
		{"at open", day.Add(11 * time.Hour), true},
		{"midday", day.Add(12 * time.Hour), true},
		{"at close", day.Add(14 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PresetWindowOpen(preset, tc.now, time.UTC); got != tc.want {
				t.Errorf("open = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPresetWindowOpenDailyWrapsMidnight(t *testing.T) {
	from, until := "22:00", "02:00"
	preset := &models.Preset{ScheduleType: models.ScheduleDaily, StartTime: &from, EndTime: &until}
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"evening before", day.Add(21*time.Hour + 59*time.Minute), false},
		{"late evening", day.Add(23 * time.Hour), true},
		{"across midnight", day.Add(25 * time.Hour), true},
		{"small hours edge", day.Add(26 * time.Hour), false},
		{"next morning", day.Add(33 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PresetWindowOpen(preset, tc.now, time.UTC); got != tc.want {
				t.Errorf("open = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPresetWindowOpenUsesBranchTimezone(t *testing.T) {
	from, until := "11:00", "14:00"
	preset := &models.Preset{ScheduleType: models.ScheduleDaily, StartTime: &from, EndTime: &until}
	montreal, err := time.LoadLocation("America/Montreal")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 16:00 UTC on this date is 12:00 in Montreal (UTC-4, DST).
	noonish := time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC)
	if !PresetWindowOpen(preset, noonish, montreal) {
		t.Error("window should be open at local noon")
	}
	if PresetWindowOpen(preset, noonish, time.UTC) {
		t.Error("window should be closed at 16:00 local")
	}
}

func TestSchedulerTickActivatesAndDeactivates(t *testing.T) {
	presetRepo, menuRepo, tenantRepo, svc := newPresetFixture()
	p := managerPrincipal(1)

	from, until := "11:00", "14:00"
	preset, err := svc.CreatePreset(p, 1, CreatePresetRequest{
		Name:         "Lunch window",
		CategoryIDs:  []int64{1},
		ItemIDs:      []int64{100},
		ScheduleType: models.ScheduleDaily,
		StartTime:    &from,
		EndTime:      &until,
	})
	if err != nil {
		t.Fatalf("CreatePreset: %v", err)
	}

	scheduler, err := NewPresetScheduler(svc, tenantRepo, time.Minute)
	if err != nil {
		t.Fatalf("NewPresetScheduler: %v", err)
	}

	// Branch timezone is America/Montreal: 16:00 UTC falls inside the
	// 11:00-14:00 local window in September.
	inside := time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC)
	if err := scheduler.Tick(inside); err != nil {
		t.Fatalf("Tick inside window: %v", err)
	}
	if !presetRepo.presets[preset.ID].IsActive {
		t.Fatal("preset not activated inside its window")
	}
	if menuRepo.categories[2].IsActive {
		t.Error("catalog not reduced by the scheduled preset")
	}

	// Ticking again inside the window must not flap.
	if err := scheduler.Tick(inside.Add(time.Minute)); err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	if !presetRepo.presets[preset.ID].IsActive {
		t.Error("preset deactivated by a repeat tick inside the window")
	}

	outside := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC) // 15:00 local
	if err := scheduler.Tick(outside); err != nil {
		t.Fatalf("Tick outside window: %v", err)
	}
	if presetRepo.presets[preset.ID].IsActive {
		t.Error("preset still active after its window closed")
	}
	if !menuRepo.categories[2].IsActive || !menuRepo.items[101].IsActive {
		t.Error("full catalog not restored after the window closed")
	}
}

func TestSchedulerTickActivatesOpenEndedOneTime(t *testing.T) {
	presetRepo, _, tenantRepo, svc := newPresetFixture()
	p := managerPrincipal(1)

	start := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)
	preset, err := svc.CreatePreset(p, 1, CreatePresetRequest{
		Name:         "Renovation menu",
		CategoryIDs:  []int64{1},
		ItemIDs:      []int64{100},
		ScheduleType: models.ScheduleOneTime,
		StartAt:      &start,
	})
	if err != nil {
		t.Fatalf("CreatePreset without end_at: %v", err)
	}

	scheduler, err := NewPresetScheduler(svc, tenantRepo, time.Minute)
	if err != nil {
		t.Fatalf("NewPresetScheduler: %v", err)
	}

	if err := scheduler.Tick(start.Add(-time.Hour)); err != nil {
		t.Fatalf("Tick before start: %v", err)
	}
	if presetRepo.presets[preset.ID].IsActive {
		t.Fatal("preset activated before its start")
	}

	if err := scheduler.Tick(start.Add(time.Minute)); err != nil {
		t.Fatalf("Tick after start: %v", err)
	}
	if !presetRepo.presets[preset.ID].IsActive {
		t.Fatal("open-ended preset not activated at its start")
	}

	// Without an end the preset stays active however far time advances.
	if err := scheduler.Tick(start.AddDate(0, 0, 7)); err != nil {
		t.Fatalf("Tick a week later: %v", err)
	}
	if !presetRepo.presets[preset.ID].IsActive {
		t.Error("open-ended preset deactivated without an end")
	}
}

func TestNewPresetSchedulerRejectsForeignImplementations(t *testing.T) {
	_, _, tenantRepo, _ := newPresetFixture()

	if _, err := NewPresetScheduler(nil, tenantRepo, time.Minute); err == nil {
		t.Error("expected an error for a nil service")
	}
}
