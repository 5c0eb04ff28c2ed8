package services

import (
	"errors"
	"testing"
	"time"

	"resto_platform_backend/internal/models"
)

func newPresetFixture() (*stubPresetRepo, *stubMenuRepo, *stubTenantRepo, PresetService) {
	presetRepo := newStubPresetRepo()
	menuRepo := newStubMenuRepo()
	tenantRepo := newStubTenantRepo()
	tenantRepo.addBranch(testBranch(1))

	lunch := models.MenuCategory{ID: 1, BranchID: 1, Name: "Lunch", IsActive: true}
	dinner := models.MenuCategory{ID: 2, BranchID: 1, Name: "Dinner", IsActive: true}
	menuRepo.categories[1] = &lunch
	menuRepo.categories[2] = &dinner
	menuRepo.addItem(models.MenuItem{ID: 100, BranchID: 1, CategoryID: 1, Name: "Poutine", Price: dec("12.50"), IsActive: true})
	menuRepo.addItem(models.MenuItem{ID: 101, BranchID: 1, CategoryID: 2, Name: "Smoked Meat", Price: dec("25.00"), IsActive: true})

	svc := NewPresetService(presetRepo, menuRepo, tenantRepo)
	return presetRepo, menuRepo, tenantRepo, svc
}

func TestCreatePresetCapturesActiveCatalog(t *testing.T) {
	_, menuRepo, _, svc := newPresetFixture()
	menuRepo.items[101].IsActive = false

	preset, err := svc.CreatePreset(managerPrincipal(1), 1, CreatePresetRequest{
		Name:           "Lunch rush",
		CaptureCurrent: true,
	})
	if err != nil {
		t.Fatalf("CreatePreset: %v", err)
	}
	if len(preset.CategoryIDs) != 2 {
		t.Errorf("captured categories = %v, want both", preset.CategoryIDs)
	}
	if len(preset.ItemIDs) != 1 || preset.ItemIDs[0] != 100 {
		t.Errorf("captured items = %v, want only the active item", preset.ItemIDs)
	}
	if preset.ScheduleType != models.ScheduleNone {
		t.Errorf("schedule type = %q, want none by default", preset.ScheduleType)
	}
}

func TestCreatePresetRejectsEmptySelection(t *testing.T) {
	_, _, _, svc := newPresetFixture()

	_, err := svc.CreatePreset(managerPrincipal(1), 1, CreatePresetRequest{Name: "Empty"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestValidateSchedule(t *testing.T) {
	start := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	from, until := "11:00", "14:00"
	bad := "25:99"

	cases := []struct {
		name    string
		typ     string
		startAt *time.Time
		endAt   *time.Time
		startT  *string
		endT    *string
		wantErr bool
	}{
		{"none", models.ScheduleNone, nil, nil, nil, nil, false},
		{"one_time valid", models.ScheduleOneTime, &start, &end, nil, nil, false},
		{"one_time open ended", models.ScheduleOneTime, &start, nil, nil, nil, false},
		{"one_time missing start", models.ScheduleOneTime, nil, &end, nil, nil, true},
		{"one_time inverted", models.ScheduleOneTime, &end, &start, nil, nil, true},
		{"daily valid", models.ScheduleDaily, nil, nil, &from, &until, false},
		{"daily missing end", models.ScheduleDaily, nil, nil, &from, nil, true},
		{"daily bad clock", models.ScheduleDaily, nil, nil, &from, &bad, true},
		{"unknown type", "hourly", nil, nil, nil, nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateSchedule(tc.typ, tc.startAt, tc.endAt, tc.startT, tc.endT)
			if tc.wantErr && !errors.Is(err, ErrPresetSchedule) {
				t.Errorf("err = %v, want ErrPresetSchedule", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
		})
	}
}

func TestApplyPresetReducesCatalog(t *testing.T) {
	_, menuRepo, _, svc := newPresetFixture()
	p := managerPrincipal(1)

	preset, err := svc.CreatePreset(p, 1, CreatePresetRequest{
		Name:        "Lunch only",
		CategoryIDs: []int64{1},
		ItemIDs:     []int64{100},
	})
	if err != nil {
		t.Fatalf("CreatePreset: %v", err)
	}

	applied, err := svc.ApplyPreset(p, 1, preset.ID)
	if err != nil {
		t.Fatalf("ApplyPreset: %v", err)
	}
	if !applied.IsActive {
		t.Error("applied preset not marked active")
	}
	if !menuRepo.categories[1].IsActive || menuRepo.categories[2].IsActive {
		t.Errorf("categories active = %v/%v, want only Lunch", menuRepo.categories[1].IsActive, menuRepo.categories[2].IsActive)
	}
	if !menuRepo.items[100].IsActive || menuRepo.items[101].IsActive {
		t.Errorf("items active = %v/%v, want only the selected item", menuRepo.items[100].IsActive, menuRepo.items[101].IsActive)
	}
}

func TestApplyPresetDeactivatesPrevious(t *testing.T) {
	presetRepo, _, _, svc := newPresetFixture()
	p := managerPrincipal(1)

	first, err := svc.CreatePreset(p, 1, CreatePresetRequest{Name: "A", CategoryIDs: []int64{1}})
	if err != nil {
		t.Fatalf("CreatePreset A: %v", err)
	}
	second, err := svc.CreatePreset(p, 1, CreatePresetRequest{Name: "B", CategoryIDs: []int64{2}})
	if err != nil {
		t.Fatalf("CreatePreset B: %v", err)
	}

	if _, err := svc.ApplyPreset(p, 1, first.ID); err != nil {
		t.Fatalf("apply first: %v", err)
	}
	if _, err := svc.ApplyPreset(p, 1, second.ID); err != nil {
		t.Fatalf("apply second: %v", err)
	}

	if presetRepo.presets[first.ID].IsActive {
		t.Error("first preset still active after applying the second")
	}
	if !presetRepo.presets[second.ID].IsActive {
		t.Error("second preset not active")
	}
}

func TestDeactivatePresetRestoresFullCatalog(t *testing.T) {
	presetRepo, menuRepo, _, svc := newPresetFixture()
	p := managerPrincipal(1)

	preset, err := svc.CreatePreset(p, 1, CreatePresetRequest{Name: "Lunch only", CategoryIDs: []int64{1}, ItemIDs: []int64{100}})
	if err != nil {
		t.Fatalf("CreatePreset: %v", err)
	}
	if _, err := svc.ApplyPreset(p, 1, preset.ID); err != nil {
		t.Fatalf("ApplyPreset: %v", err)
	}

	if err := svc.DeactivatePreset(p, 1); err != nil {
		t.Fatalf("DeactivatePreset: %v", err)
	}
	if presetRepo.presets[preset.ID].IsActive {
		t.Error("preset still active after deactivation")
	}
	if !menuRepo.categories[2].IsActive || !menuRepo.items[101].IsActive {
		t.Error("full catalog not restored after deactivation")
	}
}

func TestDeleteActivePresetRestoresCatalogFirst(t *testing.T) {
	presetRepo, menuRepo, _, svc := newPresetFixture()
	p := managerPrincipal(1)

	preset, err := svc.CreatePreset(p, 1, CreatePresetRequest{Name: "Lunch only", CategoryIDs: []int64{1}})
	if err != nil {
		t.Fatalf("CreatePreset: %v", err)
	}
	if _, err := svc.ApplyPreset(p, 1, preset.ID); err != nil {
		t.Fatalf("ApplyPreset: %v", err)
	}

	if err := svc.DeletePreset(p, 1, preset.ID); err != nil {
		t.Fatalf("DeletePreset: %v", err)
	}
	if _, ok := presetRepo.presets[preset.ID]; ok {
		t.Error("preset row still present after deletion")
	}
	if !menuRepo.categories[2].IsActive {
		t.Error("catalog left reduced after deleting the active preset")
	}
}
