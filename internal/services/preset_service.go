package services

import (
	"errors"
	"fmt"
	"time"

	"resto_platform_backend/internal/models"
	"resto_platform_backend/internal/repositories"
)

// Custom Errors
var (
	ErrPresetNotFound = errors.New("preset not found")
	ErrPresetSchedule = errors.New("preset schedule is incomplete or inconsistent")
)

// --- Data Transfer Objects (DTOs) ---

// CreatePresetRequest creates a named catalog selection. With CaptureCurrent
// set, the selection is snapshotted from whatever is active right now and any
// explicit ids are ignored.
type CreatePresetRequest struct {
	Name           string     `json:"name" binding:"required"`
	CategoryIDs    []int64    `json:"category_ids"`
	ItemIDs        []int64    `json:"item_ids"`
	CaptureCurrent bool       `json:"capture_current"`
	ScheduleType   string     `json:"schedule_type"`
	StartAt        *time.Time `json:"start_at"`
	EndAt          *time.Time `json:"end_at"`
	StartTime      *string    `json:"start_time"` // HH:MM
	EndTime        *string    `json:"end_time"`   // HH:MM
}

// UpdatePresetRequest edits a preset's selection or schedule.
type UpdatePresetRequest struct {
	Name         *string    `json:"name"`
	CategoryIDs  []int64    `json:"category_ids"`
	ItemIDs      []int64    `json:"item_ids"`
	ScheduleType *string    `json:"schedule_type"`
	StartAt      *time.Time `json:"start_at"`
	EndAt        *time.Time `json:"end_at"`
	StartTime    *string    `json:"start_time"`
	EndTime      *string    `json:"end_time"`
}

// --- PresetService Interface ---
type PresetService interface {
	CreatePreset(p models.Principal, branchID int64, req CreatePresetRequest) (*models.Preset, error)
	GetPreset(p models.Principal, branchID, presetID int64) (*models.Preset, error)
	ListPresets(p models.Principal, branchID int64) ([]models.Preset, error)
	UpdatePreset(p models.Principal, branchID, presetID int64, req UpdatePresetRequest) (*models.Preset, error)
	DeletePreset(p models.Principal, branchID, presetID int64) error

	// ApplyPreset activates the preset: the branch catalog is reduced to the
	// preset's selection and any previously active preset is deactivated.
	ApplyPreset(p models.Principal, branchID, presetID int64) (*models.Preset, error)
	// DeactivatePreset clears the active preset and restores the full
	// catalog to active.
	DeactivatePreset(p models.Principal, branchID int64) error
}

func isValidScheduleType(t string) bool {
	return t == models.ScheduleNone || t == models.ScheduleOneTime || t == models.ScheduleDaily
}

func validateSchedule(scheduleType string, startAt, endAt *time.Time, startTime, endTime *string) error {
	switch scheduleType {
	case models.ScheduleNone:
		return nil
	case models.ScheduleOneTime:
		if startAt == nil {
			return fmt.Errorf("%w: one_time schedules need start_at", ErrPresetSchedule)
		}
		// end_at is optional: without one the preset stays active once applied.
		if endAt != nil && !endAt.After(*startAt) {
			return fmt.Errorf("%w: end_at must be after start_at", ErrPresetSchedule)
		}
	case models.ScheduleDaily:
		if startTime == nil || endTime == nil {
			return fmt.Errorf("%w: daily schedules need start_time and end_time", ErrPresetSchedule)
		}
		for _, v := range []string{*startTime, *endTime} {
			if _, err := time.Parse("15:04", v); err != nil {
				return fmt.Errorf("%w: %q is not HH:MM", ErrPresetSchedule, v)
			}
		}
	default:
		return fmt.Errorf("%w: unknown schedule type %q", ErrPresetSchedule, scheduleType)
	}
	return nil
}

// --- presetService Implementation ---
type presetService struct {
	presetRepo repositories.PresetRepository
	menuRepo   repositories.MenuRepository
	tenantRepo repositories.TenantRepository
}

// NewPresetService creates a new instance of PresetService.
func NewPresetService(
	pr repositories.PresetRepository,
	mr repositories.MenuRepository,
	tr repositories.TenantRepository,
) PresetService {
	return &presetService{presetRepo: pr, menuRepo: mr, tenantRepo: tr}
}

func (s *presetService) CreatePreset(p models.Principal, branchID int64, req CreatePresetRequest) (*models.Preset, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapPresetAccessErr(err)
	}

	scheduleType := req.ScheduleType
	if scheduleType == "" {
		scheduleType = models.ScheduleNone
	}
	if err := validateSchedule(scheduleType, req.StartAt, req.EndAt, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	categoryIDs, itemIDs := req.CategoryIDs, req.ItemIDs
	if req.CaptureCurrent {
		var err error
		categoryIDs, itemIDs, err = s.menuRepo.ActiveCatalogIDs(branchID)
		if err != nil {
			return nil, fmt.Errorf("failed to capture active catalog: %w", err)
		}
	}
	if len(categoryIDs) == 0 && len(itemIDs) == 0 {
		return nil, fmt.Errorf("%w: preset selection is empty", ErrValidation)
	}

	preset := &models.Preset{
		BranchID:     branchID,
		Name:         req.Name,
		CategoryIDs:  categoryIDs,
		ItemIDs:      itemIDs,
		ScheduleType: scheduleType,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	}
	if _, err := s.presetRepo.CreatePreset(preset); err != nil {
		return nil, fmt.Errorf("failed to create preset: %w", err)
	}
	return preset, nil
}

func (s *presetService) GetPreset(p models.Principal, branchID, presetID int64) (*models.Preset, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapPresetAccessErr(err)
	}
	preset, err := s.presetRepo.GetPreset(presetID, branchID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrPresetNotFound
		}
		return nil, fmt.Errorf("failed to get preset: %w", err)
	}
	return preset, nil
}

func (s *presetService) ListPresets(p models.Principal, branchID int64) ([]models.Preset, error) {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return nil, mapPresetAccessErr(err)
	}
	presets, err := s.presetRepo.ListPresets(branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	return presets, nil
}

func (s *presetService) UpdatePreset(p models.Principal, branchID, presetID int64, req UpdatePresetRequest) (*models.Preset, error) {
	preset, err := s.GetPreset(p, branchID, presetID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		preset.Name = *req.Name
	}
	if req.CategoryIDs != nil {
		preset.CategoryIDs = req.CategoryIDs
	}
	if req.ItemIDs != nil {
		preset.ItemIDs = req.ItemIDs
	}
	if req.ScheduleType != nil {
		preset.ScheduleType = *req.ScheduleType
	}
	if req.StartAt != nil {
		preset.StartAt = req.StartAt
	}
	if req.EndAt != nil {
		preset.EndAt = req.EndAt
	}
	if req.StartTime != nil {
		preset.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		preset.EndTime = req.EndTime
	}

	if !isValidScheduleType(preset.ScheduleType) {
		return nil, fmt.Errorf("%w: unknown schedule type %q", ErrPresetSchedule, preset.ScheduleType)
	}
	if err := validateSchedule(preset.ScheduleType, preset.StartAt, preset.EndAt, preset.StartTime, preset.EndTime); err != nil {
		return nil, err
	}
	if len(preset.CategoryIDs) == 0 && len(preset.ItemIDs) == 0 {
		return nil, fmt.Errorf("%w: preset selection is empty", ErrValidation)
	}

	if err := s.presetRepo.UpdatePreset(preset); err != nil {
		return nil, fmt.Errorf("failed to update preset: %w", err)
	}
	return preset, nil
}

func (s *presetService) DeletePreset(p models.Principal, branchID, presetID int64) error {
	preset, err := s.GetPreset(p, branchID, presetID)
	if err != nil {
		return err
	}
	if preset.IsActive {
		// Deleting the active preset restores the full catalog first.
		if err := s.DeactivatePreset(p, branchID); err != nil {
			return err
		}
	}
	if err := s.presetRepo.DeletePreset(presetID, branchID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrPresetNotFound
		}
		return fmt.Errorf("failed to delete preset: %w", err)
	}
	return nil
}

func (s *presetService) ApplyPreset(p models.Principal, branchID, presetID int64) (*models.Preset, error) {
	preset, err := s.GetPreset(p, branchID, presetID)
	if err != nil {
		return nil, err
	}
	if err := s.applyLocked(branchID, preset); err != nil {
		return nil, err
	}
	preset.IsActive = true
	return preset, nil
}

// applyLocked performs the catalog swap inside the activation transaction.
func (s *presetService) applyLocked(branchID int64, preset *models.Preset) error {
	err := s.presetRepo.SetActive(branchID, preset.ID, func(tx repositories.SQLExecutor) error {
		if err := s.menuRepo.DeactivateCatalog(tx, branchID); err != nil {
			return err
		}
		if len(preset.CategoryIDs) > 0 {
			if err := s.menuRepo.SetCategoriesActive(tx, branchID, preset.CategoryIDs, true); err != nil {
				return err
			}
		}
		if len(preset.ItemIDs) > 0 {
			if err := s.menuRepo.SetItemsActive(tx, branchID, preset.ItemIDs, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrPresetNotFound
		}
		return fmt.Errorf("failed to apply preset %d: %w", preset.ID, err)
	}
	return nil
}

func (s *presetService) DeactivatePreset(p models.Principal, branchID int64) error {
	if _, err := requireBranchAccess(s.tenantRepo, p, branchID); err != nil {
		return mapPresetAccessErr(err)
	}
	return s.deactivate(branchID)
}

// deactivate clears whatever preset is active and reopens the full catalog.
func (s *presetService) deactivate(branchID int64) error {
	err := s.presetRepo.SetActive(branchID, 0, func(tx repositories.SQLExecutor) error {
		return s.menuRepo.ActivateCatalog(tx, branchID)
	})
	if err != nil {
		return fmt.Errorf("failed to deactivate preset for branch %d: %w", branchID, err)
	}
	return nil
}

func mapPresetAccessErr(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrPresetNotFound
	}
	return err
}
