package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"resto_platform_backend/internal/models"

	"github.com/lib/pq"
)

// PresetRepository defines the interface for catalog preset persistence.
type PresetRepository interface {
	CreatePreset(preset *models.Preset) (int64, error)
	GetPreset(presetID, branchID int64) (*models.Preset, error)
	ListPresets(branchID int64) ([]models.Preset, error)
	UpdatePreset(preset *models.Preset) error
	DeletePreset(presetID, branchID int64) error

	GetActivePreset(branchID int64) (*models.Preset, error)
	// SetActive flips the active preset inside one transaction: whatever was
	// active is deactivated first, then presetID (if non-zero) is activated,
	// and the catalog toggles run against the same tx.
	SetActive(branchID int64, presetID int64, apply func(executor SQLExecutor) error) error

	// ListScheduled returns every preset of every branch that carries a
	// schedule; the scheduler evaluates windows in process.
	ListScheduled() ([]models.Preset, error)
}

type presetRepository struct {
	db *sql.DB
}

// NewPresetRepository creates a new instance of PresetRepository.
func NewPresetRepository(db *sql.DB) PresetRepository {
	return &presetRepository{db: db}
}

const presetColumns = `id, branch_id, name, category_ids, item_ids, schedule_type,
	start_at, end_at, start_time, end_time, is_active, created_at, updated_at`

func scanPreset(s interface{ Scan(...interface{}) error }) (*models.Preset, error) {
	p := &models.Preset{}
	var categoryIDs, itemIDs pq.Int64Array
	err := s.Scan(
		&p.ID, &p.BranchID, &p.Name, &categoryIDs, &itemIDs, &p.ScheduleType,
		&p.StartAt, &p.EndAt, &p.StartTime, &p.EndTime, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning preset: %v", ErrDatabaseError, err)
	}
	p.CategoryIDs = []int64(categoryIDs)
	p.ItemIDs = []int64(itemIDs)
	return p, nil
}

func (r *presetRepository) CreatePreset(preset *models.Preset) (int64, error) {
	query := `INSERT INTO presets
	            (branch_id, name, category_ids, item_ids, schedule_type,
	             start_at, end_at, start_time, end_time, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11)
	          RETURNING id`
	now := time.Now()
	err := r.db.QueryRow(query,
		preset.BranchID, preset.Name, pq.Array(preset.CategoryIDs), pq.Array(preset.ItemIDs),
		preset.ScheduleType, preset.StartAt, preset.EndAt, preset.StartTime, preset.EndTime,
		now, now,
	).Scan(&preset.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: creating preset: %v", ErrDatabaseError, err)
	}
	preset.CreatedAt = now
	preset.UpdatedAt = now
	return preset.ID, nil
}

func (r *presetRepository) GetPreset(presetID, branchID int64) (*models.Preset, error) {
	query := `SELECT ` + presetColumns + ` FROM presets WHERE id = $1 AND branch_id = $2`
	return scanPreset(r.db.QueryRow(query, presetID, branchID))
}

func (r *presetRepository) ListPresets(branchID int64) ([]models.Preset, error) {
	query := `SELECT ` + presetColumns + ` FROM presets WHERE branch_id = $1 ORDER BY id`
	return r.queryPresets(query, branchID)
}

func (r *presetRepository) ListScheduled() ([]models.Preset, error) {
	query := `SELECT ` + presetColumns + ` FROM presets WHERE schedule_type <> 'none' ORDER BY branch_id, id`
	return r.queryPresets(query)
}

func (r *presetRepository) queryPresets(query string, args ...interface{}) ([]models.Preset, error) {
	presets := []models.Preset{}
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying presets: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Preset
		var categoryIDs, itemIDs pq.Int64Array
		err := rows.Scan(
			&p.ID, &p.BranchID, &p.Name, &categoryIDs, &itemIDs, &p.ScheduleType,
			&p.StartAt, &p.EndAt, &p.StartTime, &p.EndTime, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning preset: %v", ErrDatabaseError, err)
		}
		p.CategoryIDs = []int64(categoryIDs)
		p.ItemIDs = []int64(itemIDs)
		presets = append(presets, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating preset rows: %v", ErrDatabaseError, err)
	}
	return presets, nil
}

func (r *presetRepository) UpdatePreset(preset *models.Preset) error {
	query := `UPDATE presets
	          SET name = $1, category_ids = $2, item_ids = $3, schedule_type = $4,
	              start_at = $5, end_at = $6, start_time = $7, end_time = $8, updated_at = $9
	          WHERE id = $10 AND branch_id = $11`
	result, err := r.db.Exec(query,
		preset.Name, pq.Array(preset.CategoryIDs), pq.Array(preset.ItemIDs), preset.ScheduleType,
		preset.StartAt, preset.EndAt, preset.StartTime, preset.EndTime, time.Now(),
		preset.ID, preset.BranchID,
	)
	if err != nil {
		return fmt.Errorf("%w: updating preset %d: %v", ErrDatabaseError, preset.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for preset update %d: %v", ErrDatabaseError, preset.ID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *presetRepository) DeletePreset(presetID, branchID int64) error {
	query := `DELETE FROM presets WHERE id = $1 AND branch_id = $2`
	result, err := r.db.Exec(query, presetID, branchID)
	if err != nil {
		return fmt.Errorf("%w: deleting preset %d: %v", ErrDatabaseError, presetID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for preset deletion %d: %v", ErrDatabaseError, presetID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *presetRepository) GetActivePreset(branchID int64) (*models.Preset, error) {
	query := `SELECT ` + presetColumns + ` FROM presets WHERE branch_id = $1 AND is_active = TRUE`
	return scanPreset(r.db.QueryRow(query, branchID))
}

func (r *presetRepository) SetActive(branchID int64, presetID int64, apply func(executor SQLExecutor) error) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: starting preset activation transaction: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.Exec(`UPDATE presets SET is_active = FALSE, updated_at = $1 WHERE branch_id = $2 AND is_active = TRUE`, now, branchID); err != nil {
		return fmt.Errorf("%w: deactivating presets for branch %d: %v", ErrDatabaseError, branchID, err)
	}

	if presetID != 0 {
		result, err := tx.Exec(`UPDATE presets SET is_active = TRUE, updated_at = $1 WHERE id = $2 AND branch_id = $3`, now, presetID, branchID)
		if err != nil {
			return fmt.Errorf("%w: activating preset %d: %v", ErrDatabaseError, presetID, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: getting rows affected for preset activation %d: %v", ErrDatabaseError, presetID, err)
		}
		if rowsAffected == 0 {
			return ErrNotFound
		}
	}

	if apply != nil {
		if err := apply(tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing preset activation: %v", ErrDatabaseError, err)
	}
	return nil
}
