package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"resto_platform_backend/internal/models"

	"github.com/lib/pq"
)

// ClosingRepository defines the interface for daily closing persistence and
// the compliance audit log. The daily_closings table carries a partial unique index
// on (branch_id, closing_date) WHERE status <> 'cancelled', which is what
// makes "at most one non-cancelled closing per branch-date" hold even under
// concurrent draft creation.
type ClosingRepository interface {
	CreateDraft(closing *models.DailyClosing) (int64, error)
	GetClosing(closingID, branchID int64) (*models.DailyClosing, error)
	GetActiveForDate(branchID int64, date string) (*models.DailyClosing, error)
	ListClosings(branchID int64, from, to string) ([]models.DailyClosing, error)

	// Aggregate computes the branch-day totals at query time; drafts read it
	// fresh so late order edits stay visible until completion.
	Aggregate(branchID int64, date string) (*models.ClosingSummary, error)
	AggregateRange(branchID int64, from, to string) (*models.ClosingSummary, error)

	// MarkCompleted freezes the summary onto the row; guarded on status='draft'.
	MarkCompleted(closingID, branchID int64, summary *models.ClosingSummary, fiscalTxID string) error
	// MarkCancelled flips a draft to cancelled and writes the audit entry in
	// the same transaction; an unlogged cancellation must be impossible.
	MarkCancelled(closingID, branchID int64, reason *string, entry *models.AuditLogEntry) error

	ListAuditEntries(branchID int64, entityType string, entityID int64) ([]models.AuditLogEntry, error)
}

type closingRepository struct {
	db *sql.DB
}

// NewClosingRepository creates a new instance of ClosingRepository.
func NewClosingRepository(db *sql.DB) ClosingRepository {
	return &closingRepository{db: db}
}

const closingColumns = `id, branch_id, closing_date, status, gross_sales, total_refunds,
	tax_gst, tax_qst, net_sales, order_count, fiscal_tx_id, cancel_reason,
	created_by, completed_at, cancelled_at, created_at, updated_at`

func scanClosing(s interface{ Scan(...interface{}) error }) (*models.DailyClosing, error) {
	c := &models.DailyClosing{}
	err := s.Scan(
		&c.ID, &c.BranchID, &c.ClosingDate, &c.Status, &c.GrossSales, &c.TotalRefunds,
		&c.TaxGST, &c.TaxQST, &c.NetSales, &c.OrderCount, &c.FiscalTxID, &c.CancelReason,
		&c.CreatedBy, &c.CompletedAt, &c.CancelledAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning daily closing: %v", ErrDatabaseError, err)
	}
	return c, nil
}

func (r *closingRepository) CreateDraft(closing *models.DailyClosing) (int64, error) {
	query := `INSERT INTO daily_closings
	            (branch_id, closing_date, status, gross_sales, total_refunds, tax_gst, tax_qst,
	             net_sales, order_count, created_by, created_at, updated_at)
	          VALUES ($1, $2, $3, 0, 0, 0, 0, 0, 0, $4, $5, $6)
	          RETURNING id`
	now := time.Now()
	err := r.db.QueryRow(query,
		closing.BranchID, closing.ClosingDate, models.ClosingStatusDraft, closing.CreatedBy, now, now,
	).Scan(&closing.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, fmt.Errorf("%w: closing for branch %d on %s", ErrDuplicateKey, closing.BranchID, closing.ClosingDate)
		}
		return 0, fmt.Errorf("%w: creating daily closing draft: %v", ErrDatabaseError, err)
	}
	closing.Status = models.ClosingStatusDraft
	closing.CreatedAt = now
	closing.UpdatedAt = now
	return closing.ID, nil
}

func (r *closingRepository) GetClosing(closingID, branchID int64) (*models.DailyClosing, error) {
	query := `SELECT ` + closingColumns + ` FROM daily_closings WHERE id = $1 AND branch_id = $2`
	return scanClosing(r.db.QueryRow(query, closingID, branchID))
}

func (r *closingRepository) GetActiveForDate(branchID int64, date string) (*models.DailyClosing, error) {
	query := `SELECT ` + closingColumns + ` FROM daily_closings
	          WHERE branch_id = $1 AND closing_date = $2 AND status <> 'cancelled'`
	return scanClosing(r.db.QueryRow(query, branchID, date))
}

func (r *closingRepository) ListClosings(branchID int64, from, to string) ([]models.DailyClosing, error) {
	closings := []models.DailyClosing{}
	query := `SELECT ` + closingColumns + ` FROM daily_closings
	          WHERE branch_id = $1 AND closing_date BETWEEN $2 AND $3
	          ORDER BY closing_date DESC, id DESC`
	rows, err := r.db.Query(query, branchID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: querying daily closings for branch %d: %v", ErrDatabaseError, branchID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.DailyClosing
		err := rows.Scan(
			&c.ID, &c.BranchID, &c.ClosingDate, &c.Status, &c.GrossSales, &c.TotalRefunds,
			&c.TaxGST, &c.TaxQST, &c.NetSales, &c.OrderCount, &c.FiscalTxID, &c.CancelReason,
			&c.CreatedBy, &c.CompletedAt, &c.CancelledAt, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning daily closing: %v", ErrDatabaseError, err)
		}
		closings = append(closings, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating daily closing rows: %v", ErrDatabaseError, err)
	}
	return closings, nil
}

func (r *closingRepository) Aggregate(branchID int64, date string) (*models.ClosingSummary, error) {
	return r.aggregate(branchID, date, date)
}

func (r *closingRepository) AggregateRange(branchID int64, from, to string) (*models.ClosingSummary, error) {
	return r.aggregate(branchID, from, to)
}

func (r *closingRepository) aggregate(branchID int64, from, to string) (*models.ClosingSummary, error) {
	summary := &models.ClosingSummary{BranchID: branchID, Date: from}

	// Rejected orders never produced revenue (any captured payment was
	// refunded in full), so sales aggregates exclude them.
	salesQuery := `SELECT COALESCE(SUM(total_amount), 0), COALESCE(SUM(tax_gst), 0),
	                      COALESCE(SUM(tax_qst), 0), COUNT(*)
	               FROM orders
	               WHERE branch_id = $1
	                 AND created_at >= $2::date
	                 AND created_at < $3::date + interval '1 day'
	                 AND status <> 'rejected'`
	err := r.db.QueryRow(salesQuery, branchID, from, to).Scan(
		&summary.GrossSales, &summary.TaxGST, &summary.TaxQST, &summary.OrderCount,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregating sales for branch %d: %v", ErrDatabaseError, branchID, err)
	}

	refundsQuery := `SELECT COALESCE(SUM(r.amount), 0)
	                 FROM refunds r
	                 JOIN orders o ON r.order_id = o.id
	                 WHERE o.branch_id = $1
	                   AND r.created_at >= $2::date
	                   AND r.created_at < $3::date + interval '1 day'`
	err = r.db.QueryRow(refundsQuery, branchID, from, to).Scan(&summary.TotalRefunds)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregating refunds for branch %d: %v", ErrDatabaseError, branchID, err)
	}

	summary.NetSales = summary.GrossSales.Sub(summary.TotalRefunds)

	channelQuery := `SELECT payment_method, COUNT(*), COALESCE(SUM(total_amount), 0)
	                 FROM orders
	                 WHERE branch_id = $1
	                   AND created_at >= $2::date
	                   AND created_at < $3::date + interval '1 day'
	                   AND status <> 'rejected'
	                 GROUP BY payment_method
	                 ORDER BY payment_method`
	rows, err := r.db.Query(channelQuery, branchID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregating payment channels for branch %d: %v", ErrDatabaseError, branchID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ct models.ChannelTotal
		if err := rows.Scan(&ct.PaymentMethod, &ct.OrderCount, &ct.Total); err != nil {
			return nil, fmt.Errorf("%w: scanning payment channel total: %v", ErrDatabaseError, err)
		}
		summary.PaymentChannels = append(summary.PaymentChannels, ct)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating payment channel totals: %v", ErrDatabaseError, err)
	}
	return summary, nil
}

func (r *closingRepository) MarkCompleted(closingID, branchID int64, summary *models.ClosingSummary, fiscalTxID string) error {
	query := `UPDATE daily_closings
	          SET status = 'completed', gross_sales = $1, total_refunds = $2, tax_gst = $3,
	              tax_qst = $4, net_sales = $5, order_count = $6, fiscal_tx_id = $7,
	              completed_at = $8, updated_at = $8
	          WHERE id = $9 AND branch_id = $10 AND status = 'draft'`
	result, err := r.db.Exec(query,
		summary.GrossSales, summary.TotalRefunds, summary.TaxGST, summary.TaxQST,
		summary.NetSales, summary.OrderCount, fiscalTxID, time.Now(),
		closingID, branchID,
	)
	if err != nil {
		return fmt.Errorf("%w: completing daily closing %d: %v", ErrDatabaseError, closingID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for closing completion %d: %v", ErrDatabaseError, closingID, err)
	}
	if rowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *closingRepository) MarkCancelled(closingID, branchID int64, reason *string, entry *models.AuditLogEntry) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: starting closing cancellation transaction: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	now := time.Now()
	query := `UPDATE daily_closings
	          SET status = 'cancelled', cancel_reason = $1, cancelled_at = $2, updated_at = $2
	          WHERE id = $3 AND branch_id = $4 AND status = 'draft'`
	result, err := tx.Exec(query, reason, now, closingID, branchID)
	if err != nil {
		return fmt.Errorf("%w: cancelling daily closing %d: %v", ErrDatabaseError, closingID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for closing cancellation %d: %v", ErrDatabaseError, closingID, err)
	}
	if rowsAffected == 0 {
		return ErrStaleState
	}

	auditQuery := `INSERT INTO audit_log (id, branch_id, action, entity_type, entity_id, user_id, reason, created_at)
	               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = tx.Exec(auditQuery,
		entry.ID, entry.BranchID, entry.Action, entry.EntityType, entry.EntityID,
		entry.UserID, entry.Reason, now,
	)
	if err != nil {
		return fmt.Errorf("%w: writing audit entry for closing %d: %v", ErrDatabaseError, closingID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing closing cancellation: %v", ErrDatabaseError, err)
	}
	entry.CreatedAt = now
	return nil
}

func (r *closingRepository) ListAuditEntries(branchID int64, entityType string, entityID int64) ([]models.AuditLogEntry, error) {
	entries := []models.AuditLogEntry{}
	query := `SELECT id, branch_id, action, entity_type, entity_id, user_id, reason, created_at
	          FROM audit_log
	          WHERE branch_id = $1 AND entity_type = $2 AND entity_id = $3
	          ORDER BY created_at`
	rows, err := r.db.Query(query, branchID, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying audit entries: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.AuditLogEntry
		err := rows.Scan(&e.ID, &e.BranchID, &e.Action, &e.EntityType, &e.EntityID, &e.UserID, &e.Reason, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning audit entry: %v", ErrDatabaseError, err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating audit entry rows: %v", ErrDatabaseError, err)
	}
	return entries, nil
}
