package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"resto_platform_backend/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// OrderTotals carries recomputed order money columns for pre-payment edits.
type OrderTotals struct {
	Subtotal    decimal.Decimal
	TaxGST      decimal.Decimal
	TaxQST      decimal.Decimal
	TotalAmount decimal.Decimal
}

// OrderRepository defines the interface for order-related database
// operations. Mutations that span several rows (creation, refunds, item
// edits) run inside a repository-owned transaction so callers see them
// all-or-nothing. Guarded updates return ErrStaleState when a concurrent
// writer got there first.
type OrderRepository interface {
	CreateOrderWithItems(order *models.Order, items []models.OrderItem) (int64, error)
	GetOrder(orderID, branchID int64) (*models.Order, error)
	GetOrders(filters models.OrderFilters) ([]models.Order, int, error)
	GetOrderItems(orderID int64) ([]models.OrderItem, error)

	// TransitionStatus performs a guarded status update: the row changes only
	// if its current status is one of allowedFrom.
	TransitionStatus(orderID, branchID int64, allowedFrom []string, to string) error
	UpdateTimingAdjustment(orderID, branchID int64, minutes int) error

	// UpdatePaymentStatus applies an asynchronous processor event, keyed by
	// the order number the processor echoes back.
	UpdatePaymentStatus(orderNumber, status string) error

	// ApplyItemEdit updates one item's quantity (pre-payment), logs the edit
	// in the append-only removed_items table, and rewrites the order totals.
	ApplyItemEdit(order *models.Order, item *models.OrderItem, change *models.RemovedItem, totals OrderTotals) error
	ListItemChanges(orderID int64) ([]models.RemovedItem, error)

	// ApplyRefund inserts the refund row, bumps total_refunded and the
	// per-item refunded quantities under invariant guards.
	ApplyRefund(refund *models.Refund, itemQuantities map[int64]int) (int64, error)
	SetRefundProcessorID(refundID int64, processorRefundID string) error
	GetRefundByIdempotencyKey(key string) (*models.Refund, error)
	ListRefunds(orderID int64) ([]models.Refund, error)

	// ListDueAutoComplete returns orders whose computed target completion
	// time plus the grace delay has elapsed. Marketplace orders are excluded.
	ListDueAutoComplete(now time.Time, grace time.Duration) ([]models.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository.
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, order_number, branch_id, status, source, order_type,
	subtotal, tax_gst, tax_qst, total_amount, total_refunded,
	payment_method, payment_status, timing_adjustment_min,
	scheduled_date, scheduled_time, customer_name, customer_phone, notes,
	created_at, updated_at`

func scanOrder(s interface{ Scan(...interface{}) error }) (*models.Order, error) {
	o := &models.Order{}
	err := s.Scan(
		&o.ID, &o.OrderNumber, &o.BranchID, &o.Status, &o.Source, &o.OrderType,
		&o.Subtotal, &o.TaxGST, &o.TaxQST, &o.TotalAmount, &o.TotalRefunded,
		&o.PaymentMethod, &o.PaymentStatus, &o.TimingAdjustmentMin,
		&o.ScheduledDate, &o.ScheduledTime, &o.CustomerName, &o.CustomerPhone, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning order: %v", ErrDatabaseError, err)
	}
	return o, nil
}

func (r *orderRepository) CreateOrderWithItems(order *models.Order, items []models.OrderItem) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: starting order transaction: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	query := `INSERT INTO orders
	            (order_number, branch_id, status, source, order_type,
	             subtotal, tax_gst, tax_qst, total_amount, total_refunded,
	             payment_method, payment_status, timing_adjustment_min,
	             scheduled_date, scheduled_time, customer_name, customer_phone, notes,
	             created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	          RETURNING id`
	err = tx.QueryRow(query,
		order.OrderNumber, order.BranchID, order.Status, order.Source, order.OrderType,
		order.Subtotal, order.TaxGST, order.TaxQST, order.TotalAmount, order.TotalRefunded,
		order.PaymentMethod, order.PaymentStatus, order.TimingAdjustmentMin,
		order.ScheduledDate, order.ScheduledTime, order.CustomerName, order.CustomerPhone, order.Notes,
		order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// Unique order_number; marketplace sync relies on this to dedupe.
			return 0, ErrDuplicateKey
		}
		return 0, fmt.Errorf("%w: creating order record: %v", ErrDatabaseError, err)
	}

	itemQuery := `INSERT INTO order_items
	                (order_id, menu_item_id, name, unit_price, quantity, refunded_quantity,
	                 total_price, variants, modifiers, created_at)
	              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	              RETURNING id`
	for i := range items {
		items[i].OrderID = order.ID
		err = tx.QueryRow(itemQuery,
			order.ID, items[i].MenuItemID, items[i].Name, items[i].UnitPrice,
			items[i].Quantity, items[i].RefundedQuantity, items[i].TotalPrice,
			nullableJSON(items[i].Variants), nullableJSON(items[i].Modifiers), now,
		).Scan(&items[i].ID)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23503" {
				return 0, fmt.Errorf("%w: creating order item (constraint: %s): %v", ErrDatabaseError, pqErr.Constraint, err)
			}
			return 0, fmt.Errorf("%w: creating order item: %v", ErrDatabaseError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing order transaction: %v", ErrDatabaseError, err)
	}
	order.Items = items
	return order.ID, nil
}

func (r *orderRepository) GetOrder(orderID, branchID int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND branch_id = $2`
	order, err := scanOrder(r.db.QueryRow(query, orderID, branchID))
	if err != nil {
		return nil, err
	}
	items, err := r.GetOrderItems(orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) GetOrders(filters models.OrderFilters) ([]models.Order, int, error) {
	orders := []models.Order{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + orderColumns + `, COUNT(*) OVER() as total_count FROM orders`)

	var conditions []string
	var args []interface{}
	argCounter := 1

	if filters.BranchID != nil {
		conditions = append(conditions, fmt.Sprintf("branch_id = $%d", argCounter))
		args = append(args, *filters.BranchID)
		argCounter++
	}
	if filters.Status != nil && *filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argCounter))
		args = append(args, *filters.Status)
		argCounter++
	}
	if filters.Source != nil && *filters.Source != "" {
		conditions = append(conditions, fmt.Sprintf("source = $%d", argCounter))
		args = append(args, *filters.Source)
		argCounter++
	}
	if filters.Date != nil && *filters.Date != "" {
		parsedDate, err := time.Parse("2006-01-02", *filters.Date)
		if err == nil {
			startOfDay := time.Date(parsedDate.Year(), parsedDate.Month(), parsedDate.Day(), 0, 0, 0, 0, parsedDate.Location())
			endOfDay := startOfDay.AddDate(0, 0, 1).Add(-time.Nanosecond)
			conditions = append(conditions, fmt.Sprintf("created_at BETWEEN $%d AND $%d", argCounter, argCounter+1))
			args = append(args, startOfDay, endOfDay)
			argCounter += 2
		}
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY created_at DESC")

	if filters.PageSize > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argCounter))
		args = append(args, filters.PageSize)
		argCounter++
		if filters.Page > 0 {
			offset := (filters.Page - 1) * filters.PageSize
			queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", argCounter))
			args = append(args, offset)
		}
	}

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: querying orders: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var o models.Order
		err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.BranchID, &o.Status, &o.Source, &o.OrderType,
			&o.Subtotal, &o.TaxGST, &o.TaxQST, &o.TotalAmount, &o.TotalRefunded,
			&o.PaymentMethod, &o.PaymentStatus, &o.TimingAdjustmentMin,
			&o.ScheduledDate, &o.ScheduledTime, &o.CustomerName, &o.CustomerPhone, &o.Notes,
			&o.CreatedAt, &o.UpdatedAt,
			&totalCount,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: scanning order: %v", ErrDatabaseError, err)
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating order rows: %v", ErrDatabaseError, err)
	}
	return orders, totalCount, nil
}

func (r *orderRepository) GetOrderItems(orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	query := `SELECT id, order_id, menu_item_id, name, unit_price, quantity, refunded_quantity,
	                 total_price, variants, modifiers, created_at
	          FROM order_items
	          WHERE order_id = $1
	          ORDER BY id`
	rows, err := r.db.Query(query, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying order items for order %d: %v", ErrDatabaseError, orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.MenuItemID, &item.Name, &item.UnitPrice,
			&item.Quantity, &item.RefundedQuantity, &item.TotalPrice,
			&item.Variants, &item.Modifiers, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning order item for order %d: %v", ErrDatabaseError, orderID, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating order item rows for order %d: %v", ErrDatabaseError, orderID, err)
	}
	return items, nil
}

func (r *orderRepository) TransitionStatus(orderID, branchID int64, allowedFrom []string, to string) error {
	query := `UPDATE orders SET status = $1, updated_at = $2
	          WHERE id = $3 AND branch_id = $4 AND status = ANY($5)`
	result, err := r.db.Exec(query, to, time.Now(), orderID, branchID, pq.Array(allowedFrom))
	if err != nil {
		return fmt.Errorf("%w: updating order status for ID %d: %v", ErrDatabaseError, orderID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for order status update ID %d: %v", ErrDatabaseError, orderID, err)
	}
	if rowsAffected == 0 {
		// Either the order does not exist in this branch or its status moved
		// out from under us; the caller distinguishes via a fresh read.
		return ErrStaleState
	}
	return nil
}

func (r *orderRepository) UpdateTimingAdjustment(orderID, branchID int64, minutes int) error {
	query := `UPDATE orders SET timing_adjustment_min = $1, updated_at = $2
	          WHERE id = $3 AND branch_id = $4`
	result, err := r.db.Exec(query, minutes, time.Now(), orderID, branchID)
	if err != nil {
		return fmt.Errorf("%w: updating timing adjustment for order %d: %v", ErrDatabaseError, orderID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for timing adjustment update %d: %v", ErrDatabaseError, orderID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepository) UpdatePaymentStatus(orderNumber, status string) error {
	query := `UPDATE orders SET payment_status = $1, updated_at = $2
	          WHERE order_number = $3`
	result, err := r.db.Exec(query, status, time.Now(), orderNumber)
	if err != nil {
		return fmt.Errorf("%w: updating payment status for order %s: %v", ErrDatabaseError, orderNumber, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for payment status update %s: %v", ErrDatabaseError, orderNumber, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepository) ApplyItemEdit(order *models.Order, item *models.OrderItem, change *models.RemovedItem, totals OrderTotals) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: starting item edit transaction: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	now := time.Now()

	itemQuery := `UPDATE order_items SET quantity = $1, total_price = $2 WHERE id = $3 AND order_id = $4`
	result, err := tx.Exec(itemQuery, item.Quantity, item.TotalPrice, item.ID, order.ID)
	if err != nil {
		return fmt.Errorf("%w: updating order item %d: %v", ErrDatabaseError, item.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for order item update %d: %v", ErrDatabaseError, item.ID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	changeQuery := `INSERT INTO removed_items
	                  (order_id, order_item_id, change_type, quantity_before, quantity_after, reason, staff_user_id, created_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	                RETURNING id`
	err = tx.QueryRow(changeQuery,
		change.OrderID, change.OrderItemID, change.ChangeType,
		change.QuantityBefore, change.QuantityAfter, change.Reason, change.StaffUserID, now,
	).Scan(&change.ID)
	if err != nil {
		return fmt.Errorf("%w: recording item change for order %d: %v", ErrDatabaseError, order.ID, err)
	}

	totalsQuery := `UPDATE orders
	                SET subtotal = $1, tax_gst = $2, tax_qst = $3, total_amount = $4, updated_at = $5
	                WHERE id = $6 AND branch_id = $7`
	result, err = tx.Exec(totalsQuery,
		totals.Subtotal, totals.TaxGST, totals.TaxQST, totals.TotalAmount, now,
		order.ID, order.BranchID,
	)
	if err != nil {
		return fmt.Errorf("%w: updating order totals for order %d: %v", ErrDatabaseError, order.ID, err)
	}
	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for order totals update %d: %v", ErrDatabaseError, order.ID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing item edit transaction: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *orderRepository) ListItemChanges(orderID int64) ([]models.RemovedItem, error) {
	changes := []models.RemovedItem{}
	query := `SELECT id, order_id, order_item_id, change_type, quantity_before, quantity_after,
	                 reason, staff_user_id, created_at
	          FROM removed_items
	          WHERE order_id = $1
	          ORDER BY id`
	rows, err := r.db.Query(query, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying item changes for order %d: %v", ErrDatabaseError, orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.RemovedItem
		err := rows.Scan(
			&c.ID, &c.OrderID, &c.OrderItemID, &c.ChangeType,
			&c.QuantityBefore, &c.QuantityAfter, &c.Reason, &c.StaffUserID, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning item change: %v", ErrDatabaseError, err)
		}
		changes = append(changes, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating item change rows: %v", ErrDatabaseError, err)
	}
	return changes, nil
}

func (r *orderRepository) ApplyRefund(refund *models.Refund, itemQuantities map[int64]int) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: starting refund transaction: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	now := time.Now()

	// total_refunded <= total_amount is enforced right here: a concurrent
	// refund that would overshoot matches no row and the whole tx rolls back.
	orderQuery := `UPDATE orders
	               SET total_refunded = total_refunded + $1, updated_at = $2
	               WHERE id = $3 AND total_refunded + $1 <= total_amount`
	result, err := tx.Exec(orderQuery, refund.Amount, now, refund.OrderID)
	if err != nil {
		return 0, fmt.Errorf("%w: bumping total_refunded for order %d: %v", ErrDatabaseError, refund.OrderID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: getting rows affected for total_refunded update %d: %v", ErrDatabaseError, refund.OrderID, err)
	}
	if rowsAffected == 0 {
		return 0, ErrStaleState
	}

	itemQuery := `UPDATE order_items
	              SET refunded_quantity = refunded_quantity + $1
	              WHERE id = $2 AND order_id = $3 AND refunded_quantity + $1 <= quantity`
	for itemID, qty := range itemQuantities {
		result, err := tx.Exec(itemQuery, qty, itemID, refund.OrderID)
		if err != nil {
			return 0, fmt.Errorf("%w: bumping refunded_quantity for item %d: %v", ErrDatabaseError, itemID, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("%w: getting rows affected for refunded_quantity update %d: %v", ErrDatabaseError, itemID, err)
		}
		if rowsAffected == 0 {
			return 0, ErrStaleState
		}
	}

	if refund.Status == "" {
		refund.Status = models.RefundStatusSucceeded
	}
	refundQuery := `INSERT INTO refunds (order_id, amount, reason, idempotency_key, status, created_by, created_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7)
	                RETURNING id`
	err = tx.QueryRow(refundQuery,
		refund.OrderID, refund.Amount, refund.Reason, refund.IdempotencyKey, refund.Status, refund.CreatedBy, now,
	).Scan(&refund.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, fmt.Errorf("%w: refund idempotency key %s", ErrDuplicateKey, refund.IdempotencyKey)
		}
		return 0, fmt.Errorf("%w: creating refund record: %v", ErrDatabaseError, err)
	}

	refundItemQuery := `INSERT INTO refund_items (refund_id, order_item_id, quantity) VALUES ($1, $2, $3)`
	for _, ri := range refund.Items {
		if _, err := tx.Exec(refundItemQuery, refund.ID, ri.OrderItemID, ri.Quantity); err != nil {
			return 0, fmt.Errorf("%w: creating refund item record: %v", ErrDatabaseError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing refund transaction: %v", ErrDatabaseError, err)
	}
	refund.CreatedAt = now
	return refund.ID, nil
}

func (r *orderRepository) SetRefundProcessorID(refundID int64, processorRefundID string) error {
	query := `UPDATE refunds SET processor_refund_id = $1, status = 'succeeded' WHERE id = $2`
	result, err := r.db.Exec(query, processorRefundID, refundID)
	if err != nil {
		return fmt.Errorf("%w: setting processor refund id for refund %d: %v", ErrDatabaseError, refundID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for processor refund id update %d: %v", ErrDatabaseError, refundID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepository) GetRefundByIdempotencyKey(key string) (*models.Refund, error) {
	refund := &models.Refund{}
	query := `SELECT id, order_id, amount, reason, idempotency_key, status, processor_refund_id, created_by, created_at
	          FROM refunds
	          WHERE idempotency_key = $1`
	err := r.db.QueryRow(query, key).Scan(
		&refund.ID, &refund.OrderID, &refund.Amount, &refund.Reason,
		&refund.IdempotencyKey, &refund.Status, &refund.ProcessorRefundID, &refund.CreatedBy, &refund.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting refund by idempotency key: %v", ErrDatabaseError, err)
	}
	return refund, nil
}

func (r *orderRepository) ListRefunds(orderID int64) ([]models.Refund, error) {
	refunds := []models.Refund{}
	query := `SELECT id, order_id, amount, reason, idempotency_key, status, processor_refund_id, created_by, created_at
	          FROM refunds
	          WHERE order_id = $1
	          ORDER BY id`
	rows, err := r.db.Query(query, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying refunds for order %d: %v", ErrDatabaseError, orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rf models.Refund
		err := rows.Scan(
			&rf.ID, &rf.OrderID, &rf.Amount, &rf.Reason,
			&rf.IdempotencyKey, &rf.Status, &rf.ProcessorRefundID, &rf.CreatedBy, &rf.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning refund: %v", ErrDatabaseError, err)
		}
		refunds = append(refunds, rf)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating refund rows: %v", ErrDatabaseError, err)
	}
	return refunds, nil
}

func (r *orderRepository) ListDueAutoComplete(now time.Time, grace time.Duration) ([]models.Order, error) {
	orders := []models.Order{}
	// Target completion time = created_at + branch base prep + branch temp
	// adjustment + per-order adjustment; the grace delay elapses on top of
	// that before an automatic completion fires. Marketplace orders are
	// completed manually because the marketplace owns fulfillment.
	query := `SELECT o.id, o.order_number, o.branch_id, o.status, o.source, o.order_type,
	                 o.subtotal, o.tax_gst, o.tax_qst, o.total_amount, o.total_refunded,
	                 o.payment_method, o.payment_status, o.timing_adjustment_min,
	                 o.scheduled_date, o.scheduled_time, o.customer_name, o.customer_phone, o.notes,
	                 o.created_at, o.updated_at
	          FROM orders o
	          JOIN branches b ON o.branch_id = b.id
	          WHERE b.auto_complete_enabled = TRUE
	            AND o.source <> 'marketplace'
	            AND o.status IN ('preparing', 'ready')
	            AND o.created_at
	                + make_interval(mins => b.base_prep_minutes + b.temp_prep_adjustment + o.timing_adjustment_min)
	                + $2::interval
	                <= $1
	          ORDER BY o.id`
	rows, err := r.db.Query(query, now, fmt.Sprintf("%d minutes", int(grace.Minutes())))
	if err != nil {
		return nil, fmt.Errorf("%w: querying auto-complete candidates: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var o models.Order
		err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.BranchID, &o.Status, &o.Source, &o.OrderType,
			&o.Subtotal, &o.TaxGST, &o.TaxQST, &o.TotalAmount, &o.TotalRefunded,
			&o.PaymentMethod, &o.PaymentStatus, &o.TimingAdjustmentMin,
			&o.ScheduledDate, &o.ScheduledTime, &o.CustomerName, &o.CustomerPhone, &o.Notes,
			&o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning auto-complete candidate: %v", ErrDatabaseError, err)
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating auto-complete candidates: %v", ErrDatabaseError, err)
	}
	return orders, nil
}
