package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"resto_platform_backend/internal/jobs"
	"resto_platform_backend/internal/models"
)

func newOrderFixture() (*stubOrderRepo, *stubMenuRepo, *stubTenantRepo, *stubRefundClient, *stubEnqueuer, OrderService) {
	orderRepo := newStubOrderRepo()
	menuRepo := newStubMenuRepo()
	tenantRepo := newStubTenantRepo()
	tenantRepo.addBranch(testBranch(1))
	menuRepo.addItem(models.MenuItem{ID: 100, BranchID: 1, CategoryID: 1, Name: "Poutine", Price: dec("12.50"), IsActive: true})
	menuRepo.addItem(models.MenuItem{ID: 101, BranchID: 1, CategoryID: 1, Name: "Smoked Meat", Price: dec("25.00"), IsActive: true})
	refunds := &stubRefundClient{}
	enqueuer := &stubEnqueuer{}
	svc := NewOrderService(orderRepo, menuRepo, tenantRepo, refunds, enqueuer)
	return orderRepo, menuRepo, tenantRepo, refunds, enqueuer, svc
}

func validCreateRequest() CreateOrderRequest {
	return CreateOrderRequest{
		Source:        models.SourceWeb,
		OrderType:     models.OrderTypeTakeout,
		PaymentMethod: models.PaymentMethodOnline,
		Items:         []CreateOrderItemRequest{{MenuItemID: 101, Quantity: 2}},
	}
}

func TestCreateOrderComputesTaxes(t *testing.T) {
	_, _, _, _, enqueuer, svc := newOrderFixture()

	order, err := svc.CreateOrder(1, validCreateRequest())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if !order.Subtotal.Equal(dec("50.00")) {
		t.Errorf("subtotal = %s, want 50.00", order.Subtotal)
	}
	if !order.TaxGST.Equal(dec("2.50")) {
		t.Errorf("gst = %s, want 2.50", order.TaxGST)
	}
	// 50 * 0.09975 = 4.9875, rounded to cents.
	if !order.TaxQST.Equal(dec("4.99")) {
		t.Errorf("qst = %s, want 4.99", order.TaxQST)
	}
	if !order.TotalAmount.Equal(dec("57.49")) {
		t.Errorf("total = %s, want 57.49", order.TotalAmount)
	}
	if order.Status != StatusScheduled {
		t.Errorf("status = %q, want scheduled", order.Status)
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		t.Errorf("payment status = %q, want pending", order.PaymentStatus)
	}
	if !strings.HasPrefix(order.OrderNumber, "ORD-") {
		t.Errorf("order number = %q, want ORD- prefix", order.OrderNumber)
	}
	if len(enqueuer.jobs) != 1 || enqueuer.jobs[0] != jobs.TypeOrderConfirmation {
		t.Errorf("enqueued jobs = %v, want one confirmation", enqueuer.jobs)
	}
}

func TestCreateOrderSnapshotsMenuItems(t *testing.T) {
	orderRepo, menuRepo, _, _, _, svc := newOrderFixture()

	order, err := svc.CreateOrder(1, validCreateRequest())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	// A later price change must not rewrite the stored order line.
	menuRepo.items[101].Price = dec("99.00")

	stored := orderRepo.orders[order.ID]
	if got := stored.Items[0].UnitPrice; !got.Equal(dec("25.00")) {
		t.Errorf("snapshot unit price = %s, want 25.00", got)
	}
	if got := stored.Items[0].Name; got != "Smoked Meat" {
		t.Errorf("snapshot name = %q", got)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	_, menuRepo, tenantRepo, _, _, svc := newOrderFixture()
	date := "2026-09-01"

	inactive := testBranch(2)
	inactive.IsActive = false
	tenantRepo.addBranch(inactive)
	menuRepo.addItem(models.MenuItem{ID: 102, BranchID: 1, CategoryID: 1, Name: "Retired", Price: dec("5.00"), IsActive: false})

	cases := []struct {
		name     string
		branchID int64
		mutate   func(*CreateOrderRequest)
		want     error
	}{
		{"unknown source", 1, func(r *CreateOrderRequest) { r.Source = "fax" }, ErrValidation},
		{"unknown type", 1, func(r *CreateOrderRequest) { r.OrderType = "drone" }, ErrValidation},
		{"unknown payment method", 1, func(r *CreateOrderRequest) { r.PaymentMethod = "barter" }, ErrValidation},
		{"no items", 1, func(r *CreateOrderRequest) { r.Items = nil }, ErrValidation},
		{"date without time", 1, func(r *CreateOrderRequest) { r.ScheduledDate = &date }, ErrValidation},
		{"inactive menu item", 1, func(r *CreateOrderRequest) {
			r.Items = []CreateOrderItemRequest{{MenuItemID: 102, Quantity: 1}}
		}, ErrMenuItemNotFound},
		{"unknown menu item", 1, func(r *CreateOrderRequest) {
			r.Items = []CreateOrderItemRequest{{MenuItemID: 999, Quantity: 1}}
		}, ErrMenuItemNotFound},
		{"inactive branch", 2, func(r *CreateOrderRequest) {}, ErrBranchNotFound},
		{"unknown branch", 77, func(r *CreateOrderRequest) {}, ErrBranchNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateRequest()
			tc.mutate(&req)
			if _, err := svc.CreateOrder(tc.branchID, req); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestOrderLifecycleHappyPath(t *testing.T) {
	orderRepo, _, _, _, _, svc := newOrderFixture()
	p := managerPrincipal(1)
	order := orderRepo.addOrder(models.Order{BranchID: 1, OrderNumber: "ORD-LIFE01", Status: StatusScheduled})

	got, err := svc.StartPreparing(p, 1, order.ID)
	if err != nil {
		t.Fatalf("StartPreparing: %v", err)
	}
	if got.Status != StatusPreparing {
		t.Errorf("status = %q, want preparing", got.Status)
	}

	if got, err = svc.MarkReady(p, 1, order.ID); err != nil || got.Status != StatusReady {
		t.Fatalf("MarkReady: status=%v err=%v", got, err)
	}
	if got, err = svc.CompleteOrder(p, 1, order.ID); err != nil || got.Status != StatusCompleted {
		t.Fatalf("CompleteOrder: status=%v err=%v", got, err)
	}
}

func TestOrderIllegalTransitions(t *testing.T) {
	orderRepo, _, _, _, _, svc := newOrderFixture()
	p := managerPrincipal(1)

	cases := []struct {
		name  string
		from  string
		apply func(int64) error
	}{
		{"scheduled cannot be marked ready", StatusScheduled, func(id int64) error {
			_, err := svc.MarkReady(p, 1, id)
			return err
		}},
		{"scheduled cannot be cancelled", StatusScheduled, func(id int64) error {
			_, err := svc.CancelOrder(p, 1, id)
			return err
		}},
		{"completed cannot restart", StatusCompleted, func(id int64) error {
			_, err := svc.StartPreparing(p, 1, id)
			return err
		}},
		{"ready cannot be rejected", StatusReady, func(id int64) error {
			_, err := svc.RejectOrder(p, 1, id)
			return err
		}},
		{"rejected cannot start preparing", StatusRejected, func(id int64) error {
			_, err := svc.StartPreparing(p, 1, id)
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := orderRepo.addOrder(models.Order{BranchID: 1, OrderNumber: "ORD-" + tc.name, Status: tc.from})
			if err := tc.apply(order.ID); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("err = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestRejectIssuesCompensatingRefund(t *testing.T) {
	orderRepo, _, _, refunds, _, svc := newOrderFixture()
	order := orderRepo.addOrder(models.Order{
		BranchID:      1,
		OrderNumber:   "ORD-REJ001",
		Status:        StatusPreparing,
		PaymentMethod: models.PaymentMethodOnline,
		PaymentStatus: models.PaymentStatusSucceeded,
		TotalAmount:   dec("57.49"),
	})

	result, err := svc.RejectOrder(managerPrincipal(1), 1, order.ID)
	if err != nil {
		t.Fatalf("RejectOrder: %v", err)
	}
	if result.Order.Status != StatusRejected {
		t.Errorf("status = %q, want rejected", result.Order.Status)
	}
	if !result.RefundIssued {
		t.Error("expected a compensating refund")
	}
	if result.RefundError != "" {
		t.Errorf("unexpected refund error %q", result.RefundError)
	}
	if len(refunds.calls) != 1 {
		t.Fatalf("processor calls = %d, want 1", len(refunds.calls))
	}
	if !refunds.calls[0].Amount.Equal(dec("57.49")) {
		t.Errorf("refund amount = %s, want full total", refunds.calls[0].Amount)
	}
	if got := refunds.calls[0].IdempotencyKey; got != "reject-ORD-REJ001" {
		t.Errorf("idempotency key = %q", got)
	}
	if !orderRepo.orders[order.ID].TotalRefunded.Equal(dec("57.49")) {
		t.Errorf("total refunded = %s, want 57.49", orderRepo.orders[order.ID].TotalRefunded)
	}
	booked := orderRepo.refundByID["reject-ORD-REJ001"]
	if booked == nil {
		t.Fatal("no refund row booked for the rejection")
	}
	if booked.Status != models.RefundStatusSucceeded {
		t.Errorf("refund status = %q, want succeeded after submission", booked.Status)
	}
}

func TestRejectCounterPaymentSkipsRefund(t *testing.T) {
	orderRepo, _, _, refunds, _, svc := newOrderFixture()
	order := orderRepo.addOrder(models.Order{
		BranchID:      1,
		OrderNumber:   "ORD-REJ002",
		Status:        StatusScheduled,
		PaymentMethod: models.PaymentMethodCounter,
		PaymentStatus: models.PaymentStatusPending,
		TotalAmount:   dec("20.00"),
	})

	result, err := svc.RejectOrder(managerPrincipal(1), 1, order.ID)
	if err != nil {
		t.Fatalf("RejectOrder: %v", err)
	}
	if result.RefundIssued {
		t.Error("counter payments must not trigger refunds")
	}
	if len(refunds.calls) != 0 {
		t.Errorf("processor calls = %d, want 0", len(refunds.calls))
	}
}

func TestRejectSurvivesProcessorFailure(t *testing.T) {
	orderRepo, _, _, refunds, enqueuer, svc := newOrderFixture()
	refunds.err = errors.New("processor down")
	order := orderRepo.addOrder(models.Order{
		BranchID:      1,
		OrderNumber:   "ORD-REJ003",
		Status:        StatusPreparing,
		PaymentMethod: models.PaymentMethodOnline,
		PaymentStatus: models.PaymentStatusSucceeded,
		TotalAmount:   dec("30.00"),
	})

	result, err := svc.RejectOrder(managerPrincipal(1), 1, order.ID)
	if err != nil {
		t.Fatalf("RejectOrder: %v", err)
	}
	// The rejection must stand even when the refund submission fails.
	if result.Order.Status != StatusRejected {
		t.Errorf("status = %q, want rejected", result.Order.Status)
	}
	if result.RefundIssued {
		t.Error("refund reported issued despite processor failure")
	}
	if result.RefundError == "" {
		t.Error("expected the refund failure to be surfaced")
	}
	found := false
	for _, j := range enqueuer.jobs {
		if j == jobs.TypeRefundNotification {
			found = true
		}
	}
	if !found {
		t.Errorf("jobs = %v, want a refund notification for operator follow-up", enqueuer.jobs)
	}
	// The refund stays booked against the order but its pending status
	// distinguishes it from a submitted one.
	booked := orderRepo.refundByID["reject-ORD-REJ003"]
	if booked == nil {
		t.Fatal("no refund row booked for the rejection")
	}
	if booked.Status != models.RefundStatusPending {
		t.Errorf("refund status = %q, want pending while unsubmitted", booked.Status)
	}
	if booked.ProcessorRefundID != nil {
		t.Errorf("processor refund id = %v, want nil", *booked.ProcessorRefundID)
	}
}

func TestRejectTwiceRefundsOnce(t *testing.T) {
	orderRepo, _, _, refunds, _, svc := newOrderFixture()
	order := orderRepo.addOrder(models.Order{
		BranchID:      1,
		OrderNumber:   "ORD-REJ004",
		Status:        StatusPreparing,
		PaymentMethod: models.PaymentMethodOnline,
		PaymentStatus: models.PaymentStatusSucceeded,
		TotalAmount:   dec("40.00"),
	})
	// A concurrent rejection already claimed the compensating refund slot.
	prior := &models.Refund{OrderID: order.ID, Amount: dec("40.00"), IdempotencyKey: "reject-ORD-REJ004"}
	if _, err := orderRepo.ApplyRefund(prior, nil); err != nil {
		t.Fatalf("seed refund: %v", err)
	}

	result, err := svc.RejectOrder(managerPrincipal(1), 1, order.ID)
	if err != nil {
		t.Fatalf("RejectOrder: %v", err)
	}
	if !result.RefundIssued {
		t.Error("duplicate key must read as refund already issued")
	}
	if len(refunds.calls) != 0 {
		t.Errorf("processor calls = %d, want 0 (refund was already claimed)", len(refunds.calls))
	}
	if !orderRepo.orders[order.ID].TotalRefunded.Equal(dec("40.00")) {
		t.Errorf("total refunded = %s, want 40.00 exactly once", orderRepo.orders[order.ID].TotalRefunded)
	}
}

func TestEditOrderItemBlockedAfterPayment(t *testing.T) {
	orderRepo, _, _, _, _, svc := newOrderFixture()
	order := orderRepo.addOrder(models.Order{
		BranchID:      1,
		OrderNumber:   "ORD-EDIT01",
		Status:        StatusPreparing,
		PaymentStatus: models.PaymentStatusSucceeded,
		Items:         []models.OrderItem{{ID: 10, Quantity: 2, UnitPrice: dec("10.00"), TotalPrice: dec("20.00")}},
	})

	_, err := svc.EditOrderItem(managerPrincipal(1), 1, order.ID, EditOrderItemRequest{OrderItemID: 10, Quantity: 1})
	if !errors.Is(err, ErrOrderPaid) {
		t.Errorf("err = %v, want ErrOrderPaid", err)
	}
}

func TestEditOrderItemRecomputesTotals(t *testing.T) {
	orderRepo, _, _, _, _, svc := newOrderFixture()
	order := orderRepo.addOrder(models.Order{
		BranchID:      1,
		OrderNumber:   "ORD-EDIT02",
		Status:        StatusPreparing,
		PaymentStatus: models.PaymentStatusPending,
		Subtotal:      dec("50.00"),
		TaxGST:        dec("2.50"),
		TaxQST:        dec("4.99"),
		TotalAmount:   dec("57.49"),
		Items: []models.OrderItem{
			{ID: 10, OrderID: 1, Quantity: 2, UnitPrice: dec("25.00"), TotalPrice: dec("50.00")},
		},
	})

	got, err := svc.EditOrderItem(managerPrincipal(1), 1, order.ID, EditOrderItemRequest{OrderItemID: 10, Quantity: 1})
	if err != nil {
		t.Fatalf("EditOrderItem: %v", err)
	}
	if !got.Subtotal.Equal(dec("25.00")) {
		t.Errorf("subtotal = %s, want 25.00", got.Subtotal)
	}
	if !got.TaxGST.Equal(dec("1.25")) {
		t.Errorf("gst = %s, want 1.25", got.TaxGST)
	}
	// 25 * 0.09975 = 2.49375, rounded to cents.
	if !got.TaxQST.Equal(dec("2.49")) {
		t.Errorf("qst = %s, want 2.49", got.TaxQST)
	}
	if !got.TotalAmount.Equal(dec("28.74")) {
		t.Errorf("total = %s, want 28.74", got.TotalAmount)
	}

	changes, err := svc.ListItemChanges(managerPrincipal(1), 1, order.ID)
	if err != nil {
		t.Fatalf("ListItemChanges: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(changes))
	}
	c := changes[0]
	if c.ChangeType != models.ChangeQuantityDecreased {
		t.Errorf("change type = %q, want quantity_decreased", c.ChangeType)
	}
	if c.QuantityBefore != 2 || c.QuantityAfter != 1 {
		t.Errorf("quantities = %d -> %d, want 2 -> 1", c.QuantityBefore, c.QuantityAfter)
	}
}

func TestEditOrderItemRejectsUnchangedQuantity(t *testing.T) {
	orderRepo, _, _, _, _, svc := newOrderFixture()
	order := orderRepo.addOrder(models.Order{
		BranchID:      1,
		OrderNumber:   "ORD-EDIT03",
		Status:        StatusScheduled,
		PaymentStatus: models.PaymentStatusPending,
		Items:         []models.OrderItem{{ID: 10, Quantity: 2, UnitPrice: dec("10.00")}},
	})

	_, err := svc.EditOrderItem(managerPrincipal(1), 1, order.ID, EditOrderItemRequest{OrderItemID: 10, Quantity: 2})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestSweepAutoCompleteSkipsRacedOrders(t *testing.T) {
	orderRepo, _, _, _, _, svc := newOrderFixture()
	ready := orderRepo.addOrder(models.Order{BranchID: 1, OrderNumber: "ORD-SWP001", Status: StatusReady})
	raced := orderRepo.addOrder(models.Order{BranchID: 1, OrderNumber: "ORD-SWP002", Status: StatusCancelled})
	orderRepo.due = []models.Order{*ready, *raced}

	completed, err := svc.SweepAutoComplete(time.Now())
	if err != nil {
		t.Fatalf("SweepAutoComplete: %v", err)
	}
	if completed != 1 {
		t.Errorf("completed = %d, want 1", completed)
	}
	if orderRepo.orders[ready.ID].Status != StatusCompleted {
		t.Errorf("ready order not completed")
	}
	if orderRepo.orders[raced.ID].Status != StatusCancelled {
		t.Errorf("raced order must be left alone")
	}
}
