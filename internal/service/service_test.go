package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"medstore/backend/internal/cache"
	"medstore/backend/internal/domain"
	"medstore/backend/internal/store"
	"medstore/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.New()
	return New(repo, cache.NoopLedgerCache{}, time.Minute), repo
}

func seedMedicine(t *testing.T, repo *memory.Store, name, category string, price int64, quantity int) {
	t.Helper()
	if _, _, err := repo.UpsertMedicine(context.Background(), domain.Medicine{
		Name:     name,
		Category: category,
		Price:    price,
		Quantity: quantity,
	}); err != nil {
		t.Fatalf("seed medicine %s: %v", name, err)
	}
}

func stockOf(t *testing.T, repo *memory.Store, name string) int {
	t.Helper()
	med, err := repo.GetMedicineByName(context.Background(), name)
	if err != nil {
		t.Fatalf("get medicine %s: %v", name, err)
	}
	return med.Quantity
}

func int64p(v int64) *int64 { return &v }
func intp(v int) *int       { return &v }

func TestUpsertMedicineAccumulatesQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertMedicine(ctx, domain.MedicineUpsertRequest{
		Name: "Paracetamol 500mg", Category: "Tablet", Price: int64p(2000), Quantity: intp(40),
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !first.Created {
		t.Fatal("expected first upsert to report created")
	}

	second, err := svc.UpsertMedicine(ctx, domain.MedicineUpsertRequest{
		Name: "Paracetamol 500mg", Category: "Tablet", Price: int64p(2500), Quantity: intp(10),
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Created {
		t.Fatal("expected second upsert to merge, not create")
	}
	if second.Medicine.Quantity != 50 {
		t.Fatalf("quantity = %d, want 50", second.Medicine.Quantity)
	}
	if second.Medicine.Price != 2500 {
		t.Fatalf("price = %d, want replaced price 2500", second.Medicine.Price)
	}
}

func TestUpsertMedicineMissingFields(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpsertMedicine(context.Background(), domain.MedicineUpsertRequest{
		Name: "Paracetamol 500mg", Category: "Tablet", Price: int64p(2000),
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreatePurchaseRecomputesTotalAndDecrementsStock(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedMedicine(t, repo, "Alpha", "Tablet", 10, 5)
	seedMedicine(t, repo, "Beta", "Syrup", 5, 3)

	purchase, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{
		CustomerName: "Ravi",
		PaymentMode:  domain.PaymentModeCash,
		Medicines: []domain.LineItem{
			{Name: "Alpha", Category: "Tablet", Quantity: 2, Price: 10},
			{Name: "Beta", Category: "Syrup", Quantity: 1, Price: 5},
		},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if purchase.TotalPrice != 25 {
		t.Fatalf("totalPrice = %d, want 25", purchase.TotalPrice)
	}
	if got := stockOf(t, repo, "Alpha"); got != 3 {
		t.Fatalf("Alpha stock = %d, want 3", got)
	}
	if got := stockOf(t, repo, "Beta"); got != 2 {
		t.Fatalf("Beta stock = %d, want 2", got)
	}
}

func TestCreatePurchaseInsufficientStockLeavesCatalogUntouched(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedMedicine(t, repo, "Alpha", "Tablet", 10, 5)
	seedMedicine(t, repo, "Beta", "Syrup", 5, 1)

	_, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{
		CustomerName: "Ravi",
		PaymentMode:  domain.PaymentModeCash,
		Medicines: []domain.LineItem{
			{Name: "Alpha", Quantity: 2, Price: 10},
			{Name: "Beta", Quantity: 4, Price: 5},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	var insufficient *store.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected typed insufficient stock error, got %v", err)
	}
	if insufficient.Available != 1 {
		t.Fatalf("available = %d, want 1", insufficient.Available)
	}

	if got := stockOf(t, repo, "Alpha"); got != 5 {
		t.Fatalf("Alpha stock = %d, want 5 (no partial decrement)", got)
	}
	if got := stockOf(t, repo, "Beta"); got != 1 {
		t.Fatalf("Beta stock = %d, want 1", got)
	}
}

func TestCreatePurchaseUnknownMedicine(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreatePurchase(context.Background(), domain.PurchaseCreateRequest{
		CustomerName: "Ravi",
		PaymentMode:  domain.PaymentModeOnline,
		Medicines:    []domain.LineItem{{Name: "Ghost", Quantity: 1, Price: 10}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestCreatePurchaseRejectsUnknownPaymentMode(t *testing.T) {
	svc, repo := newTestService(t)
	seedMedicine(t, repo, "Alpha", "Tablet", 10, 5)

	_, err := svc.CreatePurchase(context.Background(), domain.PurchaseCreateRequest{
		CustomerName: "Ravi",
		PaymentMode:  "card",
		Medicines:    []domain.LineItem{{Name: "Alpha", Quantity: 1, Price: 10}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdatePurchaseRestoresThenConsumes(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedMedicine(t, repo, "Alpha", "Tablet", 10, 5)

	purchase, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{
		CustomerName: "Ravi",
		PaymentMode:  domain.PaymentModeCash,
		Medicines:    []domain.LineItem{{Name: "Alpha", Quantity: 2, Price: 10}},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if got := stockOf(t, repo, "Alpha"); got != 3 {
		t.Fatalf("Alpha stock = %d, want 3 after sale", got)
	}

	updated, err := svc.UpdatePurchase(ctx, purchase.ID, domain.PurchaseUpdateRequest{
		CustomerName: "Ravi",
		PaymentMode:  domain.PaymentModeCash,
		Medicines:    []domain.LineItem{{Name: "Alpha", Quantity: 5, Price: 10}},
	})
	if err != nil {
		t.Fatalf("update purchase: %v", err)
	}
	if updated.TotalPrice != 50 {
		t.Fatalf("totalPrice = %d, want 50", updated.TotalPrice)
	}
	if got := stockOf(t, repo, "Alpha"); got != 0 {
		t.Fatalf("Alpha stock = %d, want 0 after edit to quantity 5", got)
	}
}

// A failed edit leaves the original line items already restored to the
// catalog while the purchase record keeps its old contents. This inflated
// stock is the documented behavior of the two-step reconciliation, not a
// bug in the test.
func TestUpdatePurchaseInsufficientStockLeavesRestoredStock(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedMedicine(t, repo, "Alpha", "Tablet", 10, 5)

	purchase, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{
		CustomerName: "Ravi",
		PaymentMode:  domain.PaymentModeCash,
		Medicines:    []domain.LineItem{{Name: "Alpha", Quantity: 2, Price: 10}},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	_, err = svc.UpdatePurchase(ctx, purchase.ID, domain.PurchaseUpdateRequest{
		CustomerName: "Ravi",
		PaymentMode:  domain.PaymentModeCash,
		Medicines:    []domain.LineItem{{Name: "Alpha", Quantity: 6, Price: 10}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	if got := stockOf(t, repo, "Alpha"); got != 5 {
		t.Fatalf("Alpha stock = %d, want 5 (restoration committed before failure)", got)
	}

	unchanged, err := repo.GetPurchaseByID(ctx, purchase.ID)
	if err != nil {
		t.Fatalf("get purchase: %v", err)
	}
	if len(unchanged.Medicines) != 1 || unchanged.Medicines[0].Quantity != 2 {
		t.Fatalf("purchase mutated on failed edit: %+v", unchanged.Medicines)
	}
	if unchanged.TotalPrice != 20 {
		t.Fatalf("totalPrice = %d, want unchanged 20", unchanged.TotalPrice)
	}
}

func TestUpdatePurchaseNotFound(t *testing.T) {
	svc, repo := newTestService(t)
	seedMedicine(t, repo, "Alpha", "Tablet", 10, 5)

	_, err := svc.UpdatePurchase(context.Background(), "pur-missing", domain.PurchaseUpdateRequest{
		CustomerName: "Ravi",
		PaymentMode:  domain.PaymentModeCash,
		Medicines:    []domain.LineItem{{Name: "Alpha", Quantity: 1, Price: 10}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestListPurchasesDayWindowAndOrdering(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedMedicine(t, repo, "Alpha", "Tablet", 10, 100)

	// The 2026-03-10 store day spans 2026-03-09T18:30Z to 2026-03-10T18:29:59.999Z.
	dates := []struct {
		when   time.Time
		inside bool
	}{
		{time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC), false},
		{time.Date(2026, 3, 9, 19, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 10, 18, 29, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 10, 18, 30, 0, 0, time.UTC), false},
	}
	for _, d := range dates {
		when := d.when
		if _, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{
			CustomerName: "Ravi",
			PaymentMode:  domain.PaymentModeCash,
			Date:         &when,
			Medicines:    []domain.LineItem{{Name: "Alpha", Quantity: 1, Price: 10}},
		}); err != nil {
			t.Fatalf("create purchase at %s: %v", when, err)
		}
	}

	purchases, err := svc.ListPurchases(ctx, "2026-03-10")
	if err != nil {
		t.Fatalf("list purchases: %v", err)
	}
	if len(purchases) != 2 {
		t.Fatalf("got %d purchases, want 2", len(purchases))
	}
	if !purchases[0].Date.After(purchases[1].Date) {
		t.Fatalf("purchases not newest first: %s then %s", purchases[0].Date, purchases[1].Date)
	}
}

func TestListPurchasesRejectsBadDate(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ListPurchases(context.Background(), "10-03-2026")
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDailyLedgerAggregates(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedMedicine(t, repo, "Alpha", "Tablet", 100, 50)

	when := time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)
	if _, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{
		CustomerName: "Ravi",
		PaymentMode:  domain.PaymentModeCash,
		Date:         &when,
		Discount:     50,
		Medicines:    []domain.LineItem{{Name: "Alpha", Quantity: 3, Price: 100}},
	}); err != nil {
		t.Fatalf("create first purchase: %v", err)
	}
	if _, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{
		CustomerName: "Meera",
		PaymentMode:  domain.PaymentModeOnline,
		Date:         &when,
		DueAmount:    75,
		Medicines:    []domain.LineItem{{Name: "Alpha", Quantity: 2, Price: 100}},
	}); err != nil {
		t.Fatalf("create second purchase: %v", err)
	}

	ledger, err := svc.DailyLedger(ctx, "2026-03-10")
	if err != nil {
		t.Fatalf("daily ledger: %v", err)
	}
	if ledger.Count != 2 {
		t.Fatalf("count = %d, want 2", ledger.Count)
	}
	// (300-50) + 200 = 450
	if ledger.TotalAmount != 450 {
		t.Fatalf("totalAmount = %d, want 450", ledger.TotalAmount)
	}
	if ledger.TotalDue != 75 {
		t.Fatalf("totalDue = %d, want 75", ledger.TotalDue)
	}
}

type recordingCache struct {
	cache.NoopLedgerCache
	invalidated []string
}

func (c *recordingCache) Invalidate(ctx context.Context, date string) error {
	c.invalidated = append(c.invalidated, date)
	return nil
}

func TestPurchaseWritesInvalidateLedgerCache(t *testing.T) {
	repo := memory.New()
	rec := &recordingCache{}
	svc := New(repo, rec, time.Minute)
	ctx := context.Background()
	seedMedicine(t, repo, "Alpha", "Tablet", 10, 10)

	when := time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)
	if _, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{
		CustomerName: "Ravi",
		PaymentMode:  domain.PaymentModeCash,
		Date:         &when,
		Medicines:    []domain.LineItem{{Name: "Alpha", Quantity: 1, Price: 10}},
	}); err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	if len(rec.invalidated) != 1 || rec.invalidated[0] != "2026-03-10" {
		t.Fatalf("invalidated = %v, want [2026-03-10]", rec.invalidated)
	}
}
