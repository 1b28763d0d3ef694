package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"medstore/backend/internal/domain"
	"medstore/backend/internal/store"
)

func TestPurchaseEditReconciliation(t *testing.T) {
	databaseURL := os.Getenv("MEDSTORE_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set MEDSTORE_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	medName := fmt.Sprintf("IT Reconcile Tablet %d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM purchases WHERE customer_name = $1`, medName)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM medicines WHERE name = $1`, medName)
	})

	if _, _, err := s.UpsertMedicine(ctx, domain.Medicine{
		Name: medName, Category: "Tablet", Price: 1000, Quantity: 5,
	}); err != nil {
		t.Fatalf("seed medicine: %v", err)
	}

	items := []domain.LineItem{{Name: medName, Category: "Tablet", Quantity: 2, Price: 1000}}
	if err := s.ConsumeStock(ctx, items); err != nil {
		t.Fatalf("consume stock: %v", err)
	}

	created, err := s.CreatePurchase(ctx, domain.Purchase{
		CustomerName: medName,
		Medicines:    items,
		TotalPrice:   2000,
		PaymentMode:  domain.PaymentModeCash,
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	// Edit to a quantity that cannot be satisfied: restore commits first, so
	// the failed consume leaves the restored stock in place.
	if err := s.RestoreStock(ctx, created.Medicines); err != nil {
		t.Fatalf("restore stock: %v", err)
	}
	err = s.ConsumeStock(ctx, []domain.LineItem{{Name: medName, Quantity: 6, Price: 1000}})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	med, err := s.GetMedicineByName(ctx, medName)
	if err != nil {
		t.Fatalf("get medicine: %v", err)
	}
	if med.Quantity != 5 {
		t.Fatalf("quantity = %d, want 5 after restore with failed consume", med.Quantity)
	}

	unchanged, err := s.GetPurchaseByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get purchase: %v", err)
	}
	if unchanged.TotalPrice != 2000 {
		t.Fatalf("totalPrice = %d, want unchanged 2000", unchanged.TotalPrice)
	}
}
