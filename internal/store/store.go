package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medstore/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("invalid input")
)

// InsufficientStockError reports which medicine ran short and how much is
// available. It matches ErrInsufficientStock under errors.Is so handlers can
// branch on the class while still surfacing the quantity to the caller.
type InsufficientStockError struct {
	Name      string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s. Available: %d", e.Name, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// MedicineNotFound wraps ErrNotFound with the offending medicine name.
func MedicineNotFound(name string) error {
	return fmt.Errorf("%w: medicine %s", ErrNotFound, name)
}

type Repository interface {
	ListMedicines(ctx context.Context) ([]domain.Medicine, error)
	GetMedicineByName(ctx context.Context, name string) (*domain.Medicine, error)
	// UpsertMedicine creates the record if absent; otherwise it replaces the
	// price and adds quantity to the existing quantity, leaving the stored
	// category unchanged. The bool result reports created (true) vs merged
	// (false).
	UpsertMedicine(ctx context.Context, med domain.Medicine) (*domain.Medicine, bool, error)

	// ConsumeStock decrements catalog quantities for the given items using a
	// two-pass contract: every item is validated against current stock before
	// any quantity is decremented, so a failure mutates nothing.
	ConsumeStock(ctx context.Context, items []domain.LineItem) error
	// RestoreStock adds the item quantities back to the catalog. Items whose
	// medicine no longer exists are silently skipped.
	RestoreStock(ctx context.Context, items []domain.LineItem) error

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	GetPurchaseByID(ctx context.Context, id string) (*domain.Purchase, error)
	UpdatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	// ListPurchasesByDateRange returns purchases with from <= date <= to,
	// newest first.
	ListPurchasesByDateRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Purchase, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
