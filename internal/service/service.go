package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"medstore/backend/internal/cache"
	"medstore/backend/internal/domain"
	"medstore/backend/internal/ledgerview"
	"medstore/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// storeTZ is the fixed UTC+5:30 offset used for every calendar-day window.
// The ledger deliberately does not follow the server's local timezone.
var storeTZ = time.FixedZone("IST", 5*3600+30*60)

type Service struct {
	repo      store.Repository
	ledgers   cache.LedgerCache
	ledgerTTL time.Duration
}

func New(repo store.Repository, ledgers cache.LedgerCache, ledgerTTL time.Duration) *Service {
	if ledgers == nil {
		ledgers = cache.NoopLedgerCache{}
	}
	if ledgerTTL <= 0 {
		ledgerTTL = 30 * time.Second
	}

	return &Service{
		repo:      repo,
		ledgers:   ledgers,
		ledgerTTL: ledgerTTL,
	}
}

func (s *Service) ListMedicines(ctx context.Context) ([]domain.MedicineView, error) {
	medicines, err := s.repo.ListMedicines(ctx)
	if err != nil {
		return nil, err
	}
	return ledgerview.AnnotateCatalog(medicines), nil
}

// UpsertMedicine creates a catalog record or merges into an existing one:
// the price is replaced, the quantity accumulates. Missing required fields
// fail before any lookup.
func (s *Service) UpsertMedicine(ctx context.Context, req domain.MedicineUpsertRequest) (domain.MedicineUpsertResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.Category == "" || req.Price == nil || req.Quantity == nil {
		return domain.MedicineUpsertResponse{}, fmt.Errorf("%w: name, category, price and quantity are required", store.ErrValidation)
	}
	if *req.Price < 0 || *req.Quantity < 0 {
		return domain.MedicineUpsertResponse{}, fmt.Errorf("%w: price and quantity must be non-negative", store.ErrValidation)
	}

	saved, created, err := s.repo.UpsertMedicine(ctx, domain.Medicine{
		Name:     req.Name,
		Category: req.Category,
		Price:    *req.Price,
		Quantity: *req.Quantity,
	})
	if err != nil {
		return domain.MedicineUpsertResponse{}, err
	}

	action := "medicine_update"
	if created {
		action = "medicine_create"
	}
	s.logAudit(ctx, action, "medicine", saved.Name, fmt.Sprintf("price=%d,quantity=%d", saved.Price, saved.Quantity))

	return domain.MedicineUpsertResponse{Medicine: *saved, Created: created}, nil
}

// CreatePurchase records a sale. Stock is reconciled with a two-pass
// contract: every line item is validated against the catalog before any
// quantity is decremented, so a failing item leaves no partial mutation.
// The total is always recomputed from the line items; any client-sent total
// is ignored.
func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" || len(req.Medicines) == 0 {
		return domain.Purchase{}, fmt.Errorf("%w: customer name and medicines are required", store.ErrValidation)
	}
	if err := validateLineItems(req.Medicines); err != nil {
		return domain.Purchase{}, err
	}
	if err := validatePaymentFields(req.PaymentMode, req.Discount, req.DueAmount); err != nil {
		return domain.Purchase{}, err
	}

	totalPrice := computeTotal(req.Medicines)

	if err := s.repo.ConsumeStock(ctx, req.Medicines); err != nil {
		return domain.Purchase{}, err
	}

	date := time.Now().UTC()
	if req.Date != nil {
		date = req.Date.UTC()
	}

	created, err := s.repo.CreatePurchase(ctx, domain.Purchase{
		CustomerName: req.CustomerName,
		Date:         date,
		Medicines:    req.Medicines,
		TotalPrice:   totalPrice,
		Discount:     req.Discount,
		DueAmount:    req.DueAmount,
		PaymentMode:  req.PaymentMode,
	})
	if err != nil {
		return domain.Purchase{}, err
	}

	s.invalidateLedgerDay(ctx, created.Date)
	s.logAudit(ctx, "purchase_create", "purchase", created.ID,
		fmt.Sprintf("customer=%s,total=%d,items=%d", created.CustomerName, created.TotalPrice, len(created.Medicines)))

	return *created, nil
}

// UpdatePurchase replaces a purchase's line items and payment fields. Stock
// reconciliation runs in two steps: first the existing line items are
// restored to the catalog (best effort; medicines removed since the sale are
// skipped), then the new items are validated and consumed. If validation of
// the new items fails, the restoration has already been committed and is not
// rolled back; the purchase record itself is left untouched.
func (s *Service) UpdatePurchase(ctx context.Context, id string, req domain.PurchaseUpdateRequest) (domain.Purchase, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Purchase{}, fmt.Errorf("%w: purchase id is required", store.ErrValidation)
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" || len(req.Medicines) == 0 {
		return domain.Purchase{}, fmt.Errorf("%w: customer name and medicines are required", store.ErrValidation)
	}
	if err := validateLineItems(req.Medicines); err != nil {
		return domain.Purchase{}, err
	}
	if err := validatePaymentFields(req.PaymentMode, req.Discount, req.DueAmount); err != nil {
		return domain.Purchase{}, err
	}

	existing, err := s.repo.GetPurchaseByID(ctx, id)
	if err != nil {
		return domain.Purchase{}, err
	}

	if err := s.repo.RestoreStock(ctx, existing.Medicines); err != nil {
		return domain.Purchase{}, err
	}

	if err := s.repo.ConsumeStock(ctx, req.Medicines); err != nil {
		return domain.Purchase{}, err
	}

	updated := *existing
	updated.CustomerName = req.CustomerName
	updated.Medicines = req.Medicines
	updated.TotalPrice = computeTotal(req.Medicines)
	updated.Discount = req.Discount
	updated.DueAmount = req.DueAmount
	updated.PaymentMode = req.PaymentMode

	saved, err := s.repo.UpdatePurchase(ctx, updated)
	if err != nil {
		return domain.Purchase{}, err
	}

	s.invalidateLedgerDay(ctx, saved.Date)
	s.logAudit(ctx, "purchase_update", "purchase", saved.ID,
		fmt.Sprintf("customer=%s,total=%d,items=%d", saved.CustomerName, saved.TotalPrice, len(saved.Medicines)))

	return *saved, nil
}

// ListPurchases returns the purchases whose date falls inside the requested
// calendar day, newest first. The day boundary follows the store's fixed
// UTC+5:30 convention; an empty date means today.
func (s *Service) ListPurchases(ctx context.Context, date string) ([]domain.Purchase, error) {
	from, to, _, err := dayWindow(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPurchasesByDateRange(ctx, from, to)
}

// DailyLedger renders the summary view for one calendar day, serving from
// the ledger cache when a fresh copy exists.
func (s *Service) DailyLedger(ctx context.Context, date string) (domain.DailyLedger, error) {
	from, to, isoDate, err := dayWindow(date)
	if err != nil {
		return domain.DailyLedger{}, err
	}

	if cached, ok, err := s.ledgers.Get(ctx, isoDate); err == nil && ok {
		return *cached, nil
	}

	purchases, err := s.repo.ListPurchasesByDateRange(ctx, from, to)
	if err != nil {
		return domain.DailyLedger{}, err
	}

	ledger := ledgerview.BuildDailyLedger(isoDate, purchases)
	if err := s.ledgers.Set(ctx, isoDate, &ledger, s.ledgerTTL); err != nil {
		log.Printf("[service] WARN: failed to cache daily ledger date=%s: %v", isoDate, err)
	}
	return ledger, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	from, to, _, err := dayWindow(date)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) invalidateLedgerDay(ctx context.Context, date time.Time) {
	isoDate := date.In(storeTZ).Format("2006-01-02")
	if err := s.ledgers.Invalidate(ctx, isoDate); err != nil {
		log.Printf("[service] WARN: failed to invalidate ledger cache date=%s: %v", isoDate, err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func validateLineItems(items []domain.LineItem) error {
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: line item medicine name is required", store.ErrValidation)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: line item quantity must be at least 1", store.ErrValidation)
		}
		if item.Price < 0 {
			return fmt.Errorf("%w: line item price must be non-negative", store.ErrValidation)
		}
	}
	return nil
}

func validatePaymentFields(paymentMode string, discount int64, dueAmount int64) error {
	if paymentMode != domain.PaymentModeCash && paymentMode != domain.PaymentModeOnline {
		return fmt.Errorf("%w: payment mode must be cash or online", store.ErrValidation)
	}
	if discount < 0 || dueAmount < 0 {
		return fmt.Errorf("%w: discount and due amount must be non-negative", store.ErrValidation)
	}
	return nil
}

// computeTotal sums quantity x snapshot price over the line items. The
// server never trusts a client-sent total.
func computeTotal(items []domain.LineItem) int64 {
	var total int64
	for _, item := range items {
		total += int64(item.Quantity) * item.Price
	}
	return total
}

// dayWindow resolves a date string ("2006-01-02", or empty for today) into
// the UTC instants bounding that calendar day in the store timezone:
// [00:00:00.000, 23:59:59.999].
func dayWindow(date string) (time.Time, time.Time, string, error) {
	var day time.Time
	if strings.TrimSpace(date) == "" {
		day = time.Now().In(storeTZ)
	} else {
		parsed, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), storeTZ)
		if err != nil {
			return time.Time{}, time.Time{}, "", fmt.Errorf("%w: date must be formatted YYYY-MM-DD", store.ErrValidation)
		}
		day = parsed
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, storeTZ)
	end := start.Add(24*time.Hour - time.Millisecond)
	return start.UTC(), end.UTC(), start.Format("2006-01-02"), nil
}
