package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"medstore/backend/internal/domain"
	"medstore/backend/internal/store"
	"medstore/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	medicines       map[string]domain.Medicine
	purchasesByID   map[string]*domain.Purchase
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory operator accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_OPERATOR_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	operatorPwd := envOr("SEED_OPERATOR_PASSWORD", "operator123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_OPERATOR_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_OPERATOR_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"operator", operatorPwd, "operator"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		medicines:       make(map[string]domain.Medicine),
		purchasesByID:   make(map[string]*domain.Purchase),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

// NewSeeded returns a store preloaded with a small demo catalog.
func NewSeeded() *Store {
	now := time.Now().UTC()
	medicines := []domain.Medicine{
		{Name: "Paracetamol 500mg", Category: "Tablet", Price: 2000, Quantity: 120},
		{Name: "Amoxicillin 250mg", Category: "Capsule", Price: 6500, Quantity: 80},
		{Name: "Cough Relief Syrup", Category: "Syrup", Price: 11000, Quantity: 25},
		{Name: "Tetanus Toxoid", Category: "Injection", Price: 4500, Quantity: 18},
		{Name: "Burn Care Ointment", Category: "Ointment", Price: 8500, Quantity: 9},
		{Name: "Saline Drops", Category: "Drops", Price: 3500, Quantity: 40},
		{Name: "Glucose Powder", Category: "Powder", Price: 5000, Quantity: 30},
		{Name: "Antiseptic Soap", Category: "Soap", Price: 3000, Quantity: 50},
	}

	s := New()
	for _, med := range medicines {
		med.CreatedAt = now
		med.UpdatedAt = now
		s.medicines[med.Name] = med
	}
	return s
}

func (s *Store) ListMedicines(_ context.Context) ([]domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	medicines := make([]domain.Medicine, 0, len(s.medicines))
	for _, med := range s.medicines {
		medicines = append(medicines, med)
	}

	slices.SortFunc(medicines, func(a, b domain.Medicine) int {
		return strings.Compare(a.Name, b.Name)
	})

	return medicines, nil
}

func (s *Store) GetMedicineByName(_ context.Context, name string) (*domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	med, exists := s.medicines[name]
	if !exists {
		return nil, store.MedicineNotFound(name)
	}
	copyMed := med
	return &copyMed, nil
}

func (s *Store) UpsertMedicine(_ context.Context, med domain.Medicine) (*domain.Medicine, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if med.Name == "" || med.Category == "" || med.Price < 0 || med.Quantity < 0 {
		return nil, false, store.ErrValidation
	}

	now := time.Now().UTC()
	existing, exists := s.medicines[med.Name]
	if exists {
		// Price is replaced, quantity accumulates. Category keeps its
		// original value on merge.
		existing.Price = med.Price
		existing.Quantity += med.Quantity
		existing.UpdatedAt = now
		s.medicines[med.Name] = existing
		merged := existing
		return &merged, false, nil
	}

	med.CreatedAt = now
	med.UpdatedAt = now
	s.medicines[med.Name] = med
	created := med
	return &created, true, nil
}

func (s *Store) ConsumeStock(_ context.Context, items []domain.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: validate every line item before touching any quantity.
	for _, item := range items {
		if item.Name == "" || item.Quantity < 1 {
			return store.ErrValidation
		}
		med, exists := s.medicines[item.Name]
		if !exists {
			return store.MedicineNotFound(item.Name)
		}
		if med.Quantity < item.Quantity {
			return &store.InsufficientStockError{Name: item.Name, Available: med.Quantity}
		}
	}

	now := time.Now().UTC()
	for _, item := range items {
		med := s.medicines[item.Name]
		med.Quantity -= item.Quantity
		med.UpdatedAt = now
		s.medicines[item.Name] = med
	}
	return nil
}

func (s *Store) RestoreStock(_ context.Context, items []domain.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, item := range items {
		med, exists := s.medicines[item.Name]
		if !exists {
			// Medicine removed from the catalog since the sale; skip.
			continue
		}
		med.Quantity += item.Quantity
		med.UpdatedAt = now
		s.medicines[item.Name] = med
	}
	return nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if purchase.CustomerName == "" || len(purchase.Medicines) == 0 {
		return nil, store.ErrValidation
	}

	now := time.Now().UTC()
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.Date.IsZero() {
		purchase.Date = now
	}
	purchase.CreatedAt = now
	purchase.UpdatedAt = now

	saved := purchase
	s.purchasesByID[purchase.ID] = &saved

	result := saved
	return &result, nil
}

func (s *Store) GetPurchaseByID(_ context.Context, id string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, exists := s.purchasesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return clonePurchase(purchase), nil
}

func (s *Store) UpdatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.purchasesByID[purchase.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	existing.CustomerName = purchase.CustomerName
	existing.Medicines = slices.Clone(purchase.Medicines)
	existing.TotalPrice = purchase.TotalPrice
	existing.Discount = purchase.Discount
	existing.DueAmount = purchase.DueAmount
	existing.PaymentMode = purchase.PaymentMode
	existing.UpdatedAt = time.Now().UTC()

	return clonePurchase(existing), nil
}

func (s *Store) ListPurchasesByDateRange(_ context.Context, from time.Time, to time.Time) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases := make([]domain.Purchase, 0, 32)
	for _, purchase := range s.purchasesByID {
		if purchase.Date.Before(from) || purchase.Date.After(to) {
			continue
		}
		purchases = append(purchases, *clonePurchase(purchase))
	}

	slices.SortFunc(purchases, func(a, b domain.Purchase) int {
		return b.Date.Compare(a.Date)
	})

	return purchases, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}

	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || entry.CreatedAt.After(to) {
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrValidation
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func clonePurchase(p *domain.Purchase) *domain.Purchase {
	clone := *p
	clone.Medicines = slices.Clone(p.Medicines)
	return &clone
}
