package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"medstore/backend/internal/domain"
	"medstore/backend/internal/store"
	"medstore/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListMedicines(ctx context.Context) ([]domain.Medicine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, category, price, quantity, created_at, updated_at
		FROM medicines
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	medicines := make([]domain.Medicine, 0, 128)
	for rows.Next() {
		var med domain.Medicine
		if err := rows.Scan(&med.Name, &med.Category, &med.Price, &med.Quantity, &med.CreatedAt, &med.UpdatedAt); err != nil {
			return nil, err
		}
		med.CreatedAt = med.CreatedAt.UTC()
		med.UpdatedAt = med.UpdatedAt.UTC()
		medicines = append(medicines, med)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return medicines, nil
}

func (s *Store) GetMedicineByName(ctx context.Context, name string) (*domain.Medicine, error) {
	var med domain.Medicine
	err := s.db.QueryRowContext(ctx, `
		SELECT name, category, price, quantity, created_at, updated_at
		FROM medicines
		WHERE name = $1
	`, name).Scan(&med.Name, &med.Category, &med.Price, &med.Quantity, &med.CreatedAt, &med.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.MedicineNotFound(name)
		}
		return nil, err
	}
	return &med, nil
}

func (s *Store) UpsertMedicine(ctx context.Context, med domain.Medicine) (*domain.Medicine, bool, error) {
	if med.Name == "" || med.Category == "" || med.Price < 0 || med.Quantity < 0 {
		return nil, false, store.ErrValidation
	}

	// ON CONFLICT implements the merge rule directly: price is replaced and
	// quantities accumulate. The stored category keeps its original value.
	var created bool
	var saved domain.Medicine
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO medicines (name, category, price, quantity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now(),now())
		ON CONFLICT (name) DO UPDATE
		SET price = EXCLUDED.price,
		    quantity = medicines.quantity + EXCLUDED.quantity,
		    updated_at = now()
		RETURNING name, category, price, quantity, created_at, updated_at, (xmax = 0)
	`, med.Name, med.Category, med.Price, med.Quantity).Scan(
		&saved.Name, &saved.Category, &saved.Price, &saved.Quantity, &saved.CreatedAt, &saved.UpdatedAt, &created,
	)
	if err != nil {
		return nil, false, err
	}

	return &saved, created, nil
}

func (s *Store) ConsumeStock(ctx context.Context, items []domain.LineItem) error {
	if len(items) == 0 {
		return store.ErrValidation
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	names := make([]string, 0, len(items))
	for _, item := range items {
		if item.Name == "" || item.Quantity < 1 {
			return store.ErrValidation
		}
		names = append(names, item.Name)
	}

	rows, err := pgTx.QueryContext(ctx, `
		SELECT name, quantity
		FROM medicines
		WHERE name = ANY($1)
		FOR UPDATE
	`, names)
	if err != nil {
		return err
	}
	stock := make(map[string]int, len(names))
	for rows.Next() {
		var name string
		var qty int
		if err := rows.Scan(&name, &qty); err != nil {
			_ = rows.Close()
			return err
		}
		stock[name] = qty
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	// Validate every line before decrementing any, so a late failure rolls
	// back with no partial mutation.
	for _, item := range items {
		available, exists := stock[item.Name]
		if !exists {
			return store.MedicineNotFound(item.Name)
		}
		if available < item.Quantity {
			return &store.InsufficientStockError{Name: item.Name, Available: available}
		}
	}

	for _, item := range items {
		_, err := pgTx.ExecContext(ctx, `
			UPDATE medicines
			SET quantity = quantity - $1, updated_at = now()
			WHERE name = $2
		`, item.Quantity, item.Name)
		if err != nil {
			return err
		}
	}

	return pgTx.Commit()
}

// RestoreStock commits independently of any later consume call. A purchase
// edit that fails validation after restoration therefore leaves the restored
// quantities in place, matching the documented reconciliation behavior.
func (s *Store) RestoreStock(ctx context.Context, items []domain.LineItem) error {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	for _, item := range items {
		if item.Name == "" || item.Quantity < 1 {
			continue
		}
		// Zero rows affected means the medicine was removed from the catalog
		// since the sale; the restoration is skipped for that line.
		_, err := pgTx.ExecContext(ctx, `
			UPDATE medicines
			SET quantity = quantity + $1, updated_at = now()
			WHERE name = $2
		`, item.Quantity, item.Name)
		if err != nil {
			return err
		}
	}

	return pgTx.Commit()
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.CustomerName == "" || len(purchase.Medicines) == 0 {
		return nil, store.ErrValidation
	}

	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	now := time.Now().UTC()
	if purchase.Date.IsZero() {
		purchase.Date = now
	}
	purchase.CreatedAt = now
	purchase.UpdatedAt = now

	itemsJSON, err := json.Marshal(purchase.Medicines)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO purchases (id, customer_name, purchase_date, medicines, total_price, discount, due_amount, payment_mode, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, purchase.ID, purchase.CustomerName, purchase.Date, itemsJSON, purchase.TotalPrice,
		purchase.Discount, purchase.DueAmount, purchase.PaymentMode, purchase.CreatedAt, purchase.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}

	saved := purchase
	return &saved, nil
}

func (s *Store) GetPurchaseByID(ctx context.Context, id string) (*domain.Purchase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_name, purchase_date, medicines, total_price, discount, due_amount, payment_mode, created_at, updated_at
		FROM purchases
		WHERE id = $1
	`, id)

	purchase, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return purchase, nil
}

func (s *Store) UpdatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	itemsJSON, err := json.Marshal(purchase.Medicines)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE purchases
		SET customer_name = $2, medicines = $3, total_price = $4, discount = $5,
		    due_amount = $6, payment_mode = $7, updated_at = now()
		WHERE id = $1
	`, purchase.ID, purchase.CustomerName, itemsJSON, purchase.TotalPrice,
		purchase.Discount, purchase.DueAmount, purchase.PaymentMode)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetPurchaseByID(ctx, purchase.ID)
}

func (s *Store) ListPurchasesByDateRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_name, purchase_date, medicines, total_price, discount, due_amount, payment_mode, created_at, updated_at
		FROM purchases
		WHERE purchase_date >= $1 AND purchase_date <= $2
		ORDER BY purchase_date DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 32)
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return purchases, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrValidation
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurchase(row rowScanner) (*domain.Purchase, error) {
	var purchase domain.Purchase
	var itemsRaw []byte
	err := row.Scan(&purchase.ID, &purchase.CustomerName, &purchase.Date, &itemsRaw,
		&purchase.TotalPrice, &purchase.Discount, &purchase.DueAmount, &purchase.PaymentMode,
		&purchase.CreatedAt, &purchase.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsRaw, &purchase.Medicines); err != nil {
		return nil, err
	}
	purchase.Date = purchase.Date.UTC()
	purchase.CreatedAt = purchase.CreatedAt.UTC()
	purchase.UpdatedAt = purchase.UpdatedAt.UTC()
	return &purchase, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
