package domain

import "time"

// Medicine is a catalog record. Name is the unique key; lookups are
// case-sensitive exact matches. Price is in paise, quantity is on-hand stock.
type Medicine struct {
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Price     int64     `json:"price"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MedicineUpsertRequest carries the POST /medicines payload. All fields are
// required; pointer types distinguish "missing" from zero values.
type MedicineUpsertRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    *int64 `json:"price"`
	Quantity *int   `json:"quantity"`
}

type MedicineUpsertResponse struct {
	Medicine Medicine `json:"medicine"`
	Created  bool     `json:"created"`
}

// MedicineView is a catalog record enriched with display-only fields.
type MedicineView struct {
	Medicine
	LowStock bool `json:"lowStock"`
}

// LineItem is one purchased medicine within a Purchase. Price and Category
// are snapshots copied at sale time, not live references to the catalog.
type LineItem struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

const (
	PaymentModeCash   = "cash"
	PaymentModeOnline = "online"
)

// Purchase is one completed sale. TotalPrice is always recomputed server-side
// as the sum of line-item quantity x price.
type Purchase struct {
	ID           string     `json:"id"`
	CustomerName string     `json:"customerName"`
	Date         time.Time  `json:"date"`
	Medicines    []LineItem `json:"medicines"`
	TotalPrice   int64      `json:"totalPrice"`
	Discount     int64      `json:"discount"`
	DueAmount    int64      `json:"dueAmount"`
	PaymentMode  string     `json:"paymentMode"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type PurchaseCreateRequest struct {
	CustomerName string     `json:"customerName"`
	Medicines    []LineItem `json:"medicines"`
	Discount     int64      `json:"discount"`
	DueAmount    int64      `json:"dueAmount"`
	PaymentMode  string     `json:"paymentMode"`
	Date         *time.Time `json:"date,omitempty"`
}

// PurchaseUpdateRequest replaces a purchase's line items and payment fields
// wholesale; partial updates are not supported.
type PurchaseUpdateRequest struct {
	CustomerName string     `json:"customerName"`
	Medicines    []LineItem `json:"medicines"`
	Discount     int64      `json:"discount"`
	DueAmount    int64      `json:"dueAmount"`
	PaymentMode  string     `json:"paymentMode"`
}

// PurchaseView is a ledger record with its derived final price
// (totalPrice - discount), computed at read time and never persisted.
type PurchaseView struct {
	Purchase
	FinalPrice int64 `json:"finalPrice"`
}

// DailyLedger is the daily summary view: all purchases in one calendar-day
// window, newest first, plus the day aggregate.
type DailyLedger struct {
	Date        string         `json:"date"`
	Purchases   []PurchaseView `json:"purchases"`
	TotalAmount int64          `json:"totalAmount"`
	TotalDue    int64          `json:"totalDue"`
	Count       int            `json:"count"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor identifies the authenticated operator making a request.
type Actor struct {
	Username string
	Role     string
}

type OperatorCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type OperatorUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
