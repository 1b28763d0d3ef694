// Package ledgerview computes the display-only values the storefront renders:
// low-stock highlighting, per-purchase final prices, and the per-day sales
// aggregate. Nothing here is persisted.
package ledgerview

import (
	"strings"

	"medstore/backend/internal/domain"
)

// lowStockThresholds maps a lowercased category to the quantity below which
// a medicine is flagged for restocking. Flags are advisory only; they never
// block a sale.
var lowStockThresholds = map[string]int{
	"tablet":    10,
	"capsule":   10,
	"syrup":     5,
	"injection": 5,
	"ointment":  3,
}

// IsLowStock reports whether the medicine's on-hand quantity has fallen
// under its category threshold. Categories without a threshold never flag.
func IsLowStock(med domain.Medicine) bool {
	threshold, ok := lowStockThresholds[strings.ToLower(strings.TrimSpace(med.Category))]
	if !ok {
		return false
	}
	return med.Quantity < threshold
}

// AnnotateCatalog wraps catalog records with their low-stock flags.
func AnnotateCatalog(medicines []domain.Medicine) []domain.MedicineView {
	views := make([]domain.MedicineView, 0, len(medicines))
	for _, med := range medicines {
		views = append(views, domain.MedicineView{
			Medicine: med,
			LowStock: IsLowStock(med),
		})
	}
	return views
}

// FinalPrice is the amount actually owed for one purchase after discount.
func FinalPrice(p domain.Purchase) int64 {
	return p.TotalPrice - p.Discount
}

// BuildDailyLedger renders a day's purchases into the summary view. The
// aggregate is sum(totalPrice) - sum(discount) over the filtered set; input
// order (newest first) is preserved.
func BuildDailyLedger(date string, purchases []domain.Purchase) domain.DailyLedger {
	views := make([]domain.PurchaseView, 0, len(purchases))
	var totalAmount, totalDue int64
	for _, purchase := range purchases {
		views = append(views, domain.PurchaseView{
			Purchase:   purchase,
			FinalPrice: FinalPrice(purchase),
		})
		totalAmount += FinalPrice(purchase)
		totalDue += purchase.DueAmount
	}

	return domain.DailyLedger{
		Date:        date,
		Purchases:   views,
		TotalAmount: totalAmount,
		TotalDue:    totalDue,
		Count:       len(views),
	}
}
