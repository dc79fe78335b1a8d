package mockapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/joshuarp/branchdesk/internal/domain"
)

var demoCustomers = []string{"Layla", "Omar", "Nour", "Yusuf", "Sara"}

// RunDemoFeed places a pending order for branchID every interval until ctx is
// done, cycling through the branch menu.
func (b *Backend) RunDemoFeed(ctx context.Context, branchID string, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for tick := 0; ; tick++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		products, _ := b.ListProducts(ctx, branchID)
		if len(products) == 0 {
			continue
		}
		p := products[tick%len(products)]
		order, err := b.PlaceOrder(ctx, branchID, demoCustomers[tick%len(demoCustomers)], []domain.OrderItem{
			{ProductID: p.ID, Name: p.Name, Quantity: 1 + tick%3, PriceMinor: p.PriceMinor},
		})
		if err != nil {
			logger.Warn("demo order failed", "error", err)
			continue
		}
		logger.Info("demo order placed", "order_id", order.ID, "number", order.Number)
	}
}

// DemoMenu is the menu seeded into the stub branch.
func DemoMenu(currency string) []domain.Product {
	return []domain.Product{
		{ID: "p-falafel", Name: "Falafel wrap", Category: "wraps", PriceMinor: 1800, Currency: currency, Visible: true},
		{ID: "p-shawarma", Name: "Chicken shawarma", Category: "wraps", PriceMinor: 2600, Currency: currency, Visible: true},
		{ID: "p-hummus", Name: "Hummus plate", Category: "sides", PriceMinor: 1400, Currency: currency, Visible: true},
		{ID: "p-lemonade", Name: "Mint lemonade", Category: "drinks", PriceMinor: 900, Currency: currency, Visible: false},
	}
}
