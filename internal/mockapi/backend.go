// Package mockapi is an in-memory admin backend used for local runs and
// end-to-end tests of the client. It speaks the same JSON contract as the
// production backend, including {"error","code"} application errors.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joshuarp/branchdesk/internal/domain"
	"github.com/joshuarp/branchdesk/internal/domain/vo"
	sharedhash "github.com/joshuarp/branchdesk/internal/shared/hash"
	sharedjwt "github.com/joshuarp/branchdesk/internal/shared/jwt"
	"github.com/joshuarp/branchdesk/internal/shared/uid"
)

const defaultTokenTTL = 12 * time.Hour

type StaffDirectory interface {
	StaffByEmail(ctx context.Context, email string) (domain.Staff, error)
}

type Options struct {
	Staff    StaffDirectory
	Hasher   sharedhash.Hasher
	Tokens   sharedjwt.TokenManager
	IDs      uid.UIDGenerator
	TokenTTL time.Duration
	Now      func() time.Time
}

type Backend struct {
	staff    StaffDirectory
	hasher   sharedhash.Hasher
	tokens   sharedjwt.TokenManager
	ids      uid.UIDGenerator
	tokenTTL time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	orders   map[string]domain.Order
	products map[string]domain.Product
	settings map[string]domain.BranchSettings
	sequence int
}

func New(opts Options) (*Backend, error) {
	if opts.Staff == nil {
		return nil, errors.New("mockapi: staff directory is required")
	}
	if opts.Hasher == nil || opts.Tokens == nil {
		return nil, errors.New("mockapi: password hasher and token manager are required")
	}

	b := &Backend{
		staff:    opts.Staff,
		hasher:   opts.Hasher,
		tokens:   opts.Tokens,
		ids:      opts.IDs,
		tokenTTL: opts.TokenTTL,
		now:      opts.Now,
		orders:   make(map[string]domain.Order),
		products: make(map[string]domain.Product),
		settings: make(map[string]domain.BranchSettings),
	}
	if b.ids == nil {
		b.ids = uid.NewUUIDv7()
	}
	if b.tokenTTL <= 0 {
		b.tokenTTL = defaultTokenTTL
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b, nil
}

func (b *Backend) Login(ctx context.Context, email, password string) (vo.AuthLogin, error) {
	staff, err := b.staff.StaffByEmail(ctx, email)
	if err != nil {
		return vo.AuthLogin{}, err
	}

	if err := b.hasher.Compare(ctx, staff.PasswordHash, password); err != nil {
		if errors.Is(err, sharedhash.ErrMismatch) {
			return vo.AuthLogin{}, vo.ErrInvalidCredentials
		}
		return vo.AuthLogin{}, fmt.Errorf("mockapi: password check failed: %w", err)
	}

	now := b.now()
	expiresAt := now.Add(b.tokenTTL).Truncate(time.Second)
	token, err := b.tokens.Sign(ctx, sharedjwt.Claims{
		Subject:   staff.ID,
		BranchID:  staff.BranchID,
		Role:      staff.Role,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return vo.AuthLogin{}, fmt.Errorf("mockapi: failed to issue token: %w", err)
	}

	staff.PasswordHash = ""
	return vo.AuthLogin{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Staff:       staff,
	}, nil
}

// SeedBranch installs settings and a menu for branchID, replacing any existing.
func (b *Backend) SeedBranch(settings domain.BranchSettings, products []domain.Product) {
	b.mu.Lock()
	defer b.mu.Unlock()

	settings.UpdatedAt = b.now()
	b.settings[settings.BranchID] = settings
	for _, p := range products {
		p.BranchID = settings.BranchID
		b.products[p.ID] = p
	}
}

// PlaceOrder adds a pending order, as a customer checkout would.
func (b *Backend) PlaceOrder(ctx context.Context, branchID, customer string, items []domain.OrderItem) (domain.Order, error) {
	id, err := b.ids.Generate(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("mockapi: failed to generate order id: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var total int64
	currency := ""
	for _, item := range items {
		total += item.PriceMinor * int64(item.Quantity)
		if p, ok := b.products[item.ProductID]; ok && currency == "" {
			currency = p.Currency
		}
	}

	b.sequence++
	now := b.now()
	order := domain.Order{
		ID:           id,
		BranchID:     branchID,
		Number:       "#" + strconv.Itoa(1000+b.sequence),
		Status:       domain.OrderPending,
		CustomerName: customer,
		Items:        append([]domain.OrderItem(nil), items...),
		TotalMinor:   total,
		Currency:     currency,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	b.orders[id] = order
	return order, nil
}

func (b *Backend) ListOrders(_ context.Context, branchID string, status domain.OrderStatus) ([]domain.Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list := make([]domain.Order, 0)
	for _, order := range b.orders {
		if order.BranchID != branchID {
			continue
		}
		if status != "" && order.Status != status {
			continue
		}
		list = append(list, order)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].Number < list[j].Number
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

func (b *Backend) GetOrder(_ context.Context, branchID, id string) (domain.Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.orderLocked(branchID, id)
}

func (b *Backend) AcceptOrder(_ context.Context, branchID, id string, prepMinutes int) (domain.Order, error) {
	if prepMinutes <= 0 || prepMinutes > vo.MaxPrepMinutes {
		return domain.Order{}, vo.ErrInvalidPrepTime
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	order, err := b.pendingLocked(branchID, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !b.settings[branchID].Open {
		return domain.Order{}, vo.ErrBranchTemporarilyClosed
	}

	order.Status = domain.OrderAccepted
	order.PrepMinutes = prepMinutes
	order.UpdatedAt = b.now()
	b.orders[id] = order
	return order, nil
}

func (b *Backend) RejectOrder(_ context.Context, branchID, id, reason string) (domain.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Order{}, vo.ErrMissingRejectReason
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	order, err := b.pendingLocked(branchID, id)
	if err != nil {
		return domain.Order{}, err
	}

	order.Status = domain.OrderRejected
	order.RejectReason = reason
	order.UpdatedAt = b.now()
	b.orders[id] = order
	return order, nil
}

func (b *Backend) ListProducts(_ context.Context, branchID string) ([]domain.Product, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list := make([]domain.Product, 0)
	for _, p := range b.products {
		if p.BranchID == branchID {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (b *Backend) SetProductVisibility(_ context.Context, branchID, id string, visible bool) (domain.Product, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	product, ok := b.products[id]
	if !ok {
		return domain.Product{}, vo.ErrProductNotFound
	}
	if product.BranchID != branchID {
		return domain.Product{}, vo.ErrForeignBranch
	}
	if !b.settings[branchID].Open {
		return domain.Product{}, vo.ErrBranchTemporarilyClosed
	}

	product.Visible = visible
	product.UpdatedAt = b.now()
	b.products[id] = product
	return product, nil
}

func (b *Backend) Settings(_ context.Context, branchID string) (domain.BranchSettings, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.settings[branchID], nil
}

func (b *Backend) UpdateDelivery(_ context.Context, branchID string, delivery domain.DeliverySettings) (domain.BranchSettings, error) {
	if delivery.RadiusKm < 0 || delivery.FeeMinor < 0 || delivery.MinOrderMinor < 0 || delivery.EstimatedMinutes < 0 {
		return domain.BranchSettings{}, vo.ErrInvalidDelivery
	}
	if delivery.Enabled && delivery.RadiusKm == 0 {
		return domain.BranchSettings{}, vo.ErrInvalidDelivery
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	settings := b.settings[branchID]
	if !settings.Open {
		return domain.BranchSettings{}, vo.ErrBranchTemporarilyClosed
	}
	settings.BranchID = branchID
	settings.Delivery = delivery
	settings.UpdatedAt = b.now()
	b.settings[branchID] = settings
	return settings, nil
}

func (b *Backend) SetOpen(_ context.Context, branchID string, open bool) (domain.BranchSettings, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	settings := b.settings[branchID]
	settings.BranchID = branchID
	settings.Open = open
	settings.UpdatedAt = b.now()
	b.settings[branchID] = settings
	return settings, nil
}

func (b *Backend) orderLocked(branchID, id string) (domain.Order, error) {
	order, ok := b.orders[id]
	if !ok {
		return domain.Order{}, vo.ErrOrderNotFound
	}
	if order.BranchID != branchID {
		return domain.Order{}, vo.ErrForeignBranch
	}
	return order, nil
}

func (b *Backend) pendingLocked(branchID, id string) (domain.Order, error) {
	order, err := b.orderLocked(branchID, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.Pending() {
		return domain.Order{}, vo.ErrOrderAlreadyDecided
	}
	return order, nil
}
