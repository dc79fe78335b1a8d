// Package watcher polls the pending-order queue and announces orders staff
// have not seen yet.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshuarp/branchdesk/internal/domain"
	"github.com/joshuarp/branchdesk/internal/shared/events"
	sharedlog "github.com/joshuarp/branchdesk/internal/shared/log"
)

const DefaultInterval = 15 * time.Second

type OrderLister interface {
	List(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
}

// SeenStore remembers which order IDs have already been announced.
// Implementations must be safe for concurrent use.
type SeenStore interface {
	// Filter returns the IDs not seen yet, in input order.
	Filter(ctx context.Context, ids []string) ([]string, error)
	Mark(ctx context.Context, ids []string) error
}

type Formatter interface {
	Format(key string, vars map[string]string) string
}

// NewOrders is the payload of events.TopicNewOrders.
type NewOrders struct {
	Orders []domain.Order
}

type Options struct {
	Orders    OrderLister
	Seen      SeenStore
	Bus       events.Bus
	Formatter Formatter
	Interval  time.Duration
	Logger    *slog.Logger
}

type Watcher struct {
	orders    OrderLister
	seen      SeenStore
	bus       events.Bus
	formatter Formatter
	interval  time.Duration
	logger    *slog.Logger

	seeded   atomic.Bool
	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(opts Options) (*Watcher, error) {
	if opts.Orders == nil {
		return nil, errors.New("watcher: order lister is required")
	}

	w := &Watcher{
		orders:    opts.Orders,
		seen:      opts.Seen,
		bus:       opts.Bus,
		formatter: opts.Formatter,
		interval:  opts.Interval,
		logger:    opts.Logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if w.seen == nil {
		w.seen = NewMemorySeenStore()
	}
	if w.interval <= 0 {
		w.interval = DefaultInterval
	}
	if w.logger == nil {
		w.logger = sharedlog.Discard()
	}
	return w, nil
}

// Poll fetches pending orders once and returns the ones announced. The first
// successful poll only records what is already waiting.
func (w *Watcher) Poll(ctx context.Context) ([]domain.Order, error) {
	orders, err := w.orders.List(ctx, domain.OrderPending)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}

	unseen, err := w.seen.Filter(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("watcher: failed to filter seen orders: %w", err)
	}
	if len(unseen) > 0 {
		if err := w.seen.Mark(ctx, unseen); err != nil {
			return nil, fmt.Errorf("watcher: failed to mark orders seen: %w", err)
		}
	}

	if !w.seeded.Swap(true) {
		w.logger.InfoContext(ctx, "order watcher seeded", "pending", len(orders))
		return nil, nil
	}
	if len(unseen) == 0 {
		return nil, nil
	}

	fresh := pick(orders, unseen)
	w.announce(ctx, fresh)
	return fresh, nil
}

func (w *Watcher) announce(ctx context.Context, fresh []domain.Order) {
	w.logger.InfoContext(ctx, "new orders received", "count", len(fresh))
	if w.bus == nil {
		return
	}

	w.bus.Emit(events.TopicNewOrders, NewOrders{Orders: fresh})
	w.bus.Emit(events.TopicShowToast, events.Toast{
		Type:     events.ToastInfo,
		Title:    w.format("orders.new_title", nil),
		Subtitle: w.format("orders.new_subtitle", map[string]string{"count": strconv.Itoa(len(fresh))}),
	})
}

func (w *Watcher) format(key string, vars map[string]string) string {
	if w.formatter == nil {
		return key
	}
	return w.formatter.Format(key, vars)
}

// Start polls immediately and then every interval until Stop or ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	if w.started.Swap(true) {
		return
	}

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			if _, err := w.Poll(ctx); err != nil {
				w.logger.WarnContext(ctx, "order poll failed", "error", err)
			}

			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	if w.started.Load() {
		<-w.done
	}
}

func pick(orders []domain.Order, ids []string) []domain.Order {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	picked := make([]domain.Order, 0, len(ids))
	for _, order := range orders {
		if _, ok := wanted[order.ID]; ok {
			picked = append(picked, order)
			delete(wanted, order.ID)
		}
	}
	return picked
}
