package apiclient

import (
	"context"
	"log/slog"
	"sync"

	"github.com/joshuarp/branchdesk/internal/shared/events"
	sharedlog "github.com/joshuarp/branchdesk/internal/shared/log"
)

// ErrorHandler is the optional process-wide error state sink.
type ErrorHandler interface {
	SetError(kind Kind, message string)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(kind Kind, message string)

func (f ErrorHandlerFunc) SetError(kind Kind, message string) { f(kind, message) }

// Delivery records where a reported error went.
type Delivery string

const (
	DeliveredHandler Delivery = "handler"
	DeliveredToast   Delivery = "toast"
	// SuppressedPolicy: the kind or message failed the visibility gate.
	SuppressedPolicy Delivery = "suppressed"
	// SuppressedLoggedOut: the session is torn down.
	SuppressedLoggedOut Delivery = "logged_out"
	// DroppedNoSink: visible, but nobody is listening yet.
	DroppedNoSink Delivery = "dropped"
)

type NotifierOptions struct {
	Logger     *slog.Logger
	Session    *Session
	Bus        events.Bus
	Translator Translator
}

// Notifier fans a classified error out to the log (always) and to at most one
// user-visible channel.
type Notifier struct {
	logger     *slog.Logger
	session    *Session
	bus        events.Bus
	translator Translator

	mu      sync.RWMutex
	handler ErrorHandler
}

func NewNotifier(opts NotifierOptions) *Notifier {
	logger := opts.Logger
	if logger == nil {
		logger = sharedlog.Discard()
	}
	return &Notifier{
		logger:     logger,
		session:    opts.Session,
		bus:        opts.Bus,
		translator: opts.Translator,
	}
}

// RegisterErrorHandler installs h; nil unregisters.
func (n *Notifier) RegisterErrorHandler(h ErrorHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handler = h
}

// Report logs ce exactly once and delivers it to staff if it qualifies.
func (n *Notifier) Report(ctx context.Context, ce ClassifiedError) Delivery {
	delivery := n.deliver(ce)

	fields := append([]any{
		"kind", ce.Kind,
		"status", ce.StatusCode,
		"show_to_user", ce.ShowToUser,
		"delivery", delivery,
		"message", ce.Message,
	}, ce.meta.attrs()...)
	if ce.cause != nil {
		fields = append(fields, "cause", ce.cause.Error())
	}

	level := slog.LevelWarn
	if delivery == DeliveredHandler || delivery == DeliveredToast {
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, "api request failed", fields...)
	return delivery
}

func (n *Notifier) deliver(ce ClassifiedError) Delivery {
	if n.session.LoggedOut() {
		return SuppressedLoggedOut
	}
	if !ce.ShowToUser {
		return SuppressedPolicy
	}

	n.mu.RLock()
	handler := n.handler
	n.mu.RUnlock()
	if handler != nil {
		handler.SetError(ce.Kind, ce.Message)
		return DeliveredHandler
	}

	if n.bus != nil && n.bus.HasSubscribers(events.TopicShowToast) {
		n.bus.Emit(events.TopicShowToast, events.Toast{
			Type:     events.ToastError,
			Title:    n.title(),
			Subtitle: ce.Message,
		})
		return DeliveredToast
	}
	return DroppedNoSink
}

func (n *Notifier) title() string {
	if n.translator != nil {
		if text, ok := n.translator.Lookup("toast.error_title"); ok {
			return text
		}
	}
	return "Error"
}
