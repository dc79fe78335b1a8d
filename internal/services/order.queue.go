package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/joshuarp/branchdesk/internal/apiclient"
	"github.com/joshuarp/branchdesk/internal/domain"
	"github.com/joshuarp/branchdesk/internal/domain/vo"
)

type OrderService struct {
	client APIClient
}

func NewOrderService(client APIClient) *OrderService {
	return &OrderService{client: client}
}

// List always reads through to the backend; an empty status lists everything.
func (s *OrderService) List(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	var params map[string]string
	if status != "" {
		params = map[string]string{"status": string(status)}
	}

	resp, err := s.client.Do(ctx, apiclient.Request{Method: http.MethodGet, Endpoint: "orders", Params: params})
	if err != nil {
		return nil, err
	}

	var list vo.OrderList
	if err := resp.Decode(&list); err != nil {
		return nil, fmt.Errorf("service: failed to decode orders: %w", err)
	}
	return list.Orders, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (domain.Order, error) {
	resp, err := s.client.Do(ctx, apiclient.Request{Method: http.MethodGet, Endpoint: pathID("orders", id, "")})
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(resp)
}

func (s *OrderService) Accept(ctx context.Context, id string, prepMinutes int) (domain.Order, error) {
	if prepMinutes <= 0 || prepMinutes > vo.MaxPrepMinutes {
		return domain.Order{}, fmt.Errorf("service: %w: %d minutes", vo.ErrInvalidPrepTime, prepMinutes)
	}
	return s.decide(ctx, pathID("orders", id, "accept"), vo.AcceptOrder{PrepMinutes: prepMinutes})
}

func (s *OrderService) Reject(ctx context.Context, id, reason string) (domain.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Order{}, vo.ErrMissingRejectReason
	}
	return s.decide(ctx, pathID("orders", id, "reject"), vo.RejectOrder{Reason: reason})
}

func (s *OrderService) decide(ctx context.Context, endpoint string, body any) (domain.Order, error) {
	resp, err := s.client.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: endpoint,
		Body:     body,
		Quiet:    true,
	})
	if err != nil {
		return domain.Order{}, surfaceMutation(ctx, s.client, err)
	}
	return decodeOrder(resp)
}

func decodeOrder(resp *apiclient.Response) (domain.Order, error) {
	var order domain.Order
	if err := resp.Decode(&order); err != nil {
		return domain.Order{}, fmt.Errorf("service: failed to decode order: %w", err)
	}
	return order, nil
}
