package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joshuarp/branchdesk/internal/apiclient"
	"github.com/joshuarp/branchdesk/internal/domain"
	"github.com/joshuarp/branchdesk/internal/domain/vo"
)

type BranchService struct {
	client APIClient
}

func NewBranchService(client APIClient) *BranchService {
	return &BranchService{client: client}
}

func (s *BranchService) Settings(ctx context.Context) (domain.BranchSettings, error) {
	resp, err := s.client.Do(ctx, apiclient.Request{Method: http.MethodGet, Endpoint: "branch/settings"})
	if err != nil {
		return domain.BranchSettings{}, err
	}
	return decodeSettings(resp)
}

func (s *BranchService) UpdateDelivery(ctx context.Context, delivery domain.DeliverySettings) (domain.BranchSettings, error) {
	if delivery.RadiusKm < 0 || delivery.FeeMinor < 0 || delivery.MinOrderMinor < 0 || delivery.EstimatedMinutes < 0 {
		return domain.BranchSettings{}, vo.ErrInvalidDelivery
	}
	return s.update(ctx, "branch/delivery", delivery)
}

func (s *BranchService) SetOpen(ctx context.Context, open bool) (domain.BranchSettings, error) {
	return s.update(ctx, "branch/status", vo.BranchStatus{Open: open})
}

func (s *BranchService) update(ctx context.Context, endpoint string, body any) (domain.BranchSettings, error) {
	resp, err := s.client.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: endpoint,
		Body:     body,
		Quiet:    true,
	})
	if err != nil {
		return domain.BranchSettings{}, surfaceMutation(ctx, s.client, err)
	}
	return decodeSettings(resp)
}

func decodeSettings(resp *apiclient.Response) (domain.BranchSettings, error) {
	var settings domain.BranchSettings
	if err := resp.Decode(&settings); err != nil {
		return domain.BranchSettings{}, fmt.Errorf("service: failed to decode branch settings: %w", err)
	}
	return settings, nil
}
