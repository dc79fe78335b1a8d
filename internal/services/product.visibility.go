package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joshuarp/branchdesk/internal/apiclient"
	"github.com/joshuarp/branchdesk/internal/domain"
	"github.com/joshuarp/branchdesk/internal/domain/vo"
)

type ProductService struct {
	client APIClient
}

func NewProductService(client APIClient) *ProductService {
	return &ProductService{client: client}
}

// List serves the menu from the response cache while it is fresh.
func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	resp, err := s.client.Do(ctx, apiclient.Request{Method: http.MethodGet, Endpoint: "products", ReadCache: true})
	if err != nil {
		return nil, err
	}

	var list vo.ProductList
	if err := resp.Decode(&list); err != nil {
		return nil, fmt.Errorf("service: failed to decode products: %w", err)
	}
	return list.Products, nil
}

func (s *ProductService) SetVisibility(ctx context.Context, id string, visible bool) (domain.Product, error) {
	resp, err := s.client.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: pathID("products", id, "visibility"),
		Body:     vo.ProductVisibility{Visible: visible},
		Quiet:    true,
	})
	if err != nil {
		return domain.Product{}, surfaceMutation(ctx, s.client, err)
	}

	var product domain.Product
	if err := resp.Decode(&product); err != nil {
		return domain.Product{}, fmt.Errorf("service: failed to decode product: %w", err)
	}
	return product, nil
}
