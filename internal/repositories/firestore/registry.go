package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/gearbelt/api/internal/platform/firestore"
	"github.com/gearbelt/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry interface.
type Registry struct {
	provider *pfirestore.Provider

	products *ProductRepository
	stock    *InventoryRepository
	orders   *OrderRepository
	brackets *ShippingBracketRepository
	counters *CounterRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires the Firestore repositories against a shared provider.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	if health == nil {
		return nil, errors.New("registry requires health repository")
	}

	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	stock, err := NewInventoryRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	brackets, err := NewShippingBracketRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		products: products,
		stock:    stock,
		orders:   orders,
		brackets: brackets,
		counters: counters,
		health:   health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Products() repositories.ProductRepository { return r.products }

func (r *Registry) Inventory() repositories.InventoryRepository { return r.stock }

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) ShippingBrackets() repositories.ShippingBracketRepository { return r.brackets }

func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// errNotFound produces a NotFound gRPC status error so platform error wrapping
// categorises lookup misses consistently with native Firestore errors.
func errNotFound(msg string) error {
	return status.Error(codes.NotFound, msg)
}
