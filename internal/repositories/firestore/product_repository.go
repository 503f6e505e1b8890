package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/gearbelt/api/internal/domain"
	pfirestore "github.com/gearbelt/api/internal/platform/firestore"
	"github.com/gearbelt/api/internal/repositories"
)

const productsCollection = "products"

type productDocument struct {
	PartNumber  string    `firestore:"partNumber"`
	Name        string    `firestore:"name"`
	Description string    `firestore:"description"`
	PriceCents  int64     `firestore:"priceCents"`
	Weight      float64   `firestore:"weight"`
	Quantity    int       `firestore:"quantity"`
	ImageURL    string    `firestore:"imageUrl,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func newProductDocument(product domain.Product) productDocument {
	return productDocument{
		PartNumber:  product.PartNumber,
		Name:        product.Name,
		Description: product.Description,
		PriceCents:  product.PriceCents,
		Weight:      product.Weight,
		Quantity:    product.Quantity,
		ImageURL:    product.ImageURL,
		CreatedAt:   product.CreatedAt.UTC(),
		UpdatedAt:   product.UpdatedAt.UTC(),
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:          id,
		PartNumber:  d.PartNumber,
		Name:        d.Name,
		Description: d.Description,
		PriceCents:  d.PriceCents,
		Weight:      d.Weight,
		Quantity:    d.Quantity,
		ImageURL:    d.ImageURL,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// ProductRepository implements repositories.ProductRepository backed by Firestore.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &ProductRepository{provider: provider, products: base}, nil
}

// Insert creates a new product document, failing on duplicate IDs.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.products == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product insert: id is required")
	}
	_, err := r.products.Create(ctx, product.ID, newProductDocument(product))
	return err
}

// Update overwrites the product document.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.products == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product update: id is required")
	}
	_, err := r.products.Set(ctx, product.ID, newProductDocument(product))
	return err
}

// Delete removes the product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	if r == nil || r.products == nil {
		return errors.New("product repository not initialised")
	}
	return r.products.Delete(ctx, productID)
}

// FindByID fetches a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByPartNumber looks a product up by its unique part number.
func (r *ProductRepository) FindByPartNumber(ctx context.Context, partNumber string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	trimmed := strings.TrimSpace(partNumber)
	if trimmed == "" {
		return domain.Product{}, errors.New("product lookup: part number is required")
	}

	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("partNumber", "==", trimmed).Limit(1)
	})
	if err != nil {
		return domain.Product{}, err
	}
	if len(docs) == 0 {
		return domain.Product{}, pfirestore.WrapError("products.find_by_part_number", errNotFound("product with part number "+trimmed))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// List returns products matching the filter, ordered by name. Substring search
// is applied in memory because Firestore has no native contains operator.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	if r == nil || r.products == nil {
		return nil, errors.New("product repository not initialised")
	}

	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.MinPriceCents != nil {
			q = q.Where("priceCents", ">=", *filter.MinPriceCents)
		}
		if filter.MaxPriceCents != nil {
			q = q.Where("priceCents", "<=", *filter.MaxPriceCents)
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		product := doc.Data.toDomain(doc.ID)
		if filter.InStockOnly && product.Quantity <= 0 {
			continue
		}
		if filter.MaxQuantity != nil && product.Quantity > *filter.MaxQuantity {
			continue
		}
		if search != "" && !productMatches(product, search) {
			continue
		}
		products = append(products, product)
	}

	sort.Slice(products, func(i, j int) bool {
		return products[i].Name < products[j].Name
	})

	if filter.Limit > 0 && len(products) > filter.Limit {
		products = products[:filter.Limit]
	}
	return products, nil
}

func productMatches(product domain.Product, search string) bool {
	return strings.Contains(strings.ToLower(product.PartNumber), search) ||
		strings.Contains(strings.ToLower(product.Name), search) ||
		strings.Contains(strings.ToLower(product.Description), search)
}
