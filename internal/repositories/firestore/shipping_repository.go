package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/gearbelt/api/internal/domain"
	pfirestore "github.com/gearbelt/api/internal/platform/firestore"
)

const shippingBracketsCollection = "shippingBrackets"

type shippingBracketDocument struct {
	MinWeight float64   `firestore:"minWeight"`
	MaxWeight float64   `firestore:"maxWeight"`
	CostCents int64     `firestore:"costCents"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func newShippingBracketDocument(bracket domain.ShippingBracket) shippingBracketDocument {
	return shippingBracketDocument{
		MinWeight: bracket.MinWeight,
		MaxWeight: bracket.MaxWeight,
		CostCents: bracket.CostCents,
		CreatedAt: bracket.CreatedAt.UTC(),
		UpdatedAt: bracket.UpdatedAt.UTC(),
	}
}

func (d shippingBracketDocument) toDomain(id string) domain.ShippingBracket {
	return domain.ShippingBracket{
		ID:        id,
		MinWeight: d.MinWeight,
		MaxWeight: d.MaxWeight,
		CostCents: d.CostCents,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// ShippingBracketRepository implements repositories.ShippingBracketRepository backed by Firestore.
type ShippingBracketRepository struct {
	provider *pfirestore.Provider
	brackets *pfirestore.BaseRepository[shippingBracketDocument]
}

// NewShippingBracketRepository constructs a Firestore-backed bracket repository.
func NewShippingBracketRepository(provider *pfirestore.Provider) (*ShippingBracketRepository, error) {
	if provider == nil {
		return nil, errors.New("shipping bracket repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[shippingBracketDocument](provider, shippingBracketsCollection, nil, nil)
	return &ShippingBracketRepository{provider: provider, brackets: base}, nil
}

// Insert creates a new bracket document, failing on duplicate IDs.
func (r *ShippingBracketRepository) Insert(ctx context.Context, bracket domain.ShippingBracket) error {
	if r == nil || r.brackets == nil {
		return errors.New("shipping bracket repository not initialised")
	}
	if strings.TrimSpace(bracket.ID) == "" {
		return errors.New("shipping bracket insert: id is required")
	}
	_, err := r.brackets.Create(ctx, bracket.ID, newShippingBracketDocument(bracket))
	return err
}

// Update overwrites the bracket document.
func (r *ShippingBracketRepository) Update(ctx context.Context, bracket domain.ShippingBracket) error {
	if r == nil || r.brackets == nil {
		return errors.New("shipping bracket repository not initialised")
	}
	if strings.TrimSpace(bracket.ID) == "" {
		return errors.New("shipping bracket update: id is required")
	}
	_, err := r.brackets.Set(ctx, bracket.ID, newShippingBracketDocument(bracket))
	return err
}

// Delete removes the bracket document.
func (r *ShippingBracketRepository) Delete(ctx context.Context, bracketID string) error {
	if r == nil || r.brackets == nil {
		return errors.New("shipping bracket repository not initialised")
	}
	return r.brackets.Delete(ctx, bracketID)
}

// FindByID fetches a single bracket.
func (r *ShippingBracketRepository) FindByID(ctx context.Context, bracketID string) (domain.ShippingBracket, error) {
	if r == nil || r.brackets == nil {
		return domain.ShippingBracket{}, errors.New("shipping bracket repository not initialised")
	}
	doc, err := r.brackets.Get(ctx, bracketID)
	if err != nil {
		return domain.ShippingBracket{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns all brackets ordered by ascending MinWeight.
func (r *ShippingBracketRepository) List(ctx context.Context) ([]domain.ShippingBracket, error) {
	if r == nil || r.brackets == nil {
		return nil, errors.New("shipping bracket repository not initialised")
	}

	docs, err := r.brackets.Query(ctx, nil)
	if err != nil {
		return nil, err
	}

	brackets := make([]domain.ShippingBracket, 0, len(docs))
	for _, doc := range docs {
		brackets = append(brackets, doc.Data.toDomain(doc.ID))
	}

	sort.Slice(brackets, func(i, j int) bool {
		return brackets[i].MinWeight < brackets[j].MinWeight
	})
	return brackets, nil
}
