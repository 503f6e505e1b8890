package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/gearbelt/api/internal/domain"
	pfirestore "github.com/gearbelt/api/internal/platform/firestore"
	"github.com/gearbelt/api/internal/repositories"
)

const inventoryLogCollection = "inventoryLog"

type inventoryLogDocument struct {
	ProductID      string    `firestore:"productId"`
	ActorID        string    `firestore:"actorId,omitempty"`
	QuantityChange int       `firestore:"quantityChange"`
	QuantityAfter  int       `firestore:"quantityAfter"`
	Reason         string    `firestore:"reason"`
	OrderID        string    `firestore:"orderId,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt"`
}

func (d inventoryLogDocument) toDomain(id string) domain.InventoryLogEntry {
	return domain.InventoryLogEntry{
		ID:             id,
		ProductID:      d.ProductID,
		ActorID:        d.ActorID,
		QuantityChange: d.QuantityChange,
		QuantityAfter:  d.QuantityAfter,
		Reason:         domain.InventoryReason(d.Reason),
		OrderID:        d.OrderID,
		CreatedAt:      d.CreatedAt,
	}
}

// InventoryRepository implements repositories.InventoryRepository backed by
// Firestore transactions. Quantity updates and their ledger entries commit
// atomically or not at all.
type InventoryRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
	entries  *pfirestore.BaseRepository[inventoryLogDocument]
}

// NewInventoryRepository constructs a Firestore-backed inventory repository.
func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	products := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	entries := pfirestore.NewBaseRepository[inventoryLogDocument](provider, inventoryLogCollection, nil, nil)
	return &InventoryRepository{provider: provider, products: products, entries: entries}, nil
}

// Adjust applies all adjustments in one transaction. A deduction that would
// drive any product below zero aborts the whole request with an
// InventoryError carrying the offending product IDs. With SkipMissing set,
// adjustments against products that no longer exist are dropped and reported
// in the result instead of failing the batch.
func (r *InventoryRepository) Adjust(ctx context.Context, req repositories.InventoryAdjustRequest) (repositories.InventoryAdjustResult, error) {
	if r == nil || r.provider == nil {
		return repositories.InventoryAdjustResult{}, errors.New("inventory repository not initialised")
	}
	if len(req.Adjustments) == 0 {
		return repositories.InventoryAdjustResult{}, repositories.NewInventoryError(repositories.InventoryErrorInvalidAdjustment, "inventory adjust: at least one adjustment is required", nil)
	}
	for _, adj := range req.Adjustments {
		if strings.TrimSpace(adj.ProductID) == "" {
			return repositories.InventoryAdjustResult{}, repositories.NewInventoryError(repositories.InventoryErrorInvalidAdjustment, "inventory adjust: product id is required", nil)
		}
		if strings.TrimSpace(adj.EntryID) == "" {
			return repositories.InventoryAdjustResult{}, repositories.NewInventoryError(repositories.InventoryErrorInvalidAdjustment, "inventory adjust: entry id is required", nil)
		}
		if adj.QuantityChange == 0 {
			return repositories.InventoryAdjustResult{}, repositories.NewInventoryError(repositories.InventoryErrorInvalidAdjustment, fmt.Sprintf("inventory adjust: quantity change for %s must be non-zero", adj.ProductID), nil)
		}
	}

	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var result repositories.InventoryAdjustResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// All reads happen before any write, as Firestore transactions require.
		type pendingWrite struct {
			adjustment repositories.InventoryAdjustment
			productRef *firestore.DocumentRef
			doc        productDocument
			after      int
		}

		pending := make([]pendingWrite, 0, len(req.Adjustments))
		var short []string
		var skipped []string

		for _, adj := range req.Adjustments {
			productRef, err := r.products.DocumentRef(ctx, adj.ProductID)
			if err != nil {
				return err
			}
			doc, found, err := pfirestore.TxLookup[productDocument](tx, productRef)
			if err != nil {
				return err
			}
			if !found {
				if req.SkipMissing {
					skipped = append(skipped, adj.ProductID)
					continue
				}
				return repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, fmt.Sprintf("product %s not found", adj.ProductID), nil).WithProducts(adj.ProductID)
			}

			after := doc.Quantity + adj.QuantityChange
			if after < 0 {
				short = append(short, adj.ProductID)
				continue
			}
			pending = append(pending, pendingWrite{adjustment: adj, productRef: productRef, doc: doc, after: after})
		}

		if len(short) > 0 {
			return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, fmt.Sprintf("insufficient stock for %s", strings.Join(short, ", ")), nil).WithProducts(short...)
		}

		products := make(map[string]domain.Product, len(pending))
		entries := make([]domain.InventoryLogEntry, 0, len(pending))

		for _, write := range pending {
			doc := write.doc
			doc.Quantity = write.after
			doc.UpdatedAt = now
			if err := tx.Set(write.productRef, doc); err != nil {
				return err
			}

			entryDoc := inventoryLogDocument{
				ProductID:      write.adjustment.ProductID,
				ActorID:        req.ActorID,
				QuantityChange: write.adjustment.QuantityChange,
				QuantityAfter:  write.after,
				Reason:         string(req.Reason),
				OrderID:        req.OrderID,
				CreatedAt:      now,
			}
			entryRef, err := r.entries.DocumentRef(ctx, write.adjustment.EntryID)
			if err != nil {
				return err
			}
			if err := tx.Create(entryRef, entryDoc); err != nil {
				return err
			}

			products[write.adjustment.ProductID] = doc.toDomain(write.adjustment.ProductID)
			entries = append(entries, entryDoc.toDomain(write.adjustment.EntryID))
		}

		result = repositories.InventoryAdjustResult{Products: products, Entries: entries, SkippedProducts: skipped}
		return nil
	})
	if err != nil {
		var invErr *repositories.InventoryError
		if errors.As(err, &invErr) {
			return repositories.InventoryAdjustResult{}, invErr
		}
		return repositories.InventoryAdjustResult{}, pfirestore.WrapError("inventory.adjust", err)
	}
	return result, nil
}

// History returns ledger entries matching the filter, newest first.
func (r *InventoryRepository) History(ctx context.Context, filter repositories.InventoryHistoryFilter) ([]domain.InventoryLogEntry, error) {
	if r == nil || r.entries == nil {
		return nil, errors.New("inventory repository not initialised")
	}

	docs, err := r.entries.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.ProductID != "" {
			q = q.Where("productId", "==", filter.ProductID)
		}
		if filter.OrderID != "" {
			q = q.Where("orderId", "==", filter.OrderID)
		}
		if filter.Reason != "" {
			q = q.Where("reason", "==", string(filter.Reason))
		}
		if filter.Since != nil {
			q = q.Where("createdAt", ">=", filter.Since.UTC())
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	entries := make([]domain.InventoryLogEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, doc.Data.toDomain(doc.ID))
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}
