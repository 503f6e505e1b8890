package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gearbelt/api/internal/domain"
	"github.com/gearbelt/api/internal/repositories"
)

const bracketIDPrefix = "shb_"

var (
	// ErrShippingInvalidBracket signals a malformed or overlapping bracket.
	ErrShippingInvalidBracket = errors.New("shipping: invalid bracket")
	// ErrShippingBracketNotFound indicates the bracket does not exist.
	ErrShippingBracketNotFound = errors.New("shipping: bracket not found")
)

// ShippingServiceDeps bundles the collaborators required to construct a
// shipping service.
type ShippingServiceDeps struct {
	Brackets repositories.ShippingBracketRepository
	// DefaultCostCents is charged when no bracket covers the weight.
	DefaultCostCents int64
	Clock            func() time.Time
	IDGenerator      func() string
	Logger           func(ctx context.Context, event string, fields map[string]any)
}

type shippingService struct {
	repo        repositories.ShippingBracketRepository
	defaultCost int64
	clock       func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
}

var _ ShippingService = (*shippingService)(nil)

// NewShippingService wires dependencies into a concrete ShippingService.
func NewShippingService(deps ShippingServiceDeps) (ShippingService, error) {
	if deps.Brackets == nil {
		return nil, errors.New("shipping service: bracket repository is required")
	}
	if deps.DefaultCostCents < 0 {
		return nil, errors.New("shipping service: default cost must be >= 0")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &shippingService{
		repo:        deps.Brackets,
		defaultCost: deps.DefaultCostCents,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// CostForWeight resolves the flat cost of the bracket covering totalWeight.
// A gap in the bracket table falls back to the configured default cost and is
// logged for the operator to close.
func (s *shippingService) CostForWeight(ctx context.Context, totalWeight float64) (int64, error) {
	if totalWeight < 0 {
		return 0, fmt.Errorf("%w: weight must be >= 0", ErrShippingInvalidBracket)
	}

	brackets, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	for _, bracket := range brackets {
		if bracket.Contains(totalWeight) {
			return bracket.CostCents, nil
		}
	}

	s.logger(ctx, "shipping.bracket_gap", map[string]any{
		"weight":           totalWeight,
		"defaultCostCents": s.defaultCost,
	})
	return s.defaultCost, nil
}

func (s *shippingService) CreateBracket(ctx context.Context, cmd BracketCommand) (ShippingBracket, error) {
	if err := validateBracket(cmd); err != nil {
		return ShippingBracket{}, err
	}

	now := s.clock()
	bracket := domain.ShippingBracket{
		ID:        bracketIDPrefix + s.newID(),
		MinWeight: cmd.MinWeight,
		MaxWeight: cmd.MaxWeight,
		CostCents: cmd.CostCents,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.ensureNoOverlap(ctx, bracket); err != nil {
		return ShippingBracket{}, err
	}
	if err := s.repo.Insert(ctx, bracket); err != nil {
		return ShippingBracket{}, err
	}
	return bracket, nil
}

func (s *shippingService) UpdateBracket(ctx context.Context, bracketID string, cmd BracketCommand) (ShippingBracket, error) {
	trimmed := strings.TrimSpace(bracketID)
	if trimmed == "" {
		return ShippingBracket{}, fmt.Errorf("%w: bracket id is required", ErrShippingInvalidBracket)
	}
	if err := validateBracket(cmd); err != nil {
		return ShippingBracket{}, err
	}

	existing, err := s.repo.FindByID(ctx, trimmed)
	if err != nil {
		if isNotFound(err) {
			return ShippingBracket{}, fmt.Errorf("%w: %s", ErrShippingBracketNotFound, trimmed)
		}
		return ShippingBracket{}, err
	}

	existing.MinWeight = cmd.MinWeight
	existing.MaxWeight = cmd.MaxWeight
	existing.CostCents = cmd.CostCents
	existing.UpdatedAt = s.clock()

	if err := s.ensureNoOverlap(ctx, existing); err != nil {
		return ShippingBracket{}, err
	}
	if err := s.repo.Update(ctx, existing); err != nil {
		return ShippingBracket{}, err
	}
	return existing, nil
}

func (s *shippingService) DeleteBracket(ctx context.Context, bracketID string) error {
	trimmed := strings.TrimSpace(bracketID)
	if trimmed == "" {
		return fmt.Errorf("%w: bracket id is required", ErrShippingInvalidBracket)
	}
	return s.repo.Delete(ctx, trimmed)
}

func (s *shippingService) ListBrackets(ctx context.Context) ([]ShippingBracket, error) {
	brackets, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(brackets, func(i, j int) bool { return brackets[i].MinWeight < brackets[j].MinWeight })
	return brackets, nil
}

// ensureNoOverlap rejects a bracket whose weight range intersects any other
// bracket. The candidate itself is skipped so updates can keep their range.
func (s *shippingService) ensureNoOverlap(ctx context.Context, candidate domain.ShippingBracket) error {
	brackets, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, other := range brackets {
		if other.ID == candidate.ID {
			continue
		}
		if candidate.MinWeight <= other.MaxWeight && other.MinWeight <= candidate.MaxWeight {
			return fmt.Errorf("%w: range [%g, %g] overlaps bracket %s", ErrShippingInvalidBracket, candidate.MinWeight, candidate.MaxWeight, other.ID)
		}
	}
	return nil
}

func validateBracket(cmd BracketCommand) error {
	if cmd.MinWeight < 0 {
		return fmt.Errorf("%w: min weight must be >= 0", ErrShippingInvalidBracket)
	}
	if cmd.MaxWeight < cmd.MinWeight {
		return fmt.Errorf("%w: max weight must be >= min weight", ErrShippingInvalidBracket)
	}
	if cmd.CostCents < 0 {
		return fmt.Errorf("%w: cost must be >= 0", ErrShippingInvalidBracket)
	}
	return nil
}
