package repositories

import "fmt"

// InventoryErrorCode enumerates repository error causes for inventory operations.
type InventoryErrorCode string

const (
	// InventoryErrorUnknown represents an unspecified failure.
	InventoryErrorUnknown InventoryErrorCode = "inventory_unknown"
	// InventoryErrorInsufficientStock indicates a deduction would take on-hand quantity below zero.
	InventoryErrorInsufficientStock InventoryErrorCode = "inventory_insufficient_stock"
	// InventoryErrorProductNotFound indicates the referenced product does not exist.
	InventoryErrorProductNotFound InventoryErrorCode = "inventory_product_not_found"
	// InventoryErrorInvalidAdjustment indicates the caller supplied a malformed adjustment.
	InventoryErrorInvalidAdjustment InventoryErrorCode = "inventory_invalid_adjustment"
)

// InventoryError wraps inventory-specific failures with machine readable codes.
// ProductIDs lists the products the failure applies to, when known.
type InventoryError struct {
	Op         string
	Code       InventoryErrorCode
	Message    string
	ProductIDs []string
	Err        error
}

// Error implements the error interface.
func (e *InventoryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *InventoryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewInventoryError constructs a typed inventory error.
func NewInventoryError(code InventoryErrorCode, message string, err error) *InventoryError {
	if message == "" {
		message = string(code)
	}
	return &InventoryError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithProducts attaches the affected product identifiers.
func (e *InventoryError) WithProducts(productIDs ...string) *InventoryError {
	if e == nil {
		return nil
	}
	e.ProductIDs = append(e.ProductIDs, productIDs...)
	return e
}
