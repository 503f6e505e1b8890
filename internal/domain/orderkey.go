package domain

import "strings"

// OrderIDPrefix is prepended to internal order identifiers.
const OrderIDPrefix = "ord_"

// OrderNumberPrefix is the leading token of external order numbers.
const OrderNumberPrefix = "AP-"

// OrderKeyKind discriminates the two identifier forms an order can be looked
// up by.
type OrderKeyKind int

const (
	// OrderKeyByID selects lookup by the internal document identifier.
	OrderKeyByID OrderKeyKind = iota
	// OrderKeyByNumber selects lookup by the external order number.
	OrderKeyByNumber
)

// OrderKey is a tagged identifier resolved once at the entry boundary, so
// handlers and services never sniff identifier shapes ad hoc.
type OrderKey struct {
	Kind  OrderKeyKind
	Value string
}

// ParseOrderKey classifies a raw path or query parameter as an internal id or
// an external order number. Internal ids carry the ord_ prefix; everything
// else is treated as an order number.
func ParseOrderKey(raw string) (OrderKey, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return OrderKey{}, false
	}
	if strings.HasPrefix(trimmed, OrderIDPrefix) {
		return OrderKey{Kind: OrderKeyByID, Value: trimmed}, true
	}
	return OrderKey{Kind: OrderKeyByNumber, Value: trimmed}, true
}
