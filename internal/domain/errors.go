package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyOrder        = errors.New("order has no items")
	ErrCartUnavailable   = errors.New("cart could not be loaded")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrUnsupportedColor  = errors.New("unsupported color representation")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
)

// InsufficientStockError is returned by the validation gate; nothing has been
// mutated when a caller sees it.
type InsufficientStockError struct {
	ProductID string
	Color     string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	if e.Color != "" {
		return fmt.Sprintf("insufficient stock for %s (%s): need %d, have %d", e.ProductID, e.Color, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for %s: need %d, have %d", e.ProductID, e.Requested, e.Available)
}

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// NegativeStockError means applying a delta would take stock below zero.
type NegativeStockError struct {
	ProductID string
	Color     string
	Available int
	Delta     int
}

func (e *NegativeStockError) Error() string {
	target := e.ProductID
	if e.Color != "" {
		target += " (" + e.Color + ")"
	}
	return fmt.Sprintf("stock for %s would go negative: have %d, delta %d", target, e.Available, e.Delta)
}

// PartialStockUpdateError reports an order whose record exists but whose stock
// decrements did not all apply. Succeeded lists the decrements that were
// applied before the failure (and have since been compensated).
type PartialStockUpdateError struct {
	OrderID   string
	Succeeded []AdjustmentOutcome
	Failed    []AdjustmentOutcome
	Cause     error
}

func (e *PartialStockUpdateError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.ProductID)
	}
	return fmt.Sprintf("order %s: stock update failed for [%s] after %d succeeded", e.OrderID, strings.Join(ids, ","), len(e.Succeeded))
}

func (e *PartialStockUpdateError) Unwrap() error { return e.Cause }
