package commerce

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidInput       = errors.New("invalid input")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrPartialCheckout    = errors.New("partial checkout failure")
	ErrCheckoutTimeout    = errors.New("checkout timed out, state unknown")
	ErrCheckoutInProgress = errors.New("checkout already in progress for this idempotency key")
	ErrStatusConflict     = errors.New("status changed concurrently")
)

// StockShortage describes one cart line that cannot be fulfilled.
type StockShortage struct {
	ProductID string `json:"ProductId"`
	Name      string `json:"Name"`
	Requested int    `json:"Requested"`
	Available int    `json:"Available"`
}

// InsufficientStockError lists every short line. It matches
// ErrInsufficientStock with errors.Is.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", s.ProductID, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InvalidInputError carries the names of the offending fields.
type InvalidInputError struct {
	Fields []string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Reason, strings.Join(e.Fields, ", "))
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func InvalidInput(reason string, fields ...string) error {
	return &InvalidInputError{Fields: fields, Reason: reason}
}
