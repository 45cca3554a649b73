package cart

import (
	"errors"
	"fmt"

	"github.com/safar/go-pos-register/internal/models"
	"github.com/safar/go-pos-register/internal/stock"
)

var (
	ErrOutOfStock        = errors.New("out of stock")
	ErrStockLimitReached = errors.New("stock limit reached")
	ErrLineNotFound      = errors.New("cart line not found")
	ErrZeroDelta         = errors.New("quantity delta must not be zero")
)

// Ledger is an ordered list of cart lines. It is not safe for concurrent use;
// callers serialize access (see sale.Sale).
type Ledger struct {
	lines []models.CartLine
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Add puts one unit of product (and variation) in the cart. Stock is checked
// against the ledger as it was before the add; a matching line is merged by
// incrementing its quantity.
func (l *Ledger) Add(product models.Product, variation *models.Variation) (models.CartLine, error) {
	if stock.Remaining(product, variation, l.lines) < 1 {
		return models.CartLine{}, ErrOutOfStock
	}

	key := models.KeyFor(product, variation)
	for i := range l.lines {
		if l.lines[i].Key() == key {
			l.lines[i].Quantity++
			return l.lines[i], nil
		}
	}

	line := models.CartLine{Product: product, Variation: variation, Quantity: 1}
	l.lines = append(l.lines, line)
	return line, nil
}

// ChangeQuantity applies delta to the line at index. A line reaching zero or
// below is removed. Increments are rejected once they would exceed the
// remaining stock; decrements always succeed.
func (l *Ledger) ChangeQuantity(index, delta int) error {
	if index < 0 || index >= len(l.lines) {
		return fmt.Errorf("line %d: %w", index, ErrLineNotFound)
	}
	if delta == 0 {
		return ErrZeroDelta
	}

	line := l.lines[index]
	next := line.Quantity + delta

	if delta > 0 {
		if remaining := stock.Remaining(line.Product, line.Variation, l.lines); delta > remaining {
			return ErrStockLimitReached
		}
	}

	if next <= 0 {
		l.lines = append(l.lines[:index:index], l.lines[index+1:]...)
		return nil
	}

	l.lines[index].Quantity = next
	return nil
}

func (l *Ledger) Remove(index int) error {
	if index < 0 || index >= len(l.lines) {
		return fmt.Errorf("line %d: %w", index, ErrLineNotFound)
	}
	l.lines = append(l.lines[:index:index], l.lines[index+1:]...)
	return nil
}

func (l *Ledger) Clear() {
	l.lines = nil
}

// Lines returns a copy of the current lines.
func (l *Ledger) Lines() []models.CartLine {
	out := make([]models.CartLine, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *Ledger) Len() int {
	return len(l.lines)
}

func (l *Ledger) Empty() bool {
	return len(l.lines) == 0
}
