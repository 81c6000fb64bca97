package core

// orders.go summarizes store orders into units sold per catalog record.
//
// This is the read side of stock synchronization: an operator compares
// units sold since the last count with the import they are about to apply.
// Nothing here writes to the catalog.

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultOrderStatus is the order status summarized when none is given.
const DefaultOrderStatus = "completed"

var (
	// ErrOrdersUnsupported is returned when the gateway cannot list orders.
	ErrOrdersUnsupported = errors.New("catalog gateway does not list orders")
	// ErrInvalidOrderStatus is returned for a status the store does not know.
	ErrInvalidOrderStatus = errors.New("invalid order status")
)

// orderStatuses are the statuses WooCommerce accepts as a filter.
var orderStatuses = map[string]bool{
	"any": true, "pending": true, "processing": true, "on-hold": true,
	"completed": true, "cancelled": true, "refunded": true, "failed": true,
	"trash": true,
}

// Order is one store order with its line items.
type Order struct {
	ID        int64       `json:"id"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	LineItems []OrderLine `json:"line_items"`
}

// OrderLine is one product or variation on an order. VariationID is zero
// for simple products.
type OrderLine struct {
	ProductID   int64  `json:"product_id"`
	VariationID int64  `json:"variation_id"`
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
}

// OrderLister is implemented by gateways that can list orders.
type OrderLister interface {
	ListOrders(ctx context.Context, status string) ([]Order, error)
}

// SKUSales is the units sold of one product or variation.
type SKUSales struct {
	SKU         string `json:"sku"`
	ProductID   int64  `json:"product_id"`
	VariationID int64  `json:"variation_id,omitempty"`
	Units       int    `json:"units"`
	Orders      int    `json:"orders"`
}

// SalesReport is the summary returned by Service.SalesSummary.
type SalesReport struct {
	Status      string     `json:"status"`
	Orders      int        `json:"orders"`
	Items       []SKUSales `json:"items"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// ParseOrderStatus normalizes a status filter. Empty means DefaultOrderStatus.
func ParseOrderStatus(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultOrderStatus, nil
	}
	if !orderStatuses[s] {
		return "", fmt.Errorf("%w: %q", ErrInvalidOrderStatus, s)
	}
	return s, nil
}

// SummarizeSales totals line-item quantities per product or variation.
// Items are ordered by units sold, most first, then by SKU.
func SummarizeSales(orders []Order) []SKUSales {
	type key struct{ product, variation int64 }
	byKey := make(map[key]*SKUSales)
	lastOrder := make(map[key]int64)

	for _, o := range orders {
		for _, li := range o.LineItems {
			k := key{li.ProductID, li.VariationID}
			s, ok := byKey[k]
			if !ok {
				s = &SKUSales{SKU: li.SKU, ProductID: li.ProductID, VariationID: li.VariationID}
				byKey[k] = s
			}
			if s.SKU == "" {
				s.SKU = li.SKU
			}
			s.Units += li.Quantity
			if prev, seen := lastOrder[k]; !seen || prev != o.ID {
				s.Orders++
				lastOrder[k] = o.ID
			}
		}
	}

	out := make([]SKUSales, 0, len(byKey))
	for _, s := range byKey {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Units != out[j].Units {
			return out[i].Units > out[j].Units
		}
		if out[i].SKU != out[j].SKU {
			return out[i].SKU < out[j].SKU
		}
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].VariationID < out[j].VariationID
	})
	return out
}

// SalesSummary lists orders with the given status and totals units sold.
func (s *Service) SalesSummary(ctx context.Context, status string) (SalesReport, error) {
	status, err := ParseOrderStatus(status)
	if err != nil {
		return SalesReport{}, err
	}
	lister, ok := s.gateway.(OrderLister)
	if !ok {
		return SalesReport{}, ErrOrdersUnsupported
	}

	orders, err := lister.ListOrders(ctx, status)
	if err != nil {
		return SalesReport{}, fmt.Errorf("list %s orders: %w", status, err)
	}
	s.logger.Debug("orders summarized", "status", status, "orders", len(orders))

	return SalesReport{
		Status:      status,
		Orders:      len(orders),
		Items:       SummarizeSales(orders),
		GeneratedAt: time.Now().UTC(),
	}, nil
}
