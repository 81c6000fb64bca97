// Package coretest provides deterministic test doubles for the core package.
package coretest

import (
	"context"
	"fmt"
	"sync"

	"github.com/JonMunkholm/stocksync/internal/core"
)

// StockUpdate records one write made through the fake gateway.
type StockUpdate struct {
	ProductID   int64
	VariationID int64 // zero for simple products
	Quantity    int
}

// Gateway is an in-memory core.CatalogGateway.
//
// Writes update the stored quantity, so a second import of the same file
// sees the result of the first. Errors can be injected per record id.
type Gateway struct {
	mu         sync.Mutex
	products   []core.CatalogRecord
	variations map[int64][]core.CatalogRecord

	// ListErr fails ListProducts when set.
	ListErr error
	// VariationErr fails ListVariations when set.
	VariationErr error
	// UpdateErr fails writes to the record with the given id.
	UpdateErr map[int64]error
	// PingErr is returned by Ping.
	PingErr error
	// OrdersErr fails ListOrders when set.
	OrdersErr error

	// Block, when non-nil, is received from before every write.
	Block chan struct{}

	updates []StockUpdate
	orders  []core.Order
}

// NewGateway creates a fake with the given products.
func NewGateway(products ...core.CatalogRecord) *Gateway {
	return &Gateway{
		products:   products,
		variations: make(map[int64][]core.CatalogRecord),
		UpdateErr:  make(map[int64]error),
	}
}

// Product builds a simple product record.
func Product(id int64, sku string, qty int) core.CatalogRecord {
	return core.CatalogRecord{ID: id, Kind: core.KindProduct, SKU: sku, StockQuantity: qty, ManageStock: true}
}

// AddVariations attaches variations to a variable product.
func (g *Gateway) AddVariations(productID int64, vars ...core.CatalogRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.products {
		if g.products[i].ID != productID {
			continue
		}
		for _, v := range vars {
			v.Kind = core.KindVariation
			v.ParentID = productID
			g.products[i].VariationIDs = append(g.products[i].VariationIDs, v.ID)
			g.variations[productID] = append(g.variations[productID], v)
		}
	}
}

func (g *Gateway) ListProducts(ctx context.Context) ([]core.CatalogRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ListErr != nil {
		return nil, g.ListErr
	}
	out := make([]core.CatalogRecord, len(g.products))
	copy(out, g.products)
	return out, nil
}

func (g *Gateway) ListVariations(ctx context.Context, productID int64) ([]core.CatalogRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.VariationErr != nil {
		return nil, g.VariationErr
	}
	vars := g.variations[productID]
	out := make([]core.CatalogRecord, len(vars))
	copy(out, vars)
	return out, nil
}

func (g *Gateway) UpdateProductStock(ctx context.Context, productID int64, quantity int) (core.CatalogRecord, error) {
	if err := g.wait(ctx); err != nil {
		return core.CatalogRecord{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.UpdateErr[productID]; err != nil {
		return core.CatalogRecord{}, err
	}
	for i := range g.products {
		if g.products[i].ID == productID {
			g.products[i].StockQuantity = quantity
			g.products[i].ManageStock = true
			g.updates = append(g.updates, StockUpdate{ProductID: productID, Quantity: quantity})
			return g.products[i], nil
		}
	}
	return core.CatalogRecord{}, &core.CatalogError{
		Op:         fmt.Sprintf("update product %d", productID),
		StatusCode: 404,
		Message:    "Invalid ID.",
	}
}

func (g *Gateway) UpdateVariationStock(ctx context.Context, productID, variationID int64, quantity int) (core.CatalogRecord, error) {
	if err := g.wait(ctx); err != nil {
		return core.CatalogRecord{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.UpdateErr[variationID]; err != nil {
		return core.CatalogRecord{}, err
	}
	vars := g.variations[productID]
	for i := range vars {
		if vars[i].ID == variationID {
			vars[i].StockQuantity = quantity
			vars[i].ManageStock = true
			g.updates = append(g.updates, StockUpdate{ProductID: productID, VariationID: variationID, Quantity: quantity})
			return vars[i], nil
		}
	}
	return core.CatalogRecord{}, &core.CatalogError{
		Op:         fmt.Sprintf("update variation %d", variationID),
		StatusCode: 404,
		Message:    "Invalid ID.",
	}
}

// AddOrders appends orders returned by ListOrders.
func (g *Gateway) AddOrders(orders ...core.Order) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders = append(g.orders, orders...)
}

// ListOrders implements core.OrderLister. Status "any" returns every order.
func (g *Gateway) ListOrders(ctx context.Context, status string) ([]core.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.OrdersErr != nil {
		return nil, g.OrdersErr
	}
	var out []core.Order
	for _, o := range g.orders {
		if status == "any" || o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

// Ping implements core.CatalogPinger.
func (g *Gateway) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.PingErr
}

// Updates returns the writes made so far in call order.
func (g *Gateway) Updates() []StockUpdate {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]StockUpdate, len(g.updates))
	copy(out, g.updates)
	return out
}

// Quantity returns the stored quantity for a product or variation id.
func (g *Gateway) Quantity(id int64) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.products {
		if p.ID == id {
			return p.StockQuantity, true
		}
	}
	for _, vars := range g.variations {
		for _, v := range vars {
			if v.ID == id {
				return v.StockQuantity, true
			}
		}
	}
	return 0, false
}

func (g *Gateway) wait(ctx context.Context) error {
	if g.Block == nil {
		return ctx.Err()
	}
	select {
	case <-g.Block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
