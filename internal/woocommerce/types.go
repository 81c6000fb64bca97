package woocommerce

import (
	"math"
	"time"

	"github.com/JonMunkholm/stocksync/internal/core"
)

// wcProduct is the subset of a WooCommerce product used for stock sync.
// stock_quantity is null when the product does not manage stock.
type wcProduct struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	SKU         string   `json:"sku"`
	Status      string   `json:"status"` // "publish","draft","trash"
	Type        string   `json:"type"`   // "simple","variable", etc.
	ManageStock bool     `json:"manage_stock"`
	StockQty    *float64 `json:"stock_quantity"`
	Variations  []int64  `json:"variations"`
}

type wcVariation struct {
	ID          int64    `json:"id"`
	SKU         string   `json:"sku"`
	ManageStock bool     `json:"manage_stock"`
	StockQty    *float64 `json:"stock_quantity"`
}

// wcOrder is the subset of an order used for sales summaries.
// date_created is in the store's local time without a zone.
type wcOrder struct {
	ID          int64         `json:"id"`
	Status      string        `json:"status"`
	DateCreated string        `json:"date_created"`
	LineItems   []wcOrderLine `json:"line_items"`
}

type wcOrderLine struct {
	ProductID   int64   `json:"product_id"`
	VariationID int64   `json:"variation_id"`
	Quantity    float64 `json:"quantity"`
	SKU         string  `json:"sku"`
}

const wcDateLayout = "2006-01-02T15:04:05"

// wcStockUpdate is the PUT body for products and variations.
type wcStockUpdate struct {
	StockQuantity int  `json:"stock_quantity"`
	ManageStock   bool `json:"manage_stock"`
}

// wcError is the error envelope returned by the REST API.
type wcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func quantity(q *float64) int {
	if q == nil {
		return 0
	}
	return int(math.Round(*q))
}

func (p wcProduct) record() core.CatalogRecord {
	return core.CatalogRecord{
		ID:            p.ID,
		Kind:          core.KindProduct,
		SKU:           p.SKU,
		StockQuantity: quantity(p.StockQty),
		ManageStock:   p.ManageStock,
		VariationIDs:  p.Variations,
	}
}

func (v wcVariation) record(parentID int64) core.CatalogRecord {
	return core.CatalogRecord{
		ID:            v.ID,
		ParentID:      parentID,
		Kind:          core.KindVariation,
		SKU:           v.SKU,
		StockQuantity: quantity(v.StockQty),
		ManageStock:   v.ManageStock,
	}
}

func (o wcOrder) order() core.Order {
	created, _ := time.Parse(wcDateLayout, o.DateCreated)
	lines := make([]core.OrderLine, len(o.LineItems))
	for i, li := range o.LineItems {
		lines[i] = core.OrderLine{
			ProductID:   li.ProductID,
			VariationID: li.VariationID,
			SKU:         li.SKU,
			Quantity:    quantity(&li.Quantity),
		}
	}
	return core.Order{ID: o.ID, Status: o.Status, CreatedAt: created, LineItems: lines}
}
