package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stocksync/internal/core"
	"github.com/JonMunkholm/stocksync/internal/core/coretest"
	"github.com/JonMunkholm/stocksync/internal/session"
	"github.com/JonMunkholm/stocksync/internal/store"
)

func sampleOrders() []core.Order {
	return []core.Order{
		{ID: 1, Status: "completed", LineItems: []core.OrderLine{
			{ProductID: 1, SKU: "VDJ-001", Quantity: 2},
			{ProductID: 7, VariationID: 71, SKU: "TEE-RED-M", Quantity: 1},
			{ProductID: 1, SKU: "VDJ-001", Quantity: 1},
		}},
		{ID: 2, Status: "completed", LineItems: []core.OrderLine{
			{ProductID: 7, VariationID: 71, SKU: "TEE-RED-M", Quantity: 3},
			{ProductID: 2, SKU: "SCN-002", Quantity: 1},
		}},
		{ID: 3, Status: "processing", LineItems: []core.OrderLine{
			{ProductID: 2, SKU: "SCN-002", Quantity: 9},
		}},
	}
}

func TestSummarizeSales(t *testing.T) {
	got := core.SummarizeSales(sampleOrders()[:2])

	assert.Equal(t, []core.SKUSales{
		{SKU: "TEE-RED-M", ProductID: 7, VariationID: 71, Units: 4, Orders: 2},
		{SKU: "VDJ-001", ProductID: 1, Units: 3, Orders: 1},
		{SKU: "SCN-002", ProductID: 2, Units: 1, Orders: 1},
	}, got)
}

func TestSummarizeSales_Empty(t *testing.T) {
	assert.Empty(t, core.SummarizeSales(nil))
}

func TestParseOrderStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", core.DefaultOrderStatus, false},
		{" Completed ", "completed", false},
		{"on-hold", "on-hold", false},
		{"any", "any", false},
		{"shipped", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := core.ParseOrderStatus(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidOrderStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newSalesService(gw core.CatalogGateway) *core.Service {
	return core.NewService(gw, session.NewMemoryStore(time.Hour), store.NewMemoryStore(), core.ServiceConfig{})
}

func TestService_SalesSummary(t *testing.T) {
	gw := coretest.NewGateway(coretest.Product(1, "VDJ-001", 5))
	gw.AddOrders(sampleOrders()...)

	report, err := newSalesService(gw).SalesSummary(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "completed", report.Status)
	assert.Equal(t, 2, report.Orders)
	require.Len(t, report.Items, 3)
	assert.Equal(t, "TEE-RED-M", report.Items[0].SKU)
	assert.False(t, report.GeneratedAt.IsZero())

	report, err = newSalesService(gw).SalesSummary(context.Background(), "processing")
	require.NoError(t, err)
	assert.Equal(t, []core.SKUSales{{SKU: "SCN-002", ProductID: 2, Units: 9, Orders: 1}}, report.Items)
}

func TestService_SalesSummaryErrors(t *testing.T) {
	gw := coretest.NewGateway()

	_, err := newSalesService(gw).SalesSummary(context.Background(), "shipped")
	assert.ErrorIs(t, err, core.ErrInvalidOrderStatus)

	gw.OrdersErr = &core.CatalogError{Op: "list completed orders", StatusCode: 401, Err: core.ErrCatalogUnauthorized}
	_, err = newSalesService(gw).SalesSummary(context.Background(), "completed")
	assert.ErrorIs(t, err, core.ErrCatalogUnauthorized)

	// Hide ListOrders behind the bare gateway interface.
	bare := struct{ core.CatalogGateway }{gw}
	_, err = newSalesService(bare).SalesSummary(context.Background(), "completed")
	assert.True(t, errors.Is(err, core.ErrOrdersUnsupported))
}
