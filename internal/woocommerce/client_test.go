package woocommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stocksync/internal/core"
)

const (
	testKey    = "ck_test"
	testSecret = "cs_test"
)

func newTestClient(t *testing.T, h http.Handler, pageSize int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		StoreURL:          srv.URL + "/",
		ConsumerKey:       testKey,
		ConsumerSecret:    testSecret,
		RequestsPerSecond: 1000,
		PageSize:          pageSize,
	})
	require.NoError(t, err)
	return c
}

func requireAuth(t *testing.T, r *http.Request) {
	t.Helper()
	user, pass, ok := r.BasicAuth()
	assert.True(t, ok, "basic auth missing")
	assert.Equal(t, testKey, user)
	assert.Equal(t, testSecret, pass)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{ConsumerKey: "k", ConsumerSecret: "s"})
	assert.Error(t, err)

	_, err = New(Config{StoreURL: "not a url", ConsumerKey: "k", ConsumerSecret: "s"})
	assert.Error(t, err)

	_, err = New(Config{StoreURL: "https://shop.example.com"})
	assert.Error(t, err)

	c, err := New(Config{StoreURL: " https://shop.example.com/ ", ConsumerKey: "k", ConsumerSecret: "s"})
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/wp-json/wc/v3", c.baseURL)
	assert.Equal(t, DefaultPageSize, c.pageSize)
}

func TestListProducts_PaginatesWithTotalPagesHeader(t *testing.T) {
	var mu sync.Mutex
	var pages []string

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		assert.Equal(t, "/wp-json/wc/v3/products", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		mu.Lock()
		pages = append(pages, r.URL.Query().Get("page"))
		mu.Unlock()

		w.Header().Set("X-WP-TotalPages", "2")
		qty := float64(page * 10)
		body := []wcProduct{
			{ID: int64(page*10 + 1), SKU: fmt.Sprintf("P%d-A", page), StockQty: &qty, ManageStock: true},
		}
		if page == 1 {
			body = append(body, wcProduct{ID: 12, SKU: "VAR", Type: "variable", Variations: []int64{101, 102}})
		}
		writeJSON(w, http.StatusOK, body)
	})

	c := newTestClient(t, h, 2)
	products, err := c.ListProducts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, pages)
	require.Len(t, products, 3)
	assert.Equal(t, core.CatalogRecord{ID: 11, Kind: core.KindProduct, SKU: "P1-A", StockQuantity: 10, ManageStock: true}, products[0])
	assert.Equal(t, []int64{101, 102}, products[1].VariationIDs)
	assert.Equal(t, 0, products[1].StockQuantity, "null stock_quantity reads as zero")
	assert.Equal(t, 20, products[2].StockQuantity)
}

func TestListProducts_StopsOnShortPageWithoutHeader(t *testing.T) {
	calls := 0
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			writeJSON(w, http.StatusOK, []wcProduct{{ID: 1, SKU: "A"}, {ID: 2, SKU: "B"}})
			return
		}
		writeJSON(w, http.StatusOK, []wcProduct{{ID: 3, SKU: "C"}})
	})

	c := newTestClient(t, h, 2)
	products, err := c.ListProducts(context.Background())

	require.NoError(t, err)
	assert.Len(t, products, 3)
	assert.Equal(t, 2, calls)
}

func TestListVariations(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/products/12/variations", r.URL.Path)
		w.Header().Set("X-WP-TotalPages", "1")
		qty := 4.0
		writeJSON(w, http.StatusOK, []wcVariation{{ID: 101, SKU: "VAR-RED", StockQty: &qty, ManageStock: true}})
	})

	c := newTestClient(t, h, 0)
	vars, err := c.ListVariations(context.Background(), 12)

	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.Equal(t, core.CatalogRecord{
		ID: 101, ParentID: 12, Kind: core.KindVariation, SKU: "VAR-RED", StockQuantity: 4, ManageStock: true,
	}, vars[0])
}

func TestUpdateProductStock(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/wp-json/wc/v3/products/7", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"stock_quantity":15,"manage_stock":true}`, string(raw))

		qty := 15.0
		writeJSON(w, http.StatusOK, wcProduct{ID: 7, SKU: "A", StockQty: &qty, ManageStock: true})
	})

	c := newTestClient(t, h, 0)
	rec, err := c.UpdateProductStock(context.Background(), 7, 15)

	require.NoError(t, err)
	assert.Equal(t, 15, rec.StockQuantity)
	assert.True(t, rec.ManageStock)
}

func TestUpdateVariationStock(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/wp-json/wc/v3/products/12/variations/101", r.URL.Path)
		qty := 9.0
		writeJSON(w, http.StatusOK, wcVariation{ID: 101, SKU: "VAR-RED", StockQty: &qty, ManageStock: true})
	})

	c := newTestClient(t, h, 0)
	rec, err := c.UpdateVariationStock(context.Background(), 12, 101, 9)

	require.NoError(t, err)
	assert.Equal(t, int64(12), rec.ParentID)
	assert.Equal(t, 9, rec.StockQuantity)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       any
		wantSystem error
		wantMsg    string
	}{
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       wcError{Code: "woocommerce_rest_cannot_view", Message: "Sorry, you cannot list resources."},
			wantSystem: core.ErrCatalogUnauthorized,
			wantMsg:    "Sorry, you cannot list resources.",
		},
		{
			name:       "forbidden",
			status:     http.StatusForbidden,
			body:       wcError{Message: "Forbidden"},
			wantSystem: core.ErrCatalogUnauthorized,
		},
		{
			name:       "service unavailable",
			status:     http.StatusServiceUnavailable,
			body:       "maintenance",
			wantSystem: core.ErrCatalogUnreachable,
		},
		{
			name:    "bad request carries store message",
			status:  http.StatusBadRequest,
			body:    wcError{Code: "rest_invalid_param", Message: "Invalid parameter(s): stock_quantity"},
			wantMsg: "Invalid parameter(s): stock_quantity",
		},
		{
			name:    "not found without envelope",
			status:  http.StatusNotFound,
			body:    "nope",
			wantMsg: "Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			c := newTestClient(t, h, 0)

			_, err := c.UpdateProductStock(context.Background(), 1, 1)
			require.Error(t, err)

			var ce *core.CatalogError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.status, ce.StatusCode)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, ce.Message)
			}
			if tt.wantSystem != nil {
				assert.ErrorIs(t, err, tt.wantSystem)
				assert.True(t, core.IsSystemic(err))
			} else {
				assert.False(t, core.IsSystemic(err))
			}
		})
	}
}

func TestUnreachableStore(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{StoreURL: url, ConsumerKey: "k", ConsumerSecret: "s", RequestsPerSecond: 1000})
	require.NoError(t, err)

	_, err = c.ListProducts(context.Background())
	assert.ErrorIs(t, err, core.ErrCatalogUnreachable)
}

func TestPing(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/system_status", r.URL.Path)
		user, _, _ := r.BasicAuth()
		if user != testKey {
			writeJSON(w, http.StatusUnauthorized, wcError{Message: "Consumer key is invalid."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"environment": map[string]any{}})
	})
	c := newTestClient(t, h, 0)
	require.NoError(t, c.Ping(context.Background()))

	c.key = "wrong"
	assert.ErrorIs(t, c.Ping(context.Background()), core.ErrCatalogUnauthorized)
}

func TestCancelledContext(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []wcProduct{})
	})
	c := newTestClient(t, h, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListProducts(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, core.IsSystemic(err))
}

func TestClientSatisfiesGateway(t *testing.T) {
	var _ core.CatalogGateway = (*Client)(nil)
	var _ core.CatalogPinger = (*Client)(nil)
	var _ core.OrderLister = (*Client)(nil)
}

func TestListOrders(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		assert.Equal(t, "/wp-json/wc/v3/orders", r.URL.Path)
		assert.Equal(t, "completed", r.URL.Query().Get("status"))
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))

		w.Header().Set("X-WP-TotalPages", "2")
		switch r.URL.Query().Get("page") {
		case "1":
			writeJSON(w, http.StatusOK, []map[string]any{{
				"id":           101,
				"status":       "completed",
				"date_created": "2024-03-05T14:30:00",
				"line_items": []map[string]any{
					{"product_id": 1, "variation_id": 0, "quantity": 2, "sku": "VDJ-001"},
					{"product_id": 7, "variation_id": 71, "quantity": 1, "sku": "TEE-RED-M"},
				},
			}})
		default:
			writeJSON(w, http.StatusOK, []map[string]any{{
				"id": 102, "status": "completed", "date_created": "not a date",
				"line_items": []map[string]any{},
			}})
		}
	})
	c := newTestClient(t, h, 1)

	orders, err := c.ListOrders(context.Background(), "completed")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	first := orders[0]
	assert.Equal(t, int64(101), first.ID)
	assert.Equal(t, time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC), first.CreatedAt)
	assert.Equal(t, []core.OrderLine{
		{ProductID: 1, SKU: "VDJ-001", Quantity: 2},
		{ProductID: 7, VariationID: 71, SKU: "TEE-RED-M", Quantity: 1},
	}, first.LineItems)

	assert.True(t, orders[1].CreatedAt.IsZero())
	assert.Empty(t, orders[1].LineItems)
}

func TestListOrders_Unauthorized(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"code": "woocommerce_rest_cannot_view", "message": "Sorry, you cannot list resources.",
		})
	})
	c := newTestClient(t, h, 10)

	_, err := c.ListOrders(context.Background(), "completed")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCatalogUnauthorized)
}
