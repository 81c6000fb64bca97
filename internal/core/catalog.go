package core

import (
	"context"
	"errors"
	"fmt"
)

// CatalogGateway is the remote system of record for product stock.
// Credentials are supplied to the implementation at construction.
type CatalogGateway interface {
	ListProducts(ctx context.Context) ([]CatalogRecord, error)
	ListVariations(ctx context.Context, productID int64) ([]CatalogRecord, error)
	UpdateProductStock(ctx context.Context, productID int64, quantity int) (CatalogRecord, error)
	UpdateVariationStock(ctx context.Context, productID, variationID int64, quantity int) (CatalogRecord, error)
}

// CatalogPinger is implemented by gateways that can report reachability.
type CatalogPinger interface {
	Ping(ctx context.Context) error
}

// Systemic gateway conditions. Either one means every further call is
// expected to fail the same way.
var (
	ErrCatalogUnauthorized = errors.New("catalog rejected credentials")
	ErrCatalogUnreachable  = errors.New("catalog unreachable")
)

// CatalogError describes a failed gateway call.
// Err carries a systemic sentinel when one applies.
type CatalogError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *CatalogError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, msg, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// IsSystemic reports whether err means the gateway as a whole is unusable.
func IsSystemic(err error) bool {
	return errors.Is(err, ErrCatalogUnauthorized) || errors.Is(err, ErrCatalogUnreachable)
}
