package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vanshika/quickpay/internal/graph"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// WarehouseHealth pings the warehouse connection pool.
type WarehouseHealth struct {
	DB *sql.DB
}

// Probe implements HealthService.
func (h WarehouseHealth) Probe(ctx context.Context) error {
	if h.DB == nil {
		return nil
	}
	if err := h.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("warehouse: %w", err)
	}
	return nil
}

// GraphHealth verifies graph connectivity. A nil client is healthy since the
// graph is optional.
type GraphHealth struct {
	Client graph.Client
}

// Probe implements HealthService.
func (h GraphHealth) Probe(ctx context.Context) error {
	if h.Client == nil {
		return nil
	}
	if err := h.Client.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	return nil
}

// Probes runs every probe and joins their failures.
type Probes []HealthService

// Probe implements HealthService.
func (p Probes) Probe(ctx context.Context) error {
	var errs []error
	for _, probe := range p {
		errs = append(errs, probe.Probe(ctx))
	}
	return errors.Join(errs...)
}
