// Package graph abstracts the relationship graph the loaders write users,
// devices, banks, merchants and transactions into.
package graph

import (
	"context"
	"errors"
)

// Client is the contract the repository needs from a graph database.
type Client interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Result holds the records of one statement.
type Result struct {
	Records []Record
}

// Record maps a returned column to its value.
type Record map[string]any

// ErrMissingURI is returned when the graph is requested without a URI.
var ErrMissingURI = errors.New("graph URI is required")
