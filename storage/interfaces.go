package storage

import (
	"context"

	"airbnb-etl/models"
)

// Store is the relational store shared by the loader and exporter.
type Store interface {
	// BeginLoad opens the single transaction a load runs in.
	BeginLoad(ctx context.Context) (LoadTx, error)
	// Count runs a query returning a single integer.
	Count(ctx context.Context, query string) (int64, error)
	// Query runs query once and buffers the full result set.
	Query(ctx context.Context, query string) (*models.ResultSet, error)
	Close() error
}

// LoadTx is the write side of a load. Nothing is visible to other connections
// until Commit.
type LoadTx interface {
	DropTables(ctx context.Context, tables ...string) error
	ExecScript(ctx context.Context, script string) error
	Columns(ctx context.Context, table string) ([]string, error)
	InsertListings(ctx context.Context, listings *models.Listings) (int64, error)
	InsertReviews(ctx context.Context, reviews []models.Review) (int64, error)
	Commit() error
	Rollback() error
}
