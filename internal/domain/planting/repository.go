package planting

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("planting not found")

// Repository defines the operations for persisting and retrieving plantings.
type Repository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*Planting, error)
	Get(ctx context.Context, id string) (*Planting, error) // ErrNotFound when missing
	Put(ctx context.Context, p *Planting) error            // insert or replace by ID
	Delete(ctx context.Context, id string) error
}
