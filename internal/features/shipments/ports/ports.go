// Package ports defines the storage contracts the shipments feature depends
// on, implemented by the adapters package.
package ports

import (
	"context"
	"errors"
	"io"

	"shipdocs/internal/features/shipments/domain"
)

var (
	// ErrShipmentNotFound is returned when no shipment matches the lookup.
	ErrShipmentNotFound = errors.New("shipment not found")
	// ErrDuplicateReference is returned when a reference number is already in
	// use, enforced by the store's uniqueness constraint.
	ErrDuplicateReference = errors.New("reference number already exists")
	// ErrObjectNotFound is returned when a blob does not exist.
	ErrObjectNotFound = errors.New("object not found")
)

// ShipmentStore is the durable shipment record store.
type ShipmentStore interface {
	// Create inserts the shipment and returns it with the assigned id.
	// Returns ErrDuplicateReference when the reference number is taken.
	Create(ctx context.Context, shipment *domain.Shipment) (*domain.Shipment, error)

	// GetByID returns the shipment with the given id or ErrShipmentNotFound.
	GetByID(ctx context.Context, id int64) (*domain.Shipment, error)

	// GetByReferenceNumber looks a shipment up case-insensitively.
	GetByReferenceNumber(ctx context.Context, referenceNumber string) (*domain.Shipment, error)

	// List returns a page of shipments ordered by creation time, newest first.
	List(ctx context.Context, page, pageSize int) ([]domain.Shipment, error)

	// Count returns the total number of shipments.
	Count(ctx context.Context) (int64, error)

	// Update persists the mutable fields of the shipment.
	Update(ctx context.Context, shipment *domain.Shipment) error
}

// ObjectStore is the durable blob store keyed by (container, name).
type ObjectStore interface {
	// Put stores the data under container/name, creating the container if
	// needed, and returns the blob locator URL. Put is idempotent by name.
	Put(ctx context.Context, container, name string, data io.Reader, contentType string) (string, error)

	// Get returns a reader for the named blob or ErrObjectNotFound.
	Get(ctx context.Context, container, name string) (io.ReadCloser, error)
}
