package domain

import (
	"errors"
	"fmt"
	"time"
)

// ShipmentStatus represents the lifecycle status of a shipment.
type ShipmentStatus string

const (
	// StatusCreated indicates the shipment exists but has no document yet.
	StatusCreated ShipmentStatus = "CREATED"
	// StatusDocumentUploaded indicates a document has been stored and queued
	// for processing.
	StatusDocumentUploaded ShipmentStatus = "DOCUMENT_UPLOADED"
	// StatusProcessed is the terminal status after background processing.
	StatusProcessed ShipmentStatus = "PROCESSED"
)

// ErrInvalidTransition is returned for an out-of-order status change.
var ErrInvalidTransition = errors.New("invalid status transition")

// allowedTransitions is the forward-only state machine.
var allowedTransitions = map[ShipmentStatus]ShipmentStatus{
	StatusCreated:          StatusDocumentUploaded,
	StatusDocumentUploaded: StatusProcessed,
}

// CanTransitionTo reports whether next is an allowed successor of s.
func (s ShipmentStatus) CanTransitionTo(next ShipmentStatus) bool {
	return allowedTransitions[s] == next
}

// Shipment is the tracked domain entity representing a package movement.
type Shipment struct {
	// ID is the store-assigned numeric identity.
	ID int64 `json:"id"`
	// ReferenceNumber is the human identity, unique case-insensitively.
	ReferenceNumber string `json:"reference_number"`
	// Sender is the originating party.
	Sender string `json:"sender"`
	// Recipient is the receiving party.
	Recipient string `json:"recipient"`
	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
	// Status is the current lifecycle status.
	Status ShipmentStatus `json:"status"`
	// LastDocumentBlobName is the blob name of the last uploaded document,
	// nil until one is uploaded.
	LastDocumentBlobName *string `json:"last_document_blob_name,omitempty"`
	// LastDocumentURL is the locator of the last uploaded document.
	LastDocumentURL *string `json:"last_document_url,omitempty"`
}

// TransitionTo advances the shipment status, rejecting out-of-order moves.
func (s *Shipment) TransitionTo(next ShipmentStatus) error {
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, next)
	}
	s.Status = next
	return nil
}
