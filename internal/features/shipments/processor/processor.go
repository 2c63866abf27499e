// Package processor runs the background worker that completes document
// processing for uploaded shipment documents.
package processor

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"shipdocs/internal/core/logger"
	"shipdocs/internal/core/queue"
	"shipdocs/internal/features/shipments/domain"
	"shipdocs/internal/features/shipments/ports"
)

// DefaultContainer is the processing container used when none is configured.
const DefaultContainer = "shipments-documents"

// DocumentProcessor is the single consumer of the document message queue. For
// each message it fetches the blob and advances the shipment to Processed.
// Delivery is at-most-once: a message that fails is logged and dropped.
type DocumentProcessor struct {
	queue     queue.Queue
	objects   ports.ObjectStore
	shipments ports.ShipmentStore
	container string
}

// New creates a processor reading blobs from the given container, falling
// back to DefaultContainer when unset.
func New(q queue.Queue, objects ports.ObjectStore, shipments ports.ShipmentStore, container string) *DocumentProcessor {
	if container == "" {
		container = DefaultContainer
	}
	return &DocumentProcessor{
		queue:     q,
		objects:   objects,
		shipments: shipments,
		container: container,
	}
}

// Run drains the queue until it is closed. A failure processing one message
// never stops the loop.
func (p *DocumentProcessor) Run(ctx context.Context) {
	log := logger.Get()
	log.Info("document processor started", zap.String("container", p.container))

	for msg := range p.queue.Messages() {
		p.processMessage(ctx, msg)
	}

	log.Info("document processor stopped")
}

func (p *DocumentProcessor) processMessage(ctx context.Context, body string) {
	log := logger.Get()

	if body == "" {
		log.Warn("received empty message")
		return
	}

	var msg domain.DocumentMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil || msg.BlobName == "" {
		log.Warn("invalid message payload", zap.String("body", body), zap.Error(err))
		return
	}

	log.Info("processing document",
		zap.Int64("shipment_id", msg.ShipmentID),
		zap.String("blob_name", msg.BlobName),
	)

	// Single attempt: a download failure drops the message.
	blob, err := p.objects.Get(ctx, p.container, msg.BlobName)
	if err != nil {
		log.Error("failed to download document",
			zap.Int64("shipment_id", msg.ShipmentID),
			zap.String("blob_name", msg.BlobName),
			zap.Error(err),
		)
		return
	}
	blob.Close()

	shipment, err := p.shipments.GetByID(ctx, msg.ShipmentID)
	if err != nil {
		if errors.Is(err, ports.ErrShipmentNotFound) {
			log.Warn("shipment not found", zap.Int64("shipment_id", msg.ShipmentID))
		} else {
			log.Error("failed to load shipment",
				zap.Int64("shipment_id", msg.ShipmentID),
				zap.Error(err),
			)
		}
		return
	}

	if err := shipment.TransitionTo(domain.StatusProcessed); err != nil {
		log.Warn("skipping status transition",
			zap.Int64("shipment_id", msg.ShipmentID),
			zap.Error(err),
		)
		return
	}

	if err := p.shipments.Update(ctx, shipment); err != nil {
		log.Error("failed to update shipment",
			zap.Int64("shipment_id", msg.ShipmentID),
			zap.Error(err),
		)
		return
	}

	log.Info("document processed",
		zap.Int64("shipment_id", msg.ShipmentID),
		zap.String("blob_name", msg.BlobName),
	)
}
