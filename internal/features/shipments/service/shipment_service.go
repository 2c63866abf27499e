// Package service implements the shipment use cases: creation, lookup,
// listing and the document upload orchestration.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shipdocs/internal/core/logger"
	"shipdocs/internal/core/queue"
	"shipdocs/internal/core/retry"
	"shipdocs/internal/features/shipments/domain"
	"shipdocs/internal/features/shipments/ports"
)

// Caller-facing messages for the upload operation. Full error detail is
// logged server-side; callers only ever see these.
const (
	MsgFileRequired     = "File is required"
	MsgShipmentNotFound = "Shipment not found"
	MsgInvalidFileName  = "Invalid file name"
	MsgUploadFailed     = "An error occurred while uploading the document. Please try again later."
	MsgCancelled        = "Operation was cancelled"
)

// DefaultPageSize and MaxPageSize bound the listing operation.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ShipmentService orchestrates shipment operations over the storage ports and
// the message queue.
type ShipmentService struct {
	shipments ports.ShipmentStore
	objects   ports.ObjectStore
	queue     queue.Queue
	retry     *retry.Policy
}

// NewShipmentService creates the service. A nil policy selects the default
// 3-attempt exponential backoff with retry warnings logged.
func NewShipmentService(shipments ports.ShipmentStore, objects ports.ObjectStore, q queue.Queue, policy *retry.Policy) *ShipmentService {
	if policy == nil {
		policy = retry.Default()
	}
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			logger.Get().Warn("retrying operation",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}
	}
	return &ShipmentService{
		shipments: shipments,
		objects:   objects,
		queue:     q,
		retry:     policy,
	}
}

// CreateShipmentRequest carries the inbound shipment creation data.
type CreateShipmentRequest struct {
	ReferenceNumber string
	Sender          string
	Recipient       string
}

// CreateShipment inserts a new shipment in the Created status. The store's
// uniqueness constraint on the reference number surfaces as
// ports.ErrDuplicateReference.
func (s *ShipmentService) CreateShipment(ctx context.Context, req CreateShipmentRequest) (*domain.Shipment, error) {
	log := logger.Get()
	log.Info("creating shipment", zap.String("reference_number", req.ReferenceNumber))

	shipment := &domain.Shipment{
		ReferenceNumber: req.ReferenceNumber,
		Sender:          req.Sender,
		Recipient:       req.Recipient,
		CreatedAt:       time.Now().UTC(),
		Status:          domain.StatusCreated,
	}

	created, err := s.shipments.Create(ctx, shipment)
	if err != nil {
		if errors.Is(err, ports.ErrDuplicateReference) {
			log.Warn("duplicate reference number", zap.String("reference_number", req.ReferenceNumber))
			return nil, err
		}
		return nil, fmt.Errorf("failed to create shipment: %w", err)
	}

	log.Info("shipment created",
		zap.Int64("shipment_id", created.ID),
		zap.String("reference_number", created.ReferenceNumber),
	)
	return created, nil
}

// GetShipment returns the shipment with the given id.
func (s *ShipmentService) GetShipment(ctx context.Context, id int64) (*domain.Shipment, error) {
	return s.shipments.GetByID(ctx, id)
}

// ShipmentPage is a page of shipments plus pagination metadata.
type ShipmentPage struct {
	Items    []domain.Shipment `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// ListShipments returns a page of shipments, newest first. Page defaults to 1
// and pageSize to DefaultPageSize, capped at MaxPageSize.
func (s *ShipmentService) ListShipments(ctx context.Context, page, pageSize int) (*ShipmentPage, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	} else if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	items, err := s.shipments.List(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list shipments: %w", err)
	}

	total, err := s.shipments.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count shipments: %w", err)
	}

	return &ShipmentPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// UploadDocumentRequest carries the inbound document upload data.
type UploadDocumentRequest struct {
	ShipmentID    int64
	File          io.Reader
	FileName      string
	ContentType   string
	ContainerName string
}

// UploadDocumentResponse is the typed result of the upload operation. No
// error ever escapes UploadDocument; failures are reported here.
type UploadDocumentResponse struct {
	Success      bool   `json:"success"`
	BlobName     string `json:"blob_name,omitempty"`
	BlobURL      string `json:"blob_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// UploadDocument stores the document blob with retry, records the shipment
// status change and enqueues a processing message with retry. The blob write,
// the shipment update and the publish are not transactional: a publish
// failure after the update leaves the shipment DocumentUploaded with no
// message delivered.
func (s *ShipmentService) UploadDocument(ctx context.Context, req UploadDocumentRequest) UploadDocumentResponse {
	log := logger.Get()
	log.Info("uploading document", zap.Int64("shipment_id", req.ShipmentID))

	if req.File == nil {
		log.Warn("missing file stream", zap.Int64("shipment_id", req.ShipmentID))
		return failure(MsgFileRequired)
	}

	shipment, err := s.shipments.GetByID(ctx, req.ShipmentID)
	if err != nil {
		if errors.Is(err, ports.ErrShipmentNotFound) {
			log.Warn("shipment not found", zap.Int64("shipment_id", req.ShipmentID))
			return failure(MsgShipmentNotFound)
		}
		return s.uploadError(err, req.ShipmentID)
	}

	fileName := sanitizeFileName(req.FileName)
	if fileName == "" {
		log.Warn("invalid file name",
			zap.Int64("shipment_id", req.ShipmentID),
			zap.String("file_name", req.FileName),
		)
		return failure(MsgInvalidFileName)
	}

	blobName := fmt.Sprintf("%d/%s_%s", req.ShipmentID, uuid.New(), fileName)

	body, err := rewindableBody(req.File)
	if err != nil {
		return s.uploadError(err, req.ShipmentID)
	}

	blobURL, err := retry.DoWithResult(ctx, s.retry, func() (string, error) {
		// A failed attempt may have consumed part of the stream.
		if _, serr := body.Seek(0, io.SeekStart); serr != nil {
			return "", fmt.Errorf("failed to rewind document stream: %w", serr)
		}
		return s.objects.Put(ctx, req.ContainerName, blobName, body, req.ContentType)
	})
	if err != nil {
		return s.uploadError(err, req.ShipmentID)
	}

	shipment.LastDocumentBlobName = &blobName
	shipment.LastDocumentURL = &blobURL
	if terr := shipment.TransitionTo(domain.StatusDocumentUploaded); terr != nil {
		// Repeat uploads keep the shipment's later status; only the
		// document fields move forward.
		log.Warn("keeping shipment status",
			zap.Int64("shipment_id", req.ShipmentID),
			zap.String("status", string(shipment.Status)),
		)
	}

	if err := s.shipments.Update(ctx, shipment); err != nil {
		return s.uploadError(err, req.ShipmentID)
	}

	payload, err := json.Marshal(domain.DocumentMessage{ShipmentID: req.ShipmentID, BlobName: blobName})
	if err != nil {
		return s.uploadError(err, req.ShipmentID)
	}

	err = retry.Do(ctx, s.retry, func() error {
		return s.queue.Publish(ctx, string(payload))
	})
	if err != nil {
		return s.uploadError(err, req.ShipmentID)
	}

	log.Info("document uploaded",
		zap.Int64("shipment_id", req.ShipmentID),
		zap.String("blob_name", blobName),
	)
	return UploadDocumentResponse{Success: true, BlobName: blobName, BlobURL: blobURL}
}

// rewindableBody makes the upload stream restartable so every retry attempt
// writes the document from the start. Non-seekable readers are buffered once.
func rewindableBody(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document stream: %w", err)
	}
	return bytes.NewReader(data), nil
}

// sanitizeFileName strips any directory component and rejects names that
// reduce to nothing. Backslash separators are stripped too; Windows-style
// paths keep them on Linux.
func sanitizeFileName(name string) string {
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		name = name[i+1:]
	}
	base := filepath.Base(name)
	if base == "." || base == ".." || base == "/" || base == string(filepath.Separator) {
		return ""
	}
	return base
}

func failure(msg string) UploadDocumentResponse {
	return UploadDocumentResponse{Success: false, ErrorMessage: msg}
}

// uploadError distinguishes an honored cancellation from infrastructure
// failure; both are logged in full and sanitized for the caller.
func (s *ShipmentService) uploadError(err error, shipmentID int64) UploadDocumentResponse {
	log := logger.Get()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Warn("document upload cancelled",
			zap.Int64("shipment_id", shipmentID),
			zap.Error(err),
		)
		return failure(MsgCancelled)
	}

	log.Error("document upload failed",
		zap.Int64("shipment_id", shipmentID),
		zap.Error(err),
	)
	return failure(MsgUploadFailed)
}
