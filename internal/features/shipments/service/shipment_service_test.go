package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipdocs/internal/core/queue"
	"shipdocs/internal/core/retry"
	"shipdocs/internal/features/shipments/domain"
	"shipdocs/internal/features/shipments/ports"
)

// mockShipmentStore is a hand-written ports.ShipmentStore.
type mockShipmentStore struct {
	shipment  *domain.Shipment
	getErr    error
	createErr error
	updateErr error
	listItems []domain.Shipment
	total     int64

	getCalls    int
	updateCalls int
	updated     *domain.Shipment
	listPage    int
	listSize    int
}

func (m *mockShipmentStore) Create(ctx context.Context, s *domain.Shipment) (*domain.Shipment, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	s.ID = 1
	return s, nil
}

func (m *mockShipmentStore) GetByID(ctx context.Context, id int64) (*domain.Shipment, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.shipment, nil
}

func (m *mockShipmentStore) GetByReferenceNumber(ctx context.Context, ref string) (*domain.Shipment, error) {
	return m.shipment, m.getErr
}

func (m *mockShipmentStore) List(ctx context.Context, page, pageSize int) ([]domain.Shipment, error) {
	m.listPage = page
	m.listSize = pageSize
	return m.listItems, nil
}

func (m *mockShipmentStore) Count(ctx context.Context) (int64, error) {
	return m.total, nil
}

func (m *mockShipmentStore) Update(ctx context.Context, s *domain.Shipment) error {
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	copied := *s
	m.updated = &copied
	return nil
}

// mockObjectStore is a hand-written ports.ObjectStore.
type mockObjectStore struct {
	url      string
	err      error
	failures int // fail this many Puts before succeeding

	putCalls int
	getCalls int
}

func (m *mockObjectStore) Put(ctx context.Context, container, name string, data io.Reader, contentType string) (string, error) {
	m.putCalls++
	if m.err != nil {
		return "", m.err
	}
	if m.putCalls <= m.failures {
		return "", errors.New("transient storage error")
	}
	return m.url, nil
}

func (m *mockObjectStore) Get(ctx context.Context, container, name string) (io.ReadCloser, error) {
	m.getCalls++
	return io.NopCloser(strings.NewReader("")), nil
}

// consumingObjectStore drains the body on every Put like a real network
// client, failing a configured number of attempts first. It records how many
// bytes each attempt saw.
type consumingObjectStore struct {
	url      string
	failures int

	reads []int
}

func (m *consumingObjectStore) Put(ctx context.Context, container, name string, data io.Reader, contentType string) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	m.reads = append(m.reads, len(b))
	if len(m.reads) <= m.failures {
		return "", errors.New("transient storage error")
	}
	return m.url, nil
}

func (m *consumingObjectStore) Get(ctx context.Context, container, name string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

// mockQueue records published payloads.
type mockQueue struct {
	published []string
	err       error
	ch        chan string
}

func (m *mockQueue) Publish(ctx context.Context, payload string) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, payload)
	return nil
}

func (m *mockQueue) Messages() <-chan string { return m.ch }
func (m *mockQueue) Close() error            { return nil }

var _ queue.Queue = (*mockQueue)(nil)

func fastPolicy() *retry.Policy {
	return &retry.Policy{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func createdShipment() *domain.Shipment {
	return &domain.Shipment{
		ID:              1,
		ReferenceNumber: "REF001",
		Sender:          "Sender A",
		Recipient:       "Recipient B",
		CreatedAt:       time.Now().UTC(),
		Status:          domain.StatusCreated,
	}
}

// TestCreateShipment_Success verifies creation assigns an id and the Created
// status.
func TestCreateShipment_Success(t *testing.T) {
	store := &mockShipmentStore{}
	svc := NewShipmentService(store, &mockObjectStore{}, &mockQueue{}, fastPolicy())

	got, err := svc.CreateShipment(context.Background(), CreateShipmentRequest{
		ReferenceNumber: "REF001",
		Sender:          "Sender A",
		Recipient:       "Recipient B",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, domain.StatusCreated, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
}

// TestCreateShipment_DuplicateReference verifies the duplicate error is
// passed through untouched for the handler to map.
func TestCreateShipment_DuplicateReference(t *testing.T) {
	store := &mockShipmentStore{createErr: ports.ErrDuplicateReference}
	svc := NewShipmentService(store, &mockObjectStore{}, &mockQueue{}, fastPolicy())

	got, err := svc.CreateShipment(context.Background(), CreateShipmentRequest{ReferenceNumber: "REF001"})

	assert.Nil(t, got)
	assert.ErrorIs(t, err, ports.ErrDuplicateReference)
}

// TestListShipments_Clamping verifies page and page size defaults and cap.
func TestListShipments_Clamping(t *testing.T) {
	store := &mockShipmentStore{total: 3}
	svc := NewShipmentService(store, &mockObjectStore{}, &mockQueue{}, fastPolicy())

	page, err := svc.ListShipments(context.Background(), -1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, store.listPage)
	assert.Equal(t, DefaultPageSize, store.listSize)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, int64(3), page.Total)

	_, err = svc.ListShipments(context.Background(), 2, 500)
	require.NoError(t, err)
	assert.Equal(t, 2, store.listPage)
	assert.Equal(t, MaxPageSize, store.listSize)
}

// TestUploadDocument_FileRequired verifies a nil file fails fast with no
// store or queue interaction.
func TestUploadDocument_FileRequired(t *testing.T) {
	store := &mockShipmentStore{shipment: createdShipment()}
	objects := &mockObjectStore{}
	q := &mockQueue{}
	svc := NewShipmentService(store, objects, q, fastPolicy())

	resp := svc.UploadDocument(context.Background(), UploadDocumentRequest{
		ShipmentID: 1,
		FileName:   "x.txt",
	})

	assert.False(t, resp.Success)
	assert.Equal(t, MsgFileRequired, resp.ErrorMessage)
	assert.Equal(t, 0, store.getCalls)
	assert.Equal(t, 0, objects.putCalls)
	assert.Empty(t, q.published)
}

// TestUploadDocument_ShipmentNotFound verifies the not-found message.
func TestUploadDocument_ShipmentNotFound(t *testing.T) {
	store := &mockShipmentStore{getErr: ports.ErrShipmentNotFound}
	svc := NewShipmentService(store, &mockObjectStore{}, &mockQueue{}, fastPolicy())

	resp := svc.UploadDocument(context.Background(), UploadDocumentRequest{
		ShipmentID: 99,
		File:       strings.NewReader("data"),
		FileName:   "x.txt",
	})

	assert.False(t, resp.Success)
	assert.Equal(t, MsgShipmentNotFound, resp.ErrorMessage)
}

// TestUploadDocument_InvalidFileName verifies names that reduce to nothing
// are rejected.
func TestUploadDocument_InvalidFileName(t *testing.T) {
	store := &mockShipmentStore{shipment: createdShipment()}
	svc := NewShipmentService(store, &mockObjectStore{}, &mockQueue{}, fastPolicy())

	for _, name := range []string{"", ".", "..", "/", `\`, `docs\`, `..\`} {
		resp := svc.UploadDocument(context.Background(), UploadDocumentRequest{
			ShipmentID: 1,
			File:       strings.NewReader("data"),
			FileName:   name,
		})

		assert.False(t, resp.Success, "file name %q", name)
		assert.Equal(t, MsgInvalidFileName, resp.ErrorMessage)
	}
}

// TestUploadDocument_WindowsPathFileName verifies backslash-separated paths
// reduce to the base name like slash-separated ones.
func TestUploadDocument_WindowsPathFileName(t *testing.T) {
	store := &mockShipmentStore{shipment: createdShipment()}
	objects := &mockObjectStore{url: "http://localhost:9000/docs/blob"}
	svc := NewShipmentService(store, objects, &mockQueue{}, fastPolicy())

	resp := svc.UploadDocument(context.Background(), UploadDocumentRequest{
		ShipmentID:    1,
		File:          strings.NewReader("data"),
		FileName:      `C:\docs\..\x.txt`,
		ContainerName: "docs",
	})

	require.True(t, resp.Success, resp.ErrorMessage)
	assert.Regexp(t, regexp.MustCompile(`^1/[0-9a-f-]{36}_x\.txt$`), resp.BlobName)
}

// TestUploadDocument_Success verifies the full happy path: blob naming,
// status transition, document fields and the published message.
func TestUploadDocument_Success(t *testing.T) {
	store := &mockShipmentStore{shipment: createdShipment()}
	objects := &mockObjectStore{url: "http://localhost:9000/docs/blob"}
	q := &mockQueue{}
	svc := NewShipmentService(store, objects, q, fastPolicy())

	resp := svc.UploadDocument(context.Background(), UploadDocumentRequest{
		ShipmentID:    1,
		File:          strings.NewReader("0123456789"),
		FileName:      "reports/x.txt",
		ContentType:   "text/plain",
		ContainerName: "docs",
	})

	require.True(t, resp.Success, resp.ErrorMessage)
	assert.Regexp(t, regexp.MustCompile(`^1/[0-9a-f-]{36}_x\.txt$`), resp.BlobName)
	assert.Equal(t, "http://localhost:9000/docs/blob", resp.BlobURL)

	require.NotNil(t, store.updated)
	assert.Equal(t, domain.StatusDocumentUploaded, store.updated.Status)
	require.NotNil(t, store.updated.LastDocumentBlobName)
	assert.Equal(t, resp.BlobName, *store.updated.LastDocumentBlobName)

	require.Len(t, q.published, 1)
	var msg domain.DocumentMessage
	require.NoError(t, json.Unmarshal([]byte(q.published[0]), &msg))
	assert.Equal(t, int64(1), msg.ShipmentID)
	assert.Equal(t, resp.BlobName, msg.BlobName)
}

// TestUploadDocument_DistinctBlobNames verifies repeat uploads of the same
// file never collide.
func TestUploadDocument_DistinctBlobNames(t *testing.T) {
	store := &mockShipmentStore{shipment: createdShipment()}
	objects := &mockObjectStore{url: "http://localhost:9000/docs/blob"}
	q := &mockQueue{}
	svc := NewShipmentService(store, objects, q, fastPolicy())

	req := UploadDocumentRequest{
		ShipmentID:    1,
		File:          strings.NewReader("data"),
		FileName:      "x.txt",
		ContainerName: "docs",
	}

	first := svc.UploadDocument(context.Background(), req)
	require.True(t, first.Success)

	store.shipment = store.updated
	req.File = strings.NewReader("data")
	second := svc.UploadDocument(context.Background(), req)
	require.True(t, second.Success)

	assert.NotEqual(t, first.BlobName, second.BlobName)
	// The repeated upload keeps the already-advanced status.
	assert.Equal(t, domain.StatusDocumentUploaded, store.updated.Status)
}

// TestUploadDocument_RetriesThenSucceeds verifies the blob write retry wrapper.
func TestUploadDocument_RetriesThenSucceeds(t *testing.T) {
	store := &mockShipmentStore{shipment: createdShipment()}
	objects := &mockObjectStore{url: "http://localhost:9000/docs/blob", failures: 2}
	q := &mockQueue{}
	svc := NewShipmentService(store, objects, q, fastPolicy())

	resp := svc.UploadDocument(context.Background(), UploadDocumentRequest{
		ShipmentID:    1,
		File:          strings.NewReader("data"),
		FileName:      "x.txt",
		ContainerName: "docs",
	})

	require.True(t, resp.Success)
	assert.Equal(t, 3, objects.putCalls)
}

// TestUploadDocument_RetryRewindsStream verifies a retried attempt writes the
// whole document again after a failed attempt consumed the stream.
func TestUploadDocument_RetryRewindsStream(t *testing.T) {
	store := &mockShipmentStore{shipment: createdShipment()}
	objects := &consumingObjectStore{url: "http://localhost:9000/docs/blob", failures: 1}
	q := &mockQueue{}
	svc := NewShipmentService(store, objects, q, fastPolicy())

	resp := svc.UploadDocument(context.Background(), UploadDocumentRequest{
		ShipmentID:    1,
		File:          strings.NewReader("0123456789"),
		FileName:      "x.txt",
		ContainerName: "docs",
	})

	require.True(t, resp.Success, resp.ErrorMessage)
	assert.Equal(t, []int{10, 10}, objects.reads)
}

// TestUploadDocument_RetryBuffersUnseekableStream verifies a reader without
// Seek is buffered so retries still see the full document.
func TestUploadDocument_RetryBuffersUnseekableStream(t *testing.T) {
	store := &mockShipmentStore{shipment: createdShipment()}
	objects := &consumingObjectStore{url: "http://localhost:9000/docs/blob", failures: 1}
	q := &mockQueue{}
	svc := NewShipmentService(store, objects, q, fastPolicy())

	resp := svc.UploadDocument(context.Background(), UploadDocumentRequest{
		ShipmentID:    1,
		File:          io.MultiReader(strings.NewReader("01234"), strings.NewReader("56789")),
		FileName:      "x.txt",
		ContainerName: "docs",
	})

	require.True(t, resp.Success, resp.ErrorMessage)
	assert.Equal(t, []int{10, 10}, objects.reads)
}

// TestUploadDocument_UploadExhaustion verifies the generic message after all
// attempts fail and that nothing was committed.
func TestUploadDocument_UploadExhaustion(t *testing.T) {
	store := &mockShipmentStore{shipment: createdShipment()}
	objects := &mockObjectStore{err: errors.New("storage down")}
	q := &mockQueue{}
	svc := NewShipmentService(store, objects, q, fastPolicy())

	resp := svc.UploadDocument(context.Background(), UploadDocumentRequest{
		ShipmentID:    1,
		File:          strings.NewReader("data"),
		FileName:      "x.txt",
		ContainerName: "docs",
	})

	assert.False(t, resp.Success)
	assert.Equal(t, MsgUploadFailed, resp.ErrorMessage)
	assert.Equal(t, 3, objects.putCalls)
	assert.Equal(t, 0, store.updateCalls)
	assert.Empty(t, q.published)
}

// TestUploadDocument_PublishFailureAfterCommit verifies the documented
// asymmetry: the status update commits, then publish exhaustion surfaces the
// generic message.
func TestUploadDocument_PublishFailureAfterCommit(t *testing.T) {
	store := &mockShipmentStore{shipment: createdShipment()}
	objects := &mockObjectStore{url: "http://localhost:9000/docs/blob"}
	q := &mockQueue{err: errors.New("queue down")}
	svc := NewShipmentService(store, objects, q, fastPolicy())

	resp := svc.UploadDocument(context.Background(), UploadDocumentRequest{
		ShipmentID:    1,
		File:          strings.NewReader("data"),
		FileName:      "x.txt",
		ContainerName: "docs",
	})

	assert.False(t, resp.Success)
	assert.Equal(t, MsgUploadFailed, resp.ErrorMessage)
	assert.Equal(t, 1, store.updateCalls)
	assert.Equal(t, domain.StatusDocumentUploaded, store.updated.Status)
}

// TestUploadDocument_Cancelled verifies cancellation is reported distinctly
// from infrastructure failure.
func TestUploadDocument_Cancelled(t *testing.T) {
	store := &mockShipmentStore{shipment: createdShipment()}
	objects := &mockObjectStore{err: context.Canceled}
	svc := NewShipmentService(store, objects, &mockQueue{}, fastPolicy())

	resp := svc.UploadDocument(context.Background(), UploadDocumentRequest{
		ShipmentID:    1,
		File:          strings.NewReader("data"),
		FileName:      "x.txt",
		ContainerName: "docs",
	})

	assert.False(t, resp.Success)
	assert.Equal(t, MsgCancelled, resp.ErrorMessage)
}
