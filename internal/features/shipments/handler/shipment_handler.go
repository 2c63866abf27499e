package handler

import (
	"errors"
	"fmt"
	"strconv"

	"shipdocs/internal/features/shipments/ports"
	"shipdocs/internal/features/shipments/service"

	"github.com/gofiber/fiber/v2"
)

// ShipmentHandler handles HTTP requests for shipment operations.
type ShipmentHandler struct {
	shipmentService *service.ShipmentService
}

// NewShipmentHandler creates a new ShipmentHandler.
func NewShipmentHandler(shipmentService *service.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{
		shipmentService: shipmentService,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// CreateShipmentBody is the request payload for creating a shipment.
type CreateShipmentBody struct {
	ReferenceNumber string `json:"reference_number"`
	Sender          string `json:"sender"`
	Recipient       string `json:"recipient"`
}

// CreateShipment godoc
// @Summary Create a shipment
// @Description Registers a new shipment in the Created status
// @Tags shipments
// @Accept json
// @Produce json
// @Param shipment body CreateShipmentBody true "Shipment to create"
// @Success 201 {object} domain.Shipment
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /shipments [post]
func (h *ShipmentHandler) CreateShipment(c *fiber.Ctx) error {
	var body CreateShipmentBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "invalid request body",
			RayID:   c.Locals("requestid").(string),
		})
	}

	if body.ReferenceNumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "reference_number is required",
			RayID:   c.Locals("requestid").(string),
		})
	}

	shipment, err := h.shipmentService.CreateShipment(c.Context(), service.CreateShipmentRequest{
		ReferenceNumber: body.ReferenceNumber,
		Sender:          body.Sender,
		Recipient:       body.Recipient,
	})
	if err != nil {
		if errors.Is(err, ports.ErrDuplicateReference) {
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
				Message: fmt.Sprintf("Shipment with ReferenceNumber '%s' already exists.", body.ReferenceNumber),
				RayID:   c.Locals("requestid").(string),
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(shipment)
}

// GetShipment godoc
// @Summary Get a shipment by ID
// @Description Retrieves a single shipment including its latest document metadata
// @Tags shipments
// @Produce json
// @Param id path int true "Shipment ID"
// @Success 200 {object} domain.Shipment
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /shipments/{id} [get]
func (h *ShipmentHandler) GetShipment(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "shipment id must be an integer",
			RayID:   c.Locals("requestid").(string),
		})
	}

	shipment, err := h.shipmentService.GetShipment(c.Context(), id)
	if err != nil {
		if errors.Is(err, ports.ErrShipmentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Message: service.MsgShipmentNotFound,
				RayID:   c.Locals("requestid").(string),
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(shipment)
}

// ListShipments godoc
// @Summary List shipments
// @Description Retrieves a page of shipments ordered by creation time
// @Tags shipments
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} service.ShipmentPage
// @Failure 500 {object} ErrorResponse
// @Router /shipments [get]
func (h *ShipmentHandler) ListShipments(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", service.DefaultPageSize)

	result, err := h.shipmentService.ListShipments(c.Context(), page, pageSize)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(result)
}

// UploadDocument godoc
// @Summary Upload a shipment document
// @Description Stores the document and enqueues it for background processing
// @Tags shipments
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Shipment ID"
// @Param file formData file true "Document file"
// @Param container formData string false "Target storage container"
// @Success 200 {object} service.UploadDocumentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /shipments/{id}/documents [post]
func (h *ShipmentHandler) UploadDocument(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "shipment id must be an integer",
			RayID:   c.Locals("requestid").(string),
		})
	}

	container := c.FormValue("container")
	if container == "" {
		container = c.Query("container")
	}

	req := service.UploadDocumentRequest{
		ShipmentID:    id,
		ContainerName: container,
	}

	fileHeader, err := c.FormFile("file")
	if err == nil {
		file, openErr := fileHeader.Open()
		if openErr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Message: service.MsgFileRequired,
				RayID:   c.Locals("requestid").(string),
			})
		}
		defer file.Close()

		req.File = file
		req.FileName = fileHeader.Filename
		req.ContentType = fileHeader.Header.Get("Content-Type")
	}

	result := h.shipmentService.UploadDocument(c.Context(), req)
	if !result.Success {
		return c.Status(uploadStatusCode(result.ErrorMessage)).JSON(ErrorResponse{
			Message: result.ErrorMessage,
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(result)
}

// uploadStatusCode maps the orchestrator's caller-facing messages onto HTTP
// status codes.
func uploadStatusCode(message string) int {
	switch message {
	case service.MsgShipmentNotFound:
		return fiber.StatusNotFound
	case service.MsgFileRequired, service.MsgInvalidFileName:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
