package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	movementapp "github.com/gestock/backend/internal/application/movement"
	"github.com/gestock/backend/internal/domain/movement"
	"github.com/gestock/backend/internal/interfaces/http/middleware"
)

// MovementHandler handles the stock movement workflow API endpoints
type MovementHandler struct {
	BaseHandler
	movementService *movementapp.MovementService
	transferService *movementapp.TransferService
	deliveryService *movementapp.DeliveryService
}

// NewMovementHandler creates a new MovementHandler
func NewMovementHandler(
	movementService *movementapp.MovementService,
	transferService *movementapp.TransferService,
	deliveryService *movementapp.DeliveryService,
) *MovementHandler {
	return &MovementHandler{
		movementService: movementService,
		transferService: transferService,
		deliveryService: deliveryService,
	}
}

// RegisterRoutes registers all movement workflow routes
func (h *MovementHandler) RegisterRoutes(rg *gin.RouterGroup) {
	movements := rg.Group("/movements")
	{
		movements.POST("", h.Create)
		movements.GET("", h.List)
		movements.GET("/:id", h.Get)
		movements.DELETE("/:id", h.Delete)
		movements.GET("/:id/stats", h.Stats)

		movements.POST("/:id/items", h.AddItem)
		movements.PUT("/:id/items/:itemId", h.UpdateItem)
		movements.DELETE("/:id/items/:itemId", h.RemoveItem)

		movements.POST("/:id/send", h.Send)
		movements.POST("/:id/approve-items", h.ApproveItems)
		movements.POST("/:id/reject-items", h.RejectItems)
		movements.POST("/:id/select-inventory", h.SelectInventory)
		movements.POST("/:id/initialize-transfer", h.InitializeTransfer)

		movements.POST("/:id/confirm-delivery", h.ConfirmDelivery)
		movements.POST("/:id/confirm-product", h.ConfirmProduct)
		movements.POST("/:id/validate-quantities", h.ValidateQuantities)
		movements.POST("/:id/process-validation", h.ProcessValidation)
		movements.POST("/:id/finalize-confirmation", h.FinalizeConfirmation)
	}
}

// identity resolves tenant and actor from the authenticated request.
func (h *MovementHandler) identity(c *gin.Context) (uuid.UUID, movement.Actor, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return uuid.Nil, movement.Actor{}, false
	}
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "User identification required")
		return uuid.Nil, movement.Actor{}, false
	}
	return tenantID, actor, true
}

// movementID parses the :id path parameter.
func (h *MovementHandler) movementID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid movement ID")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds the request body and emits a validation response on failure.
func (h *MovementHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if _, ok := err.(validator.ValidationErrors); ok {
			middleware.HandleValidationError(c, err)
			return false
		}
		h.BadRequest(c, "Invalid request body")
		return false
	}
	return true
}

// Create opens a new movement draft for the caller's service
func (h *MovementHandler) Create(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}

	var req movementapp.CreateMovementRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.movementService.CreateDraft(c.Request.Context(), tenantID, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// List returns movements visible to the caller's service
func (h *MovementHandler) List(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}

	var filter movementapp.MovementListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid list parameters")
		return
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}

	items, total, err := h.movementService.List(c.Request.Context(), tenantID, actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// Get returns one movement with its items and selections
func (h *MovementHandler) Get(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	resp, err := h.movementService.Get(c.Request.Context(), tenantID, actor, movementID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Stats returns the quantity lifecycle summary of one movement
func (h *MovementHandler) Stats(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	resp, err := h.movementService.Stats(c.Request.Context(), tenantID, actor, movementID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Delete removes a movement that is still in draft
func (h *MovementHandler) Delete(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	if err := h.movementService.DeleteDraft(c.Request.Context(), tenantID, actor, movementID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// AddItem adds a product line to a draft movement
func (h *MovementHandler) AddItem(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	var req movementapp.AddItemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.movementService.AddItem(c.Request.Context(), tenantID, actor, movementID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// UpdateItem changes the quantity or notes of a draft line
func (h *MovementHandler) UpdateItem(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		h.BadRequest(c, "Invalid item ID")
		return
	}

	var req movementapp.UpdateItemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.movementService.UpdateItem(c.Request.Context(), tenantID, actor, movementID, itemID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// RemoveItem deletes a line from a draft movement
func (h *MovementHandler) RemoveItem(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		h.BadRequest(c, "Invalid item ID")
		return
	}

	resp, err := h.movementService.RemoveItem(c.Request.Context(), tenantID, actor, movementID, itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Send submits a draft to the providing service for approval
func (h *MovementHandler) Send(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	resp, err := h.movementService.Send(c.Request.Context(), tenantID, actor, movementID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// ApproveItems approves requested items on behalf of the providing service
func (h *MovementHandler) ApproveItems(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	var req movementapp.DecideItemsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.movementService.ApproveItems(c.Request.Context(), tenantID, actor, movementID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// RejectItems rejects requested items on behalf of the providing service
func (h *MovementHandler) RejectItems(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	var req movementapp.DecideItemsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.movementService.RejectItems(c.Request.Context(), tenantID, actor, movementID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// SelectInventory binds provider stock lots to an approved item
func (h *MovementHandler) SelectInventory(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	var req movementapp.SelectInventoryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.movementService.SelectInventory(c.Request.Context(), tenantID, actor, movementID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// InitializeTransfer debits the selected lots and puts the movement in transfer
func (h *MovementHandler) InitializeTransfer(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	resp, err := h.transferService.InitializeTransfer(c.Request.Context(), tenantID, actor, movementID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// ConfirmDelivery records the receiving side's verdict for the whole delivery
func (h *MovementHandler) ConfirmDelivery(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	var req movementapp.ConfirmDeliveryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.deliveryService.ConfirmDelivery(c.Request.Context(), tenantID, actor, movementID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// ConfirmProduct records the receiving side's verdict for a single item
func (h *MovementHandler) ConfirmProduct(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	var req movementapp.ConfirmProductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.deliveryService.ConfirmProduct(c.Request.Context(), tenantID, actor, movementID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// ValidateQuantities classifies received quantities without mutating state
func (h *MovementHandler) ValidateQuantities(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	var req movementapp.ValidateQuantitiesRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.deliveryService.ValidateQuantities(c.Request.Context(), tenantID, actor, movementID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// ProcessValidation settles received quantities against sent quantities
func (h *MovementHandler) ProcessValidation(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	var req movementapp.ProcessValidationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.deliveryService.ProcessValidation(c.Request.Context(), tenantID, actor, movementID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// FinalizeConfirmation closes a movement once every item is confirmed
func (h *MovementHandler) FinalizeConfirmation(c *gin.Context) {
	tenantID, actor, ok := h.identity(c)
	if !ok {
		return
	}
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	var req movementapp.FinalizeConfirmationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.deliveryService.FinalizeConfirmation(c.Request.Context(), tenantID, actor, movementID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}
