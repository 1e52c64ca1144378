package handler

import (
	"errors"
	"net/http"

	"returns-service/internal/middleware"
	"returns-service/internal/model"
	"returns-service/internal/repository"
	"returns-service/internal/service"
	"returns-service/pkg/pagination"
	"returns-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReturnHandler struct {
	returnService service.ReturnService
	auditRepo     repository.AuditRepository
}

func NewReturnHandler(returnService service.ReturnService, auditRepo repository.AuditRepository) *ReturnHandler {
	return &ReturnHandler{
		returnService: returnService,
		auditRepo:     auditRepo,
	}
}

func (h *ReturnHandler) RegisterRoutes(router *gin.RouterGroup) {
	operators := middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleAgent)

	returns := router.Group("/api/returns")
	{
		returns.POST("", operators, h.CreateReturn)
		returns.GET("", operators, h.ListReturns)
		returns.GET("/stats", operators, h.GetStats)
		returns.GET("/rma/:rma", operators, h.GetReturnByRMA)
		returns.GET("/:id", operators, h.GetReturn)
		returns.GET("/:id/history", operators, h.GetReturnHistory)
		returns.POST("/:id/transition", operators, h.TransitionReturn)
		returns.POST("/:id/tracking", operators, h.AttachTracking)
		returns.POST("/:id/notes", operators, h.AppendNote)
	}
}

// ReturnDetail is the composed read model for a single return: the record
// itself plus the projected timeline and the actions available from the
// current status.
type ReturnDetail struct {
	Return   *model.Return           `json:"return"`
	Timeline []service.TimelineEvent `json:"timeline"`
	Actions  service.ActionSet       `json:"actions"`
}

func detailOf(ret *model.Return) ReturnDetail {
	return ReturnDetail{
		Return:   ret,
		Timeline: service.ProjectTimeline(ret),
		Actions:  service.DeriveActions(ret),
	}
}

// writeServiceError maps the service error taxonomy onto HTTP statuses:
// bad input is 400, a missing record is 404, and a request that is valid
// in shape but impossible from the current status is 409.
func writeServiceError(c *gin.Context, err error) {
	var (
		validationErr *service.ValidationError
		notFoundErr   *service.NotFoundError
		transitionErr *service.InvalidTransitionError
		stateErr      *service.InvalidStateError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
	}
}

func currentUserID(c *gin.Context) string {
	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)
	return userIDStr
}

// CreateReturn registers a new return request
// @Summary      Create return
// @Description  Registers a new return request; the RMA number is generated server-side
// @Tags         returns
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateReturnRequest  true  "Create Return Payload"
// @Success      201      {object}  response.Response{data=handler.ReturnDetail}
// @Failure      400      {object}  response.Response
// @Router       /api/returns [post]
func (h *ReturnHandler) CreateReturn(c *gin.Context) {
	var req service.CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	ret, err := h.returnService.CreateReturn(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, detailOf(ret)))
}

// ListReturns returns a paginated list of returns
// @Summary      List returns
// @Description  Retrieves a paginated list of returns, optionally filtered by status or customer email
// @Tags         returns
// @Security     BearerAuth
// @Produce      json
// @Param        status          query     string  false  "Filter by status (pending, approved, received, inspecting, refunded, completed, rejected)"
// @Param        customer_email  query     string  false  "Filter by customer email"
// @Param        page            query     int     false  "Page number (default 1)"
// @Param        limit           query     int     false  "Number of items per page (default 20)"
// @Success      200             {object}  response.Response{data=object}
// @Failure      500             {object}  response.Response
// @Router       /api/returns [get]
func (h *ReturnHandler) ListReturns(c *gin.Context) {
	params := pagination.Parse(c)

	filter := service.ReturnListFilter{
		Status:        c.Query("status"),
		CustomerEmail: c.Query("customer_email"),
		Page:          params.Page,
		Limit:         params.Limit,
	}

	returns, total, err := h.returnService.ListReturns(c.Request.Context(), filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"returns": returns,
		"total":   total,
		"page":    params.Page,
		"limit":   params.Limit,
	}))
}

// GetReturn returns one return with its timeline and available actions
// @Summary      Get return
// @Description  Retrieves a single return by ID, including its timeline and available actions
// @Tags         returns
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Return ID"
// @Success      200  {object}  response.Response{data=handler.ReturnDetail}
// @Failure      404  {object}  response.Response
// @Router       /api/returns/{id} [get]
func (h *ReturnHandler) GetReturn(c *gin.Context) {
	ret, err := h.returnService.GetReturn(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detailOf(ret)))
}

// GetReturnByRMA looks a return up by its RMA number
// @Summary      Get return by RMA
// @Description  Retrieves a single return by its RMA number
// @Tags         returns
// @Security     BearerAuth
// @Produce      json
// @Param        rma  path      string  true  "RMA number"
// @Success      200  {object}  response.Response{data=handler.ReturnDetail}
// @Failure      404  {object}  response.Response
// @Router       /api/returns/rma/{rma} [get]
func (h *ReturnHandler) GetReturnByRMA(c *gin.Context) {
	ret, err := h.returnService.GetReturnByRMA(c.Request.Context(), c.Param("rma"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detailOf(ret)))
}

// GetReturnHistory returns the audit trail of one return
// @Summary      Get return history
// @Description  Retrieves the audit log entries recorded for a single return
// @Tags         returns
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "Return ID"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /api/returns/{id}/history [get]
func (h *ReturnHandler) GetReturnHistory(c *gin.Context) {
	// Resolve the return first so an unknown ID is a 404, not an empty page.
	ret, err := h.returnService.GetReturn(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	params := pagination.Parse(c)
	entries, total, err := h.auditRepo.List(c.Request.Context(), repository.AuditFilter{
		EntityID: ret.ID.String(),
		Page:     params.Page,
		Limit:    params.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
		"page":    params.Page,
		"limit":   params.Limit,
	}))
}

// TransitionReturn moves a return to a new status
// @Summary      Transition return
// @Description  Moves a return to the requested status; rejected with 409 when the step is not allowed from the current status
// @Tags         returns
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "Return ID"
// @Param        payload  body      service.TransitionRequest  true  "Transition Payload"
// @Success      200      {object}  response.Response{data=handler.ReturnDetail}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/returns/{id}/transition [post]
func (h *ReturnHandler) TransitionReturn(c *gin.Context) {
	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	ret, err := h.returnService.Transition(c.Request.Context(), currentUserID(c), c.Param("id"), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detailOf(ret)))
}

// AttachTracking records the inbound shipment tracking reference
// @Summary      Attach tracking
// @Description  Records the customer's inbound tracking number; only allowed while the return is approved
// @Tags         returns
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "Return ID"
// @Param        payload  body      service.AttachTrackingRequest  true  "Tracking Payload"
// @Success      200      {object}  response.Response{data=handler.ReturnDetail}
// @Failure      409      {object}  response.Response
// @Router       /api/returns/{id}/tracking [post]
func (h *ReturnHandler) AttachTracking(c *gin.Context) {
	var req service.AttachTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	ret, err := h.returnService.AttachTracking(c.Request.Context(), currentUserID(c), c.Param("id"), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detailOf(ret)))
}

// AppendNote appends an internal operator note
// @Summary      Append note
// @Description  Appends an internal note to the return; not allowed once the return is completed or rejected
// @Tags         returns
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "Return ID"
// @Param        payload  body      service.AppendNoteRequest  true  "Note Payload"
// @Success      200      {object}  response.Response{data=handler.ReturnDetail}
// @Failure      409      {object}  response.Response
// @Router       /api/returns/{id}/notes [post]
func (h *ReturnHandler) AppendNote(c *gin.Context) {
	var req service.AppendNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	ret, err := h.returnService.AppendNote(c.Request.Context(), currentUserID(c), c.Param("id"), req.Text)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detailOf(ret)))
}

// GetStats returns the dashboard header numbers
// @Summary      Return statistics
// @Description  Counts per status plus the total refunded amount
// @Tags         returns
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=repository.ReturnStats}
// @Failure      500  {object}  response.Response
// @Router       /api/returns/stats [get]
func (h *ReturnHandler) GetStats(c *gin.Context) {
	stats, err := h.returnService.Stats(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
