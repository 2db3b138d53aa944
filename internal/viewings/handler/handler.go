package handler

import (
	"net/http"
	"time"

	"estatefunnel_backend/internal/viewings/service"
	"estatefunnel_backend/internal/viewings/transport"
	"estatefunnel_backend/platform/httpkit"
	"estatefunnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/slots", h.FindSlots)
	rg.POST("", h.Schedule)
	rg.POST("/:id/confirm", h.Confirm)
	rg.POST("/:id/complete", h.Complete)
	rg.POST("/:id/reschedule", h.Reschedule)
	rg.POST("/:id/cancel", h.Cancel)
	rg.POST("/remind", h.Remind)
}

func (h *Handler) FindSlots(c *gin.Context) {
	var req transport.FindSlotsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	preferred := make([]time.Time, 0, len(req.PreferredDates))
	for _, raw := range req.PreferredDates {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "preferredDates must be YYYY-MM-DD", nil)
			return
		}
		preferred = append(preferred, d)
	}

	proposal, err := h.svc.FindSlots(c.Request.Context(), req.LeadID, req.PropertyID, preferred)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, proposal)
}

func (h *Handler) Schedule(c *gin.Context) {
	var req transport.ScheduleViewingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	ident, ok := httpkit.MustIdentity(c)
	if !ok {
		return
	}

	viewing, err := h.svc.Schedule(c.Request.Context(), service.ScheduleRequest{
		LeadID:      req.LeadID,
		PropertyID:  req.PropertyID,
		StartTime:   req.StartTime,
		ViewingType: req.ViewingType,
		ScheduledBy: ident.UserID,
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.FromViewing(viewing))
}

func (h *Handler) Confirm(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ConfirmViewingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	viewing, err := h.svc.Confirm(c.Request.Context(), id, req.Role)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.FromViewing(viewing))
}

func (h *Handler) Complete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.CompleteViewingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	viewing, err := h.svc.Complete(c.Request.Context(), id, service.CompleteRequest{
		Attended:         req.Attended,
		Interested:       req.Interested,
		ReadyToNegotiate: req.ReadyToNegotiate,
		FeedbackRating:   req.FeedbackRating,
		FeedbackNotes:    req.FeedbackNotes,
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.FromViewing(viewing))
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.RescheduleViewingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	ident, ok := httpkit.MustIdentity(c)
	if !ok {
		return
	}

	viewing, err := h.svc.Reschedule(c.Request.Context(), id, req.NewTime, ident.UserID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.FromViewing(viewing))
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.CancelViewingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	viewing, err := h.svc.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.FromViewing(viewing))
}

func (h *Handler) Remind(c *gin.Context) {
	result, err := h.svc.SendReminders(c.Request.Context(), time.Now())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, result)
}
