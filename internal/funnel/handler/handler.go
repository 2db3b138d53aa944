package handler

import (
	"net/http"
	"time"

	"estatefunnel_backend/internal/funnel/domain"
	"estatefunnel_backend/internal/funnel/engine"
	"estatefunnel_backend/internal/funnel/negotiation"
	"estatefunnel_backend/internal/funnel/transport"
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
	engine      *engine.Service
	negotiation *negotiation.Service
	val         *validator.Validator
}

func New(engineSvc *engine.Service, negotiationSvc *negotiation.Service, val *validator.Validator) *Handler {
	return &Handler{engine: engineSvc, negotiation: negotiationSvc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads/:id/advance", h.Advance)
	rg.POST("/pursue", h.Pursue)
	rg.POST("/leads/:id/offer", h.SubmitOffer)
	rg.PUT("/leads/:id/negotiation/rules", h.SetNegotiationRules)
	rg.PATCH("/leads/:id/negotiation/ai", h.ToggleAI)
	rg.POST("/leads/:id/close", h.CloseDeal)
	rg.GET("/pipeline", h.Pipeline)
}

func (h *Handler) Advance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.engine.Advance(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.AdvanceResponse{
		Action:       result.Action,
		Success:      result.Success,
		Outcome:      result.Outcome,
		StageChanged: result.StageChanged,
		Stage:        result.Stage,
		Notification: result.Notification,
		Lead:         transport.FromLead(result.Lead),
	})
}

func (h *Handler) Pursue(c *gin.Context) {
	result, err := h.engine.PursueStalled(c.Request.Context(), time.Now())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) SubmitOffer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.SubmitOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	decision, err := h.negotiation.HandleOffer(c.Request.Context(), id, req.AmountCents, req.Message)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.OfferDecisionResponse{
		Decision:     string(decision.Action),
		CounterCents: decision.CounterCents,
		Reasoning:    decision.Reasoning,
		AIAssisted:   decision.AIAssisted,
		Notification: &decision.Notification,
		Lead:         transport.FromLead(decision.Lead),
	})
}

func (h *Handler) SetNegotiationRules(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.SetNegotiationRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.negotiation.SetRules(c.Request.Context(), id, domain.NegotiationRules{
		MinAcceptableCents:        req.MinAcceptableCents,
		AutoAcceptCents:           req.AutoAcceptCents,
		MaxDiscountPercent:        req.MaxDiscountPercent,
		RequireApprovalBelowCents: req.RequireApprovalBelowCents,
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.FromLead(lead))
}

func (h *Handler) ToggleAI(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ToggleAIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.negotiation.ToggleAI(c.Request.Context(), id, *req.Enabled)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.FromLead(lead))
}

func (h *Handler) CloseDeal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.CloseDealRequest
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

	lead, err := h.engine.CloseDeal(c.Request.Context(), id, engine.CloseDealRequest{
		Outcome:         domain.Stage(req.Outcome),
		FinalPriceCents: req.FinalPriceCents,
		Reason:          req.Reason,
		ClosedBy:        ident.UserID.String(),
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.FromLead(lead))
}

func (h *Handler) Pipeline(c *gin.Context) {
	var createdBy *uuid.UUID
	if raw := c.Query("createdBy"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		createdBy = &id
	}

	stats, err := h.engine.Pipeline(c.Request.Context(), createdBy)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, stats)
}
