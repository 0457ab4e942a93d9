package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/conceptlab-backend/internal/concepts"
	"github.com/yungbote/conceptlab-backend/internal/http/response"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
	"github.com/yungbote/conceptlab-backend/internal/services"
)

type ConceptHandler struct {
	log            *logger.Logger
	conceptService services.ConceptService
	modelService   services.ConceptModelService
}

func NewConceptHandler(log *logger.Logger, conceptService services.ConceptService, modelService services.ConceptModelService) *ConceptHandler {
	return &ConceptHandler{
		log:            log.With("handler", "ConceptHandler"),
		conceptService: conceptService,
		modelService:   modelService,
	}
}

func (h *ConceptHandler) List(c *gin.Context) {
	infos, err := h.conceptService.List(c.Request.Context())
	if err != nil {
		h.log.Error("List failed", "error", err)
		response.FromError(c, err)
		return
	}
	response.RespondOK(c, infos)
}

func (h *ConceptHandler) Create(c *gin.Context) {
	var req struct {
		Namespace   string `json:"namespace"`
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	concept, err := h.conceptService.Create(c.Request.Context(), req.Namespace, req.Name, req.Type, req.Description)
	if err != nil {
		h.log.Error("Create failed", "error", err, "namespace", req.Namespace, "name", req.Name)
		response.FromError(c, err)
		return
	}
	response.RespondOK(c, concept)
}

func (h *ConceptHandler) Get(c *gin.Context) {
	namespace := c.Param("namespace")
	name := c.Param("name")
	draft := concepts.DraftID(c.DefaultQuery("draft", string(concepts.DraftMain)))
	concept, err := h.conceptService.Get(c.Request.Context(), namespace, name, draft)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.RespondOK(c, concept)
}

func (h *ConceptHandler) Edit(c *gin.Context) {
	namespace := c.Param("namespace")
	name := c.Param("name")
	var change concepts.ConceptUpdate
	if err := c.ShouldBindJSON(&change); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	concept, err := h.conceptService.Edit(c.Request.Context(), namespace, name, change)
	if err != nil {
		h.log.Error("Edit failed", "error", err, "namespace", namespace, "name", name)
		response.FromError(c, err)
		return
	}
	response.RespondOK(c, concept)
}

func (h *ConceptHandler) Remove(c *gin.Context) {
	namespace := c.Param("namespace")
	name := c.Param("name")
	if err := h.conceptService.Remove(c.Request.Context(), namespace, name); err != nil {
		h.log.Error("Remove failed", "error", err, "namespace", namespace, "name", name)
		response.FromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"removed": true})
}

func (h *ConceptHandler) MergeDraft(c *gin.Context) {
	namespace := c.Param("namespace")
	name := c.Param("name")
	var req struct {
		Draft concepts.DraftID `json:"draft"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	concept, err := h.conceptService.MergeDraft(c.Request.Context(), namespace, name, req.Draft)
	if err != nil {
		h.log.Error("MergeDraft failed", "error", err, "namespace", namespace, "name", name, "draft", req.Draft)
		response.FromError(c, err)
		return
	}
	response.RespondOK(c, concept)
}

func (h *ConceptHandler) ColumnInfos(c *gin.Context) {
	namespace := c.Param("namespace")
	name := c.Param("name")
	infos, err := h.modelService.ColumnInfos(c.Request.Context(), namespace, name)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.RespondOK(c, infos)
}
