package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/conceptlab-backend/internal/concepts"
	"github.com/yungbote/conceptlab-backend/internal/http/response"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
	"github.com/yungbote/conceptlab-backend/internal/services"
)

type ConceptModelHandler struct {
	log          *logger.Logger
	modelService services.ConceptModelService
}

func NewConceptModelHandler(log *logger.Logger, modelService services.ConceptModelService) *ConceptModelHandler {
	return &ConceptModelHandler{
		log:          log.With("handler", "ConceptModelHandler"),
		modelService: modelService,
	}
}

func (h *ConceptModelHandler) List(c *gin.Context) {
	namespace := c.Param("namespace")
	name := c.Param("name")
	infos, err := h.modelService.ListForConcept(c.Request.Context(), namespace, name)
	if err != nil {
		h.log.Error("List failed", "error", err, "namespace", namespace, "concept", name)
		response.FromError(c, err)
		return
	}
	response.RespondOK(c, infos)
}

func (h *ConceptModelHandler) Get(c *gin.Context) {
	namespace := c.Param("namespace")
	name := c.Param("name")
	embedding := c.Param("embedding")
	info, err := h.modelService.Get(c.Request.Context(), namespace, name, embedding)
	if err != nil {
		h.log.Error("Get failed", "error", err, "namespace", namespace, "concept", name, "embedding", embedding)
		response.FromError(c, err)
		return
	}
	response.RespondOK(c, info)
}

func (h *ConceptModelHandler) Create(c *gin.Context) {
	namespace := c.Param("namespace")
	name := c.Param("name")
	embedding := c.Param("embedding")
	var req struct {
		ColumnInfo *concepts.ConceptColumnInfo `json:"column_info"`
	}
	// The body is optional; an absent body means no negative-sampling source.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	info, err := h.modelService.Create(c.Request.Context(), namespace, name, embedding, req.ColumnInfo)
	if err != nil {
		h.log.Error("Create failed", "error", err, "namespace", namespace, "concept", name, "embedding", embedding)
		response.FromError(c, err)
		return
	}
	response.RespondOK(c, info)
}

type scoreSpan struct {
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

type scoreResult struct {
	Spans []scoreSpan `json:"spans"`
}

func (h *ConceptModelHandler) Score(c *gin.Context) {
	namespace := c.Param("namespace")
	name := c.Param("name")
	embedding := c.Param("embedding")
	var req struct {
		Examples []struct {
			Text string `json:"text"`
		} `json:"examples"`
		Draft       concepts.DraftID `json:"draft"`
		Sensitivity string           `json:"sensitivity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sensitivity, err := concepts.ParseSensitivity(req.Sensitivity)
	if err != nil {
		response.FromError(c, err)
		return
	}
	draft := req.Draft
	if draft == "" {
		draft = concepts.DraftMain
	}
	texts := make([]string, len(req.Examples))
	for i, ex := range req.Examples {
		texts[i] = ex.Text
	}
	scores, synced, err := h.modelService.Score(c.Request.Context(), namespace, name, embedding, draft, texts, sensitivity)
	if err != nil {
		h.log.Error("Score failed", "error", err, "namespace", namespace, "concept", name, "embedding", embedding)
		response.FromError(c, err)
		return
	}
	results := make([]scoreResult, len(scores))
	for i, score := range scores {
		results[i] = scoreResult{Spans: []scoreSpan{{Start: 0, End: len(texts[i]), Score: score}}}
	}
	response.RespondOK(c, gin.H{"scores": results, "model_synced": synced})
}
