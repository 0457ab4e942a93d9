package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/conceptlab-backend/internal/http/handlers"
	httpMW "github.com/yungbote/conceptlab-backend/internal/http/middleware"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware
	CORSOrigins    []string
	TracingEnabled bool
	ServiceName    string

	ConceptHandler *httpH.ConceptHandler
	ModelHandler   *httpH.ConceptModelHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingEnabled {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api/v1")
	{
		if cfg.AuthMiddleware != nil {
			api.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Concepts
		if cfg.ConceptHandler != nil {
			concepts := api.Group("/concepts")
			concepts.GET("", cfg.ConceptHandler.List)
			concepts.POST("/create", cfg.ConceptHandler.Create)
			concepts.GET("/:namespace/:name", cfg.ConceptHandler.Get)
			concepts.POST("/:namespace/:name", cfg.ConceptHandler.Edit)
			concepts.DELETE("/:namespace/:name", cfg.ConceptHandler.Remove)
			concepts.POST("/:namespace/:name/merge_draft", cfg.ConceptHandler.MergeDraft)
			concepts.GET("/:namespace/:name/column_infos", cfg.ConceptHandler.ColumnInfos)
		}

		// Concept models
		if cfg.ModelHandler != nil {
			models := api.Group("/concepts/:namespace/:name/model")
			models.GET("", cfg.ModelHandler.List)
			models.GET("/:embedding", cfg.ModelHandler.Get)
			models.POST("/:embedding", cfg.ModelHandler.Create)
			models.POST("/:embedding/score", cfg.ModelHandler.Score)
		}
	}

	return r
}
