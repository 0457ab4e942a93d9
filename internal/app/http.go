package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/conceptlab-backend/internal/http"
	httpH "github.com/yungbote/conceptlab-backend/internal/http/handlers"
	httpMW "github.com/yungbote/conceptlab-backend/internal/http/middleware"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
)

type Handlers struct {
	Health  *httpH.HealthHandler
	Concept *httpH.ConceptHandler
	Model   *httpH.ConceptModelHandler
}

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(),
		Concept: httpH.NewConceptHandler(log, services.Concept, services.ConceptModel),
		Model:   httpH.NewConceptModelHandler(log, services.ConceptModel),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.AuthSecret),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		AuthMiddleware: middleware.Auth,
		CORSOrigins:    cfg.CORSOrigins,
		TracingEnabled: cfg.TracingEnabled,
		ServiceName:    cfg.ServiceName,
		ConceptHandler: handlers.Concept,
		ModelHandler:   handlers.Model,
		HealthHandler:  handlers.Health,
	})
}
