package router

import (
	"context"

	"vitrine/config"
	"vitrine/controllers"
	"vitrine/middleware"
	"vitrine/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Initialize wires all routes and middlewares.
// Todas as rotas são públicas: o webhook se protege pela assinatura, quando configurada.
func Initialize(r *gin.Engine, cfg config.Configuration, engine *services.Engine, ping func(ctx context.Context) error) {
	controllers.RegisterValidation()

	r.Use(gin.Recovery())
	r.Use(Logger())
	r.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))

	r.GET("/health", controllers.Health(ping))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(controllers.SetEngineToContext(engine))

	// Provedor de pagamento
	api.POST("/webhook", controllers.WebhookUpdate(cfg.Security.WebhookSecret))

	// Vitrine (front)
	api.GET("/check-access", controllers.CheckAccess)
	api.GET("/user-products", controllers.GetUserProducts)
	api.GET("/products/:id", controllers.GetProductByID)

	log.Info().Int("routes", len(r.Routes())).Msg("Routes initialized")
}
