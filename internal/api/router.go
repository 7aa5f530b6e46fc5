package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/pumproom/internal/api/handler"
	"github.com/d60-Lab/pumproom/internal/service"
	"github.com/d60-Lab/pumproom/pkg/middleware"

	_ "github.com/d60-Lab/pumproom/docs"
)

// NewRouter 注册全部路由；除登录外都需要 JWT
func NewRouter(h *handler.Handler, auth *service.AuthService, serviceName string) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logger())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(otelgin.Middleware(serviceName))

	r.GET("/healthz", h.Health)
	r.GET("/readyz", h.Ready)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", h.Login)

	authed := v1.Group("")
	authed.Use(middleware.Auth(tokenParser(auth)))
	{
		authed.POST("/watchers", h.CreateWatcher)

		authed.GET("/reservoirs", h.ListReservoirs)
		authed.PATCH("/reservoirs/:name", h.UpdateReservoir)

		authed.POST("/search", h.Search)
		authed.POST("/streams", h.StartStream)
		authed.GET("/streams", h.ListStreams)
		authed.GET("/invoices", h.ListInvoices)

		authed.GET("/distilleries", h.ListDistilleries)
		authed.GET("/distilleries/:name/documents", h.ListDocuments)
		authed.POST("/distilleries/:name/subscription", h.Subscribe)
		authed.DELETE("/distilleries/:name/subscription", h.Unsubscribe)
		authed.GET("/subscriptions", h.ListSubscriptions)
		authed.GET("/alerts", h.ListAlerts)

		graph := authed.Group("/graph")
		graph.POST("/edges", h.Link)
		graph.DELETE("/edges", h.Unlink)
		graph.GET("/nodes/:id", h.GetNode)
		graph.GET("/nodes/:id/outgoing", h.ListOutgoing)
		graph.GET("/nodes/:id/incoming", h.ListIncoming)
		graph.POST("/import/:format", h.Import)
	}
	return r
}

func tokenParser(auth *service.AuthService) middleware.TokenParser {
	return func(token string) (string, string, error) {
		claims, err := auth.ParseToken(token)
		if err != nil {
			return "", "", err
		}
		return claims.Subject, claims.Username, nil
	}
}
