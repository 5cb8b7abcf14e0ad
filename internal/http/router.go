package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/fieldops/backend/internal/config"
	"github.com/fieldops/backend/internal/db"
	"github.com/fieldops/backend/internal/http/handlers"
	"github.com/fieldops/backend/internal/http/middleware"
	"github.com/fieldops/backend/internal/notify"
	"github.com/fieldops/backend/internal/service"

	_ "github.com/fieldops/backend/docs"
)

func Router(cfg config.Config, store *db.Store, engine *service.DispatchEngine, outbox *notify.Outbox, automation *service.AutomationService, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:      store,
		Dispatch:   engine,
		Outbox:     outbox,
		Automation: automation,
		Validator:  validator.New(),
		Logger:     logger,
		AdminKey:   cfg.AdminKey,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/technicians", h.TechniciansList)
		api.GET("/notifications", h.NotificationsList)
		api.GET("/dispatch/queue", h.DispatchQueueList)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/dispatch/suggest/:id", h.DispatchSuggest)
		admin.POST("/dispatch/auto-assign/:id", h.DispatchAutoAssign)
		admin.POST("/dispatch/queue", h.DispatchQueue)
		admin.POST("/dispatch/technician-location", h.TechnicianLocation)
		admin.POST("/work-orders/:id/complete", h.WorkOrderComplete)
		admin.POST("/notifications/process", h.NotificationsProcess)
		admin.POST("/automations/run-daily", h.AutomationsRunDaily)
		admin.POST("/automations/segment-clients", h.AutomationsSegmentClients)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
