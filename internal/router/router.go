package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"marzadmin/internal/middleware"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	logger *zap.Logger,
	deduper middleware.Deduper,
	webhookHandler http.Handler,
) {
	e.Use(echomw.Recover())

	// Telegram webhook (protected by update deduplication)
	if webhookHandler != nil {
		webhookGroup := e.Group("/bot")
		webhookGroup.Use(middleware.DropDuplicateUpdates(deduper))
		webhookGroup.POST("/webhook", echo.WrapHandler(webhookHandler))
	} else {
		logger.Info("Telegram webhook routes disabled (bot update mode is polling)")
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
