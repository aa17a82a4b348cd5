package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/campuslive/signaling/internal/application/config"
	"github.com/campuslive/signaling/internal/infra/ports/http/handlers"
	"github.com/campuslive/signaling/internal/infra/ports/http/middleware"
)

func New(
	cfg *config.Config,
	iceHandler *handlers.IceHandler,
	wsHandler *handlers.WebSocketHandler,
) *echo.Echo {
	e := echo.New()

	e.HideBanner = true

	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())

	corsConfig := echomw.CORSConfig{AllowOrigins: []string{cfg.AllowedOrigin}}
	if cfg.Debug {
		corsConfig.AllowOrigins = []string{"*"}
	}
	e.Use(echomw.CORSWithConfig(corsConfig))

	// Liveness probe, no application semantics.
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	e.GET("/ws", wsHandler.Handle)

	api := e.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ice", iceHandler.IceServers)
		}
	}

	return e
}
