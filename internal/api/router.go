package api

import (
	"net/http"

	"bidding-system/internal/api/handlers"
	"bidding-system/internal/api/middleware"
	"bidding-system/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// NewBiddingRouter serves the bidder websocket and the health check.
func NewBiddingRouter(ws *handlers.WebSocketHandlers, health *handlers.HealthHandler, log logger.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.CORSWithLogging(log))
	router.Use(middleware.RequestLogger(log))

	router.HandleFunc("/ws/bids", ws.HandleConnection)
	router.Handle("/health", health).Methods(http.MethodGet)

	return router
}

// NewItemAPI builds the echo server for item seeding and inspection.
func NewItemAPI(items *handlers.ItemHandler, health *handlers.HealthHandler, log logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
		},
		MaxAge: 86400,
	}))
	e.Use(echoMiddleware.LoggerWithConfig(echoMiddleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			log.Debug("Request received",
				"method", req.Method,
				"path", req.URL.Path,
				"remote_addr", c.RealIP(),
				"origin", req.Header.Get("Origin"))
			return next(c)
		}
	})

	items.Register(e.Group("/api/v1"))
	e.GET("/health", health.Echo)

	return e
}
