// chatsync-devserver is a stub chat backend for local development of the
// CLI and the sync engine. It implements the REST and push contracts in
// memory: no database, no real object store, no real authentication. A
// bearer token is simply the numeric user id.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/afero"

	"github.com/vibecheck/chatsync/internal/logging"
)

func main() {
	logging.New()

	addr := os.Getenv("DEVSERVER_ADDR")
	if addr == "" {
		addr = ":8000"
	}

	srv := &server{
		store:   newStore(),
		hub:     newHub(),
		storage: afero.NewMemMapFs(),
	}
	e := newRouter(srv)
	e.Use(middleware.Logger())

	slog.Info("Dev server listening", "addr", addr)
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		slog.Error("Dev server failed", "error", err)
		os.Exit(1)
	}
}

// newRouter wires the REST and push routes onto an echo instance.
func newRouter(srv *server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	api := e.Group("/api/v1")
	api.GET("/conversations", srv.listConversations)
	api.POST("/conversations", srv.createConversation)
	api.GET("/messages/conversation/:id", srv.listMessages)
	api.POST("/messages/conversation/:id", srv.sendMessage)
	api.POST("/messages/:id/receipt", srv.updateReceipt)
	api.POST("/uploads/presign", srv.presignUpload)
	api.GET("/ws", srv.handleWS)

	e.PUT("/storage/:key", srv.putObject)
	e.GET("/storage/:key", srv.getObject)
	return e
}

// userFromToken resolves the dev-mode credential: the token is the numeric
// user id.
func userFromToken(token string) (int64, bool) {
	id, err := strconv.ParseInt(token, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// bearer extracts the credential from the Authorization header.
func bearer(c echo.Context) (int64, bool) {
	auth := c.Request().Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return 0, false
	}
	return userFromToken(auth[len(prefix):])
}
