// Package rest implements the engagement engine's HTTP surface: the
// reaction and comment mutation endpoints, the cached read endpoints and
// the live websocket channel.
package rest

import (
	"net/http"

	"github.com/bumpring/bumpring/internal/rest/handler"
	"github.com/bumpring/bumpring/internal/setup"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/uptrace/bunrouter"
)

// Server implements the REST API service.
type Server struct {
	engagementHandler *handler.EngagementHandler
	feedHandler       *handler.FeedHandler
	liveHandler       *handler.LiveHandler
}

// NewServer creates a new REST API server.
func NewServer(app *setup.App) http.Handler {
	// Create server instance with handlers
	server := &Server{
		engagementHandler: handler.NewEngagementHandler(app.Engage, app.Logger),
		feedHandler:       handler.NewFeedHandler(app.Engage, app.Cache, &app.Config.Cache, app.Logger),
		liveHandler:       handler.NewLiveHandler(app.Engage, app.Hub, app.Config, app.Logger),
	}

	// Create base router
	router := bunrouter.New()

	router.WithGroup("/v1", func(g *bunrouter.Group) {
		g.PUT("/posts/:id/reactions", server.engagementHandler.SetReaction)
		g.DELETE("/posts/:id/reactions", server.engagementHandler.ClearReaction)
		g.POST("/posts/:id/comments", server.engagementHandler.AddComment)
		g.PATCH("/comments/:id", server.engagementHandler.EditComment)
		g.DELETE("/comments/:id", server.engagementHandler.DeleteComment)

		g.GET("/posts/:id", server.feedHandler.GetPost)
		g.GET("/posts/:id/thread", server.feedHandler.GetThread)
		g.GET("/groups/:id/feed", server.feedHandler.GetFeed)

		g.GET("/live", server.liveHandler.Connect)
	})

	// CORS for the browser clients, then gzip compression
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: app.Config.Server.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete,
		},
		AllowedHeaders: []string{"Content-Type", "X-User-ID", "If-None-Match"},
		ExposedHeaders: []string{"ETag", "Retry-After"},
	})

	return corsMiddleware.Handler(gzhttp.GzipHandler(router))
}
