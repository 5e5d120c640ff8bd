package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/linkhive/linkhive-api/internal/api"
	"github.com/linkhive/linkhive-api/internal/api/middleware"
	"github.com/linkhive/linkhive-api/internal/api/shared"
)

// newRouter assembles the HTTP routing tree. All /api routes require a
// bearer token; the dead-letter view additionally requires the admin key.
func newRouter(
	bookmarks *api.BookmarkHandler,
	feeds *api.FeedHandler,
	jobs *api.QueueHandler,
	authMw *middleware.AuthMiddleware,
	adminMw *middleware.AdminMiddleware,
) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMw.Authenticate)

			r.Post("/bookmarks", bookmarks.Create)
			r.Get("/bookmarks", bookmarks.List)
			r.Delete("/bookmarks/{id}", bookmarks.Delete)

			r.Post("/feeds", feeds.Create)
			r.Get("/feeds", feeds.List)
			r.Get("/feed-entries", feeds.ListEntries)

			r.Get("/queue", jobs.List)
			r.Get("/queue/{id}", jobs.Get)
			r.Delete("/queue/{id}", jobs.Cancel)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMw.Authenticate)
			r.Use(adminMw.Require)

			r.Get("/admin/dead-letters", jobs.DeadLetters)
		})
	})

	return r
}
