package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(cors.AllowAll().Handler) // Permissive cross-origin headers on every route

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.Post("/verify-key", apiHandler.VerifyKeyHandler)

		r.Get("/chains", apiHandler.ListChainsHandler)
		r.Post("/chains", apiHandler.CreateChainHandler)
		r.Post("/chains/{chainID}/versions", apiHandler.CreateVersionHandler)

		r.Get("/artists", apiHandler.ListArtistsHandler)
		r.Get("/inspirations", apiHandler.ListInspirationsHandler)

		r.Post("/generate", apiHandler.GenerateHandler)
		r.Post("/polish-prompt", apiHandler.PolishPromptHandler)

		// Mutating routes require the admin shared secret
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.AdminAuthMiddleware)

			r.Put("/chains/{chainID}", apiHandler.UpdateChainHandler)
			r.Delete("/chains/{chainID}", apiHandler.DeleteChainHandler)

			r.Post("/artists", apiHandler.SaveArtistHandler)
			r.Delete("/artists/{artistID}", apiHandler.DeleteArtistHandler)

			r.Post("/inspirations", apiHandler.SaveInspirationHandler)
			r.Delete("/inspirations/{inspirationID}", apiHandler.DeleteInspirationHandler)
		})
	})

	// Registered last so the JSON envelope propagates into the /api subrouter.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "unknown route")
	})

	return r
}
