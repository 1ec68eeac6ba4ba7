package main

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// newRouter wires the chi router and middleware stack, grounded on the
// teacher's examples/chi-server/main.go: logger, panic recoverer, a
// request timeout, and a permissive CORS policy, generalized from one
// /generate route to the full SPEC_FULL §6 surface.
func newRouter(responses *responsesHandler, chatH *chatHandler, embeddings *embeddingsHandler, files *filesHandler, vectorStores *vectorStoresHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "x-model-provider", "X-B3-TraceId"},
	}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/responses", responses.create)
		r.Get("/responses/{id}", responses.get)
		r.Delete("/responses/{id}", responses.delete)
		r.Get("/responses/{id}/input_items", responses.inputItems)

		r.Post("/chat/completions", chatH.chatCompletions)

		r.Post("/embeddings", embeddings.embeddings)

		r.Post("/files", files.create)
		r.Get("/files/{id}", files.get)
		r.Delete("/files/{id}", files.delete)
		r.Get("/files/{id}/content", files.content)

		r.Post("/vector_stores", vectorStores.create)
		r.Get("/vector_stores", vectorStores.list)
		r.Get("/vector_stores/{id}", vectorStores.get)
		r.Post("/vector_stores/{id}", vectorStores.update)
		r.Delete("/vector_stores/{id}", vectorStores.delete)
		r.Post("/vector_stores/{id}/search", vectorStores.search)
		r.Post("/vector_stores/{id}/files", vectorStores.attachFile)
		r.Get("/vector_stores/{id}/files", vectorStores.listFiles)
		r.Post("/vector_stores/{id}/files/{fileId}", vectorStores.updateFileAttributes)
		r.Delete("/vector_stores/{id}/files/{fileId}", vectorStores.detachFile)
	})

	return r
}
