package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/oselabs/paperbase/internal/api/handlers"
	appMiddleware "github.com/oselabs/paperbase/internal/api/middlewares"
	"github.com/oselabs/paperbase/internal/config"
	ingestor "github.com/oselabs/paperbase/internal/core/ingestion_engine"
	"github.com/oselabs/paperbase/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, users *services.UserService, docs *services.DocumentService, pipeline *ingestor.Pipeline) *Server {
	authHandler := handlers.NewAuthHandler(users)
	userHandler := handlers.NewUserHandler(users)
	docHandler := handlers.NewDocumentHandler(docs, cfg)
	workerHandler := handlers.NewWorkerHandler(pipeline)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// delivery endpoint for an external job dispatcher
		api.Post("/worker/process", workerHandler.Process)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware)
			protected.Post("/documents/initiate-upload", docHandler.InitiateUpload)
			protected.Post("/documents/confirm-upload", docHandler.ConfirmUpload)
			protected.Get("/documents", docHandler.GetDocuments)
			protected.Get("/documents/{document_id}/signed-url", docHandler.GetSignedURL)
			protected.Post("/documents/bulk-download", docHandler.BulkDownload)
			protected.Post("/documents/{document_id}/reprocess", docHandler.Reprocess)
			protected.Delete("/documents/{document_id}", docHandler.DeleteDocument)
			protected.Delete("/users/me", userHandler.DeleteAccount)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
