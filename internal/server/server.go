// Package server is the HTTP front end: an upload page, a JSON detection API
// and the species listing.
package server

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"coral_detector/internal/app"
)

//go:embed templates/*.html static/*
var assets embed.FS

const pageTitle = "Coral Classification with YOLO11"

// Server serves one App. Uploads are processed one at a time.
type Server struct {
	app     *app.App
	log     logrus.FieldLogger
	encoder cropEncoder
	page    *template.Template
	// busy holds a token while an upload is being processed.
	busy chan struct{}
}

// New builds a Server around a.
func New(a *app.App) *Server {
	page := template.Must(template.New("index.html").Funcs(template.FuncMap{
		"dataURL": func(s string) template.URL { return template.URL(s) },
	}).ParseFS(assets, "templates/index.html"))

	return &Server{
		app:     a,
		log:     a.Log.WithField("component", "server"),
		encoder: newCropEncoder(a.Config.CropFormat),
		page:    page,
		busy:    make(chan struct{}, 1),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	static, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost)
	r.HandleFunc("/species", s.handleSpecies).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Use(s.logRequests)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		Addr:         addr,
		WriteTimeout: 120 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("Server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// acquire waits for the single processing slot.
func (s *Server) acquire(ctx context.Context) error {
	select {
	case s.busy <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) release() {
	<-s.busy
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Info("Request handled")
	})
}
