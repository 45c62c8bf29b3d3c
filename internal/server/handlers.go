package server

import (
	"bytes"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Form fields accepted for the upload, in order of preference.
var uploadFields = []string{"image", "file"}

var errNoUpload = errors.New("no image in request")

type pageData struct {
	Title   string
	Species int
	TopN    int
	// Result is nil on the plain upload page.
	Result  *detectResponse
	Preview string
	Error   string
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.renderPage(w, http.StatusOK, s.newPage())
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	asJSON := wantsJSON(r)

	data, err := s.readUpload(w, r)
	if err != nil {
		status, code := http.StatusBadRequest, "invalid_request"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status, code = http.StatusRequestEntityTooLarge, "too_large"
		}
		s.fail(w, asJSON, code, err.Error(), status)
		return
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		s.log.WithError(err).Debug("Rejected upload")
		s.fail(w, asJSON, "invalid_image", "Failed to decode image", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := s.acquire(ctx); err != nil {
		s.fail(w, asJSON, "cancelled", err.Error(), http.StatusServiceUnavailable)
		return
	}
	report, err := s.app.Ranker.Process(ctx, img, s.app.Detector)
	s.release()
	if err != nil {
		s.log.WithError(err).Error("Detection failed")
		s.fail(w, asJSON, "processing_error", err.Error(), http.StatusInternalServerError)
		return
	}

	resp := s.newDetectResponse(report)
	if asJSON {
		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	page := s.newPage()
	page.Result = &resp
	if page.Preview, err = s.encoder.preview(img); err != nil {
		s.log.WithError(err).Warn("Skipping upload preview")
	}
	s.renderPage(w, http.StatusOK, page)
}

func (s *Server) handleSpecies(w http.ResponseWriter, _ *http.Request) {
	names := s.app.Catalog.Names()
	out := make([]speciesView, len(names))
	for i, name := range names {
		out[i] = speciesView{Index: i, Name: name}
		if s.app.Attributes != nil {
			if attrs, ok := s.app.Attributes.Lookup(name); ok {
				out[i].Attributes = attrs
			}
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"species": s.app.Catalog.Len(),
	})
}

// readUpload returns the image bytes from a multipart form or a raw body.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := s.app.Config.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, errors.Wrap(err, "reading body")
		}
		if len(data) == 0 {
			return nil, errNoUpload
		}
		return data, nil
	}

	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, errors.Wrap(err, "parsing form")
	}
	for _, field := range uploadFields {
		file, _, err := r.FormFile(field)
		if err == http.ErrMissingFile {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", field)
		}
		return readFile(file)
	}
	return nil, errNoUpload
}

func readFile(file multipart.File) ([]byte, error) {
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Wrap(err, "reading upload")
	}
	if len(data) == 0 {
		return nil, errNoUpload
	}
	return data, nil
}

func (s *Server) newPage() pageData {
	return pageData{
		Title:   pageTitle,
		Species: s.app.Catalog.Len(),
		TopN:    s.app.Ranker.TopN(),
	}
}

func (s *Server) renderPage(w http.ResponseWriter, status int, page pageData) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, page); err != nil {
		s.log.WithError(err).Error("Failed to render page")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// fail reports an error as JSON for API callers and as the upload page
// otherwise.
func (s *Server) fail(w http.ResponseWriter, asJSON bool, code, message string, status int) {
	if asJSON {
		s.sendError(w, code, message, status)
		return
	}
	page := s.newPage()
	page.Error = message
	s.renderPage(w, status, page)
}

func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
