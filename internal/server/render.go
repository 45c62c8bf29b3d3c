package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"coral_detector/internal/results"
)

// previewSize bounds the echoed upload on the result page.
const previewSize = 800

type boxView struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

type entryView struct {
	Rank           int     `json:"rank"`
	Name           string  `json:"name"`
	Confidence     float32 `json:"confidence"`
	ConfidenceText string  `json:"confidence_text"`
	Box            boxView `json:"box"`
	Crop           string  `json:"crop,omitempty"`
	CropError      string  `json:"crop_error,omitempty"`
}

type detectResponse struct {
	Message    string      `json:"message"`
	Best       *entryView  `json:"best"`
	Ranked     []entryView `json:"ranked"`
	Detections int         `json:"detections"`
	TopN       int         `json:"top_n"`
	ElapsedMS  int64       `json:"elapsed_ms"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type speciesView struct {
	Index      int               `json:"index"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// cropEncoder turns crops into data URIs.
type cropEncoder struct {
	format imaging.Format
	mime   string
}

func newCropEncoder(name string) cropEncoder {
	if name == "png" {
		return cropEncoder{format: imaging.PNG, mime: "image/png"}
	}
	return cropEncoder{format: imaging.JPEG, mime: "image/jpeg"}
}

func (c cropEncoder) dataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, c.format, imaging.JPEGQuality(90)); err != nil {
		return "", errors.Wrap(err, "encoding crop")
	}
	return "data:" + c.mime + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// preview returns a downscaled copy of the upload for display.
func (c cropEncoder) preview(img image.Image) (string, error) {
	return c.dataURI(imaging.Fit(img, previewSize, previewSize, imaging.Lanczos))
}

func (s *Server) newEntryView(rank int, e *results.Entry) entryView {
	v := entryView{
		Rank:           rank,
		Name:           e.Name,
		Confidence:     e.Confidence,
		ConfidenceText: e.ConfidenceText,
		Box:            boxView{X1: e.Rect.Min.X, Y1: e.Rect.Min.Y, X2: e.Rect.Max.X, Y2: e.Rect.Max.Y},
	}
	if e.CropErr != nil {
		v.CropError = results.ErrDegenerateCrop.Error()
		return v
	}
	if !e.CropAvailable() {
		return v
	}
	uri, err := s.encoder.dataURI(e.Crop)
	if err != nil {
		s.log.WithError(err).WithField("species", e.Name).Warn("Dropping crop from response")
		v.CropError = results.ErrDegenerateCrop.Error()
		return v
	}
	v.Crop = uri
	return v
}

func (s *Server) newDetectResponse(report *results.Report) detectResponse {
	resp := detectResponse{
		Message:    report.Message,
		Ranked:     make([]entryView, 0, len(report.Ranked)),
		Detections: report.Detections,
		TopN:       report.TopN,
		ElapsedMS:  report.Elapsed.Milliseconds(),
	}
	if report.Best != nil {
		best := s.newEntryView(1, report.Best)
		resp.Best = &best
	}
	for i := range report.Ranked {
		resp.Ranked = append(resp.Ranked, s.newEntryView(i+1, &report.Ranked[i]))
	}
	return resp
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("Failed to encode JSON response")
	}
}

func (s *Server) sendError(w http.ResponseWriter, code, message string, status int) {
	s.writeJSON(w, status, errorResponse{Code: code, Message: message})
}
