package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/inamate/bubblesets/internal/auth"
	"github.com/inamate/bubblesets/internal/bubble"
	"github.com/inamate/bubblesets/internal/canvas"
	"github.com/inamate/bubblesets/internal/document"
	"github.com/inamate/bubblesets/internal/scene"
)

const (
	maxUploadSize = 4 << 20
	maxScale      = 4
	maxPixels     = 4096 * 4096
)

var ErrTooLarge = errors.New("image too large")

// Documents loads scene documents for an authenticated user.
type Documents interface {
	Document(ctx context.Context, sceneID, userID string) (*document.Scene, error)
}

type Handler struct {
	docs Documents
	opts []bubble.Option
}

func NewHandler(docs Documents, opts ...bubble.Option) *Handler {
	return &Handler{docs: docs, opts: opts}
}

// PNG renders sc with its groupings at scale and writes it as PNG.
func PNG(w io.Writer, sc *document.Scene, scale float64, opts ...bubble.Option) error {
	width, height := int(float64(sc.Width)*scale), int(float64(sc.Height)*scale)
	if width <= 0 || height <= 0 || width*height > maxPixels {
		return fmt.Errorf("render %dx%d: %w", width, height, ErrTooLarge)
	}

	scaled := *sc
	zoom := sc.Viewport.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	scaled.Viewport = document.Viewport{X: sc.Viewport.X * scale, Y: sc.Viewport.Y * scale, Zoom: zoom * scale}

	r := canvas.NewRaster(width, height)
	if _, err := document.Render(&scaled, r, opts...); err != nil {
		return err
	}
	if bg, err := canvas.ParseColor(sc.Background); err == nil {
		r.Background(bg)
	}
	return r.EncodePNG(w)
}

// ExportScene renders a stored scene.
func (h *Handler) ExportScene(w http.ResponseWriter, r *http.Request) {
	scale, err := parseScale(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := h.docs.Document(r.Context(), mux.Vars(r)["sceneId"], auth.UserIDFromContext(r.Context()))
	switch {
	case errors.Is(err, scene.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
		return
	case errors.Is(err, scene.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	case err != nil:
		slog.Error("load scene for export", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.write(w, doc, scale)
}

// ExportDocument renders a scene document posted in the body.
func (h *Handler) ExportDocument(w http.ResponseWriter, r *http.Request) {
	scale, err := parseScale(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	var doc document.Scene
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "invalid scene document", http.StatusBadRequest)
		return
	}
	if err := doc.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	h.write(w, &doc, scale)
}

func (h *Handler) write(w http.ResponseWriter, doc *document.Scene, scale float64) {
	var buf bytes.Buffer
	if err := PNG(&buf, doc, scale, h.opts...); err != nil {
		if errors.Is(err, ErrTooLarge) || errors.Is(err, document.ErrInvalidScene) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		slog.Error("export png", "scene", doc.ID, "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.png"`, sanitize(doc.Name)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func parseScale(r *http.Request) (float64, error) {
	v := r.URL.Query().Get("scale")
	if v == "" {
		return 1, nil
	}
	scale, err := strconv.ParseFloat(v, 64)
	if err != nil || scale <= 0 || scale > maxScale {
		return 0, fmt.Errorf("scale must be in (0, %d]", maxScale)
	}
	return scale, nil
}

func sanitize(name string) string {
	if name == "" {
		return "scene"
	}
	out := []rune(name)
	for i, r := range out {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_') {
			out[i] = '-'
		}
	}
	return string(out)
}
