package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/bubblesets/internal/bubble"
	"github.com/inamate/bubblesets/internal/document"
	"github.com/inamate/bubblesets/internal/scene"
)

type fixedDocs map[string]*document.Scene

func (d fixedDocs) Document(_ context.Context, sceneID, userID string) (*document.Scene, error) {
	sc, ok := d[sceneID]
	if !ok {
		return nil, scene.ErrNotFound
	}
	return sc, nil
}

func quiet() bubble.Option { return bubble.WithLogger(slog.New(slog.DiscardHandler)) }

func TestPNG(t *testing.T) {
	sc := document.NewSampleScene("scene_sample")
	sc.Width, sc.Height = 640, 480

	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, sc, 0.5, quiet()))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())

	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a, "background is opaque")

	err = PNG(&buf, sc, 100, quiet())
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestExportHandlers(t *testing.T) {
	sc := document.NewSampleScene("scene_sample")
	h := NewHandler(fixedDocs{"scene_sample": sc}, quiet())
	r := mux.NewRouter()
	r.HandleFunc("/scenes/{sceneId}/export.png", h.ExportScene)
	r.HandleFunc("/export/png", h.ExportDocument)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scenes/scene_sample/export.png?scale=0.25", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Sample.png")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scenes/missing/export.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scenes/scene_sample/export.png?scale=9", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, err := json.Marshal(sc)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/export/png?scale=0.25", bytes.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)

	broken := document.NewEmptyScene("scene_x", "x")
	broken.Edges["e"] = document.Edge{ID: "e", Source: "a", Target: "b"}
	body, err = json.Marshal(broken)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/export/png", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "scene", sanitize(""))
	assert.Equal(t, "my-scene-2", sanitize("my scene/2"))
}
