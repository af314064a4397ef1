package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chaos-io/bgrm/config"
	"github.com/chaos-io/bgrm/rembg"
)

type mockEngine struct {
	value float32
	err   error
}

func (m *mockEngine) Infer(_ context.Context, input []float32) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	matte := make([]float32, len(input)/3)
	for i := range matte {
		matte[i] = m.value
	}
	return matte, nil
}

func (m *mockEngine) Close() error { return nil }

func newTestServer(t *testing.T, engine rembg.Engine) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Mode = "test"
	cfg.Upload.OutputDir = "" // 不落盘

	remover, err := rembg.New(engine, rembg.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = remover.Close()
	})

	return New(cfg, remover, zap.NewNop())
}

func multipartImage(t *testing.T, img image.Image) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "input.png")
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, img))
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHandleRemove(t *testing.T) {
	s := newTestServer(t, &mockEngine{value: 1.0})

	img := image.NewNRGBA(image.Rect(0, 0, 50, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 50; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
		}
	}

	body, contentType := multipartImage(t, img)
	req := httptest.NewRequest("POST", "/api/v1/remove", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	out, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 50, out.Bounds().Dx())
	assert.Equal(t, 40, out.Bounds().Dy())

	r, _, _, a := out.At(25, 20).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), a)
}

func TestHandleRemove_MissingFile(t *testing.T) {
	s := newTestServer(t, &mockEngine{value: 1.0})

	req := httptest.NewRequest("POST", "/api/v1/remove", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRemove_BadImage(t *testing.T) {
	s := newTestServer(t, &mockEngine{value: 1.0})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "bad.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("definitely not a png"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/v1/remove", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRemove_InferenceError(t *testing.T) {
	s := newTestServer(t, &mockEngine{err: errors.New("backend unavailable")})

	body, contentType := multipartImage(t, image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	req := httptest.NewRequest("POST", "/api/v1/remove", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, &mockEngine{value: 1.0})

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
