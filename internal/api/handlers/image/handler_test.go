package image_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/image-optimizer/internal/api/handlers/image"
	"github.com/aliskhannn/image-optimizer/internal/api/router"
	"github.com/aliskhannn/image-optimizer/internal/canvas"
	"github.com/aliskhannn/image-optimizer/internal/converter"
	"github.com/aliskhannn/image-optimizer/internal/model"
	"github.com/aliskhannn/image-optimizer/internal/notify"
	"github.com/aliskhannn/image-optimizer/internal/optimizer"
	"github.com/aliskhannn/image-optimizer/internal/processor"
	imagesvc "github.com/aliskhannn/image-optimizer/internal/service/image"
	"github.com/aliskhannn/image-optimizer/internal/testutil"
)

type upload struct {
	field, name, contentType string
	data                     []byte
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()

	enc := canvas.NewEncoder()
	bus := notify.NewBus()
	center := notify.NewCenter(0)
	center.Attach(bus)

	svc := imagesvc.NewService(
		optimizer.New(enc, nil, bus, optimizer.DefaultConfig()),
		converter.New(enc),
		processor.New(processor.Config{MaxWidth: 64, MaxHeight: 64}),
		enc,
		imagesvc.WithBus(bus),
		imagesvc.WithNotifications(center),
	)

	return router.Setup(image.NewHandler(svc))
}

func multipartRequest(t *testing.T, path string, files []upload, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func pngUpload(field, name string, w, h int) upload {
	return upload{field: field, name: name, contentType: "image/png", data: testutil.PNG(testutil.Gradient(w, h))}
}

func TestOptimizeEndpoint(t *testing.T) {
	r := newRouter(t)

	rec := serve(r, multipartRequest(t, "/api/optimize", []upload{pngUpload("file", "big.png", 256, 128)}, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=31536000", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("X-Optimization-Fallback"))

	img, err := canvas.Decode(model.SourceImage{Data: rec.Body.Bytes()})
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}

func TestOptimizeEndpointFallsBackToOriginal(t *testing.T) {
	r := newRouter(t)
	corrupt := upload{field: "file", name: "broken.png", contentType: "image/png", data: []byte("not really a png")}

	rec := serve(r, multipartRequest(t, "/api/optimize", []upload{corrupt}, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-Optimization-Fallback"))
	assert.Equal(t, corrupt.data, rec.Body.Bytes())
}

func TestOptimizeEndpointRejects(t *testing.T) {
	r := newRouter(t)

	rec := serve(r, multipartRequest(t, "/api/optimize", nil, map[string]string{"x": "y"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", errorBody(t, rec)["error"])

	text := upload{field: "file", name: "notes.txt", contentType: "text/plain", data: []byte("hello")}
	rec = serve(r, multipartRequest(t, "/api/optimize", []upload{text}, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File is not an image", errorBody(t, rec)["error"])
}

func TestCompressEndpoint(t *testing.T) {
	r := newRouter(t)
	src := upload{field: "file", name: "photo.jpg", contentType: "image/jpeg", data: testutil.JPEG(testutil.Gradient(64, 64), 100)}

	rec := serve(r, multipartRequest(t, "/api/compress", []upload{src}, map[string]string{"preset": "enhanced"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Original-Size"))
	assert.NotEmpty(t, rec.Header().Get("X-Optimized-Size"))
	assert.Equal(t, "64", rec.Header().Get("X-Image-Width"))

	rec = serve(r, multipartRequest(t, "/api/compress", []upload{src}, map[string]string{"options": "{broken"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, multipartRequest(t, "/api/compress", []upload{src}, map[string]string{"options": `{"resizeMode":"extreme"}`}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConvertEndpoint(t *testing.T) {
	r := newRouter(t)

	rec := serve(r, multipartRequest(t, "/api/convert", []upload{pngUpload("file", "logo.png", 40, 20)}, map[string]string{
		"format":  "webp",
		"quality": "0.9",
		"width":   "20",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="logo.webp"`, rec.Header().Get("Content-Disposition"))
	assert.Regexp(t, `^-?\d+\.\d{2}%$`, rec.Header().Get("X-Compression-Ratio"))
	assert.Equal(t, "20", rec.Header().Get("X-Image-Width"))
	assert.Equal(t, "20", rec.Header().Get("X-Image-Height"))
}

func TestConvertEndpointNamesFallbackAfterWrittenFormat(t *testing.T) {
	r := newRouter(t)

	rec := serve(r, multipartRequest(t, "/api/convert", []upload{pngUpload("file", "favicon.png", 16, 16)}, map[string]string{
		"format": "ico",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="favicon.png"`, rec.Header().Get("Content-Disposition"))
}

func TestConvertEndpointRejects(t *testing.T) {
	r := newRouter(t)

	rec := serve(r, multipartRequest(t, "/api/convert", []upload{pngUpload("file", "a.png", 4, 4)}, map[string]string{"format": "tiff"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, multipartRequest(t, "/api/convert", []upload{pngUpload("file", "a.png", 4, 4)}, map[string]string{"format": "png", "quality": "7"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	broken := upload{field: "file", name: "a.png", contentType: "image/png", data: []byte("garbage")}
	rec = serve(r, multipartRequest(t, "/api/convert", []upload{broken}, map[string]string{"format": "png"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Failed to load image", errorBody(t, rec)["error"])
}

func TestConvertBatchEndpoint(t *testing.T) {
	r := newRouter(t)

	files := []upload{pngUpload("files", "one.png", 8, 8), pngUpload("files", "two.png", 8, 8)}
	rec := serve(r, multipartRequest(t, "/api/convert/batch", files, map[string]string{"format": "jpeg"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("X-Converted-Count"))
	assert.Equal(t, "0", rec.Header().Get("X-Failed-Count"))
}

func TestFormatsAndNotifications(t *testing.T) {
	r := newRouter(t)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/formats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var formats struct {
		Result []imagesvc.FormatInfo `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &formats))
	assert.NotEmpty(t, formats.Result)

	src := upload{field: "file", name: "photo.jpg", contentType: "image/jpeg", data: testutil.JPEG(testutil.Gradient(32, 32), 90)}
	require.Equal(t, http.StatusOK, serve(r, multipartRequest(t, "/api/compress", []upload{src}, nil)).Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"read":false`)

	assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodPost, "/api/notifications/read", nil)).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodDelete, "/api/notifications", nil)).Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	assert.JSONEq(t, `{"result":[]}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	rec := serve(newRouter(t), httptest.NewRequest(http.MethodOptions, "/api/convert", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
