package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-optimizer/internal/api/respond"
	"github.com/aliskhannn/image-optimizer/internal/canvas"
	"github.com/aliskhannn/image-optimizer/internal/format"
	"github.com/aliskhannn/image-optimizer/internal/model"
	"github.com/aliskhannn/image-optimizer/internal/notify"
	"github.com/aliskhannn/image-optimizer/internal/processor"
	imagesvc "github.com/aliskhannn/image-optimizer/internal/service/image"
)

const (
	maxMemory     = 32 << 20
	maxUploadSize = 64 << 20
	cacheForever  = "public, max-age=31536000"
)

// service defines the interface for image-related operations.
type service interface {
	Optimize(ctx context.Context, src model.SourceImage) (processor.Result, error)
	Compress(ctx context.Context, src model.SourceImage, opts model.CompressionOptions) (model.OptimizeResult, error)
	Convert(ctx context.Context, src model.SourceImage, target string, opts model.ConversionOptions) (model.ConversionResult, error)
	ConvertBatch(ctx context.Context, srcs []model.SourceImage, target string, opts model.ConversionOptions) (imagesvc.BatchResult, error)
	Formats() []imagesvc.FormatInfo
	Notifications() []notify.Notification
	MarkNotificationsRead()
	ClearNotifications()
}

// Handler provides HTTP handlers for image-related endpoints.
// It depends on a service interface to perform the business logic.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Optimize is the best-effort server-side optimizer. It answers with the
// re-encoded image, or with the original bytes if processing failed.
func (h *Handler) Optimize(c *ginext.Context) {
	src, err := readSource(c, "file")
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to read upload")
		respond.Fail(c, http.StatusBadRequest, "No file provided")
		return
	}

	res, err := h.service.Optimize(c.Request.Context(), src)
	if err != nil {
		if errors.Is(err, imagesvc.ErrNotImage) {
			respond.Fail(c, http.StatusBadRequest, "File is not an image")
			return
		}
		if errors.Is(err, imagesvc.ErrNoFile) {
			respond.Fail(c, http.StatusBadRequest, "No file provided")
			return
		}

		zlog.Logger.Err(err).Str("name", src.Name).Msg("failed to optimize image")
		respond.FailWithDetails(c, http.StatusInternalServerError, "Failed to process image", err)
		return
	}

	c.Header("Cache-Control", cacheForever)
	if res.Fallback {
		c.Header("X-Optimization-Fallback", "true")
	}

	respond.Blob(c, http.StatusOK, res.ContentType, res.Data)
}

// Compress runs the adaptive optimizer. Options come from the "options"
// JSON field, or from the "preset" field on top of the defaults.
func (h *Handler) Compress(c *ginext.Context) {
	src, err := readSource(c, "file")
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, "No file provided")
		return
	}

	opts := model.DefaultCompressionOptions()
	if preset := c.PostForm("preset"); preset != "" {
		opts = opts.Apply(model.Preset(preset))
	}
	if raw := c.PostForm("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			respond.Fail(c, http.StatusBadRequest, "Invalid options")
			return
		}
	}
	if _, err := model.ParseResizeMode(string(opts.ResizeMode)); err != nil {
		respond.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.Compress(c.Request.Context(), src, opts)
	if err != nil {
		h.fail(c, src, err)
		return
	}

	c.Header("X-Original-Size", strconv.FormatInt(res.OriginalSize, 10))
	c.Header("X-Optimized-Size", strconv.FormatInt(res.OptimizedSize, 10))
	c.Header("X-Image-Width", strconv.Itoa(res.Width))
	c.Header("X-Image-Height", strconv.Itoa(res.Height))

	respond.Blob(c, http.StatusOK, res.MIME, res.Blob)
}

// Convert re-encodes the upload into the "format" field.
func (h *Handler) Convert(c *ginext.Context) {
	src, err := readSource(c, "file")
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, "No file provided")
		return
	}

	opts, err := conversionOptions(c)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	target := c.PostForm("format")
	res, err := h.service.Convert(c.Request.Context(), src, target, opts)
	if err != nil {
		h.fail(c, src, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.OutputFileName(src.Name, res.MIME, res.TargetFormat)))
	c.Header("X-Original-Size", strconv.FormatInt(res.OriginalSize, 10))
	c.Header("X-Optimized-Size", strconv.FormatInt(res.ConvertedSize, 10))
	c.Header("X-Compression-Ratio", res.CompressionRatio)
	c.Header("X-Image-Width", strconv.Itoa(res.Width))
	c.Header("X-Image-Height", strconv.Itoa(res.Height))

	respond.Blob(c, http.StatusOK, res.MIME, res.Blob)
}

// ConvertBatch converts every "files" upload and answers with a ZIP archive,
// or with the stored archive location when exports go to object storage.
func (h *Handler) ConvertBatch(c *ginext.Context) {
	if err := c.Request.ParseMultipartForm(maxMemory); err != nil {
		respond.Fail(c, http.StatusBadRequest, "No file provided")
		return
	}

	var srcs []model.SourceImage
	for _, fh := range c.Request.MultipartForm.File["files"] {
		src, err := readHeader(fh)
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("name", fh.Filename).Msg("failed to read upload")
			respond.Fail(c, http.StatusBadRequest, "Failed to read "+fh.Filename)
			return
		}
		srcs = append(srcs, src)
	}

	opts, err := conversionOptions(c)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.ConvertBatch(c.Request.Context(), srcs, c.PostForm("format"), opts)
	if err != nil {
		h.fail(c, model.SourceImage{Name: "batch"}, err)
		return
	}

	if res.Upload != nil {
		respond.OK(c, res)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="converted.zip"`)
	c.Header("X-Converted-Count", strconv.Itoa(len(res.Converted)))
	c.Header("X-Failed-Count", strconv.Itoa(len(res.Failed)))

	respond.Blob(c, http.StatusOK, "application/zip", res.Archive)
}

// Formats lists the known formats and whether this host can write them.
func (h *Handler) Formats(c *ginext.Context) {
	respond.OK(c, h.service.Formats())
}

// Notifications lists the recent notifications.
func (h *Handler) Notifications(c *ginext.Context) {
	respond.OK(c, h.service.Notifications())
}

// MarkNotificationsRead flags every notification as read.
func (h *Handler) MarkNotificationsRead(c *ginext.Context) {
	h.service.MarkNotificationsRead()
	c.Status(http.StatusNoContent)
}

// ClearNotifications drops every notification.
func (h *Handler) ClearNotifications(c *ginext.Context) {
	h.service.ClearNotifications()
	c.Status(http.StatusNoContent)
}

// fail maps service errors onto status codes.
func (h *Handler) fail(c *ginext.Context, src model.SourceImage, err error) {
	switch {
	case errors.Is(err, imagesvc.ErrNoFile):
		respond.Fail(c, http.StatusBadRequest, "No file provided")
	case errors.Is(err, imagesvc.ErrNotImage):
		respond.Fail(c, http.StatusBadRequest, "File is not an image")
	case errors.Is(err, format.ErrUnknownFormat):
		respond.Fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, canvas.ErrDecode):
		respond.FailWithDetails(c, http.StatusUnprocessableEntity, "Failed to load image", err)
	default:
		zlog.Logger.Err(err).Str("name", src.Name).Msg("failed to process image")
		respond.FailWithDetails(c, http.StatusInternalServerError, "Failed to process image", err)
	}
}

// conversionOptions reads quality (0-1), width and height form fields.
func conversionOptions(c *ginext.Context) (model.ConversionOptions, error) {
	var opts model.ConversionOptions

	if raw := c.PostForm("quality"); raw != "" {
		q, err := strconv.ParseFloat(raw, 64)
		if err != nil || q < 0 || q > 1 {
			return opts, fmt.Errorf("invalid quality: %s", raw)
		}
		opts.Quality = &q
	}

	for field, dst := range map[string]*int{"width": &opts.Width, "height": &opts.Height} {
		raw := c.PostForm(field)
		if raw == "" {
			continue
		}

		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return opts, fmt.Errorf("invalid %s: %s", field, raw)
		}
		*dst = v
	}

	return opts, nil
}

// readSource reads the multipart file in field.
func readSource(c *ginext.Context, field string) (model.SourceImage, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return model.SourceImage{}, err
	}

	return readHeader(fh)
}

func readHeader(fh *multipart.FileHeader) (model.SourceImage, error) {
	f, err := fh.Open()
	if err != nil {
		return model.SourceImage{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		return model.SourceImage{}, err
	}
	if len(data) > maxUploadSize {
		return model.SourceImage{}, fmt.Errorf("%s exceeds %d bytes", fh.Filename, maxUploadSize)
	}

	return model.SourceImage{
		Name: fh.Filename,
		Type: fh.Header.Get("Content-Type"),
		Data: data,
	}, nil
}
