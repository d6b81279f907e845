package format

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// ErrUnknownFormat is returned when a format identifier is not in the registry.
var ErrUnknownFormat = errors.New("unknown image format")

// Format is a logical image format identifier ("png", "jpeg", "webp", ...).
type Format string

const (
	PNG  Format = "png"
	JPG  Format = "jpg"
	JPEG Format = "jpeg"
	WebP Format = "webp"
	ICO  Format = "ico"
	AVIF Format = "avif"
	BMP  Format = "bmp"
)

// Spec describes how a format is written.
type Spec struct {
	MIME           string  // MIME type of the encoded output
	DefaultQuality float64 // encoder quality in [0,1] used when the caller gives none
	Lossy          bool    // quality is only meaningful for lossy formats
	Alpha          bool    // format can carry an alpha channel
}

var registry = map[Format]Spec{
	PNG:  {MIME: "image/png", DefaultQuality: 1.0, Alpha: true},
	JPG:  {MIME: "image/jpeg", DefaultQuality: 0.92, Lossy: true},
	JPEG: {MIME: "image/jpeg", DefaultQuality: 0.92, Lossy: true},
	WebP: {MIME: "image/webp", DefaultQuality: 0.9, Lossy: true, Alpha: true},
	ICO:  {MIME: "image/x-icon", DefaultQuality: 1.0, Alpha: true},
	AVIF: {MIME: "image/avif", DefaultQuality: 0.85, Lossy: true, Alpha: true},
	BMP:  {MIME: "image/bmp", DefaultQuality: 1.0},
}

// Lookup returns the registry entry for f.
func Lookup(f Format) (Spec, error) {
	s, ok := registry[f]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}

	return s, nil
}

// MIME returns the MIME type for f, or "image/png" for unknown formats.
func MIME(f Format) string {
	if s, ok := registry[f]; ok {
		return s.MIME
	}

	return registry[PNG].MIME
}

// DefaultQuality returns the default encoder quality for f.
func DefaultQuality(f Format) float64 {
	if s, ok := registry[f]; ok {
		return s.DefaultQuality
	}

	return 1.0
}

// Parse converts a case-insensitive identifier into a registered Format.
func Parse(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := registry[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}

	return f, nil
}

// IsSupported reports whether s names a registered format.
func IsSupported(s string) bool {
	_, ok := registry[Format(s)]
	return ok
}

// Canonical folds aliases onto one identifier (jpg -> jpeg).
func Canonical(f Format) Format {
	if f == JPG {
		return JPEG
	}

	return f
}

// FromMIME maps a MIME type such as "image/webp" to its Format.
// Aliases resolve to the canonical identifier.
func FromMIME(mime string) (Format, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	sub, ok := strings.CutPrefix(mime, "image/")
	if !ok {
		return "", false
	}

	switch sub {
	case "jpg", "pjpeg":
		return JPEG, true
	case "vnd.microsoft.icon":
		return ICO, true
	}

	for f, s := range registry {
		if s.MIME == mime || string(f) == sub {
			return Canonical(f), true
		}
	}

	return "", false
}

// All returns every registered format in stable order.
func All() []Format {
	out := make([]Format, 0, len(registry))
	for f := range registry {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// FileExtension returns the lower-cased text after the last dot of name.
// A name without a dot is returned whole, lower-cased.
func FileExtension(name string) string {
	parts := strings.Split(name, ".")
	return strings.ToLower(parts[len(parts)-1])
}

// ConvertedFileName swaps the extension of name for f.
func ConvertedFileName(name string, f Format) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return base + "." + string(f)
}

// OutputFileName names the output of name after the format mime was actually
// written in, so a fallback encode does not keep the requested extension.
// fallback is used when mime names no registered format.
func OutputFileName(name, mime string, fallback Format) string {
	f, ok := FromMIME(mime)
	if !ok {
		f = fallback
	}

	return ConvertedFileName(name, f)
}

// FormatFileSize renders a byte count with binary units, e.g. "1.50 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}

	sizes := []string{"B", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}

	return fmt.Sprintf("%.2f %s", float64(bytes)/math.Pow(1024, float64(i)), sizes[i])
}

// HumanSize is the short form used in notifications and the CLI ("1.5 MiB").
func HumanSize(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}

	return humanize.IBytes(uint64(bytes))
}
