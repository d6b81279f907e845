package model

// Kind selects the processing path of a worker task.
type Kind string

const (
	KindConvert  Kind = "convert"
	KindCompress Kind = "compress"
)

// ProcessingOptions are the options carried by a worker task.
// Width/Height bound a conversion, MaxWidth/MaxHeight bound a compression.
// Quality is in [0,1]; zero selects the format default.
type ProcessingOptions struct {
	Format    string  `json:"format,omitempty"`
	Quality   float64 `json:"quality,omitempty"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	MaxWidth  int     `json:"maxWidth,omitempty"`
	MaxHeight int     `json:"maxHeight,omitempty"`
}

// ProcessingResult is the outcome of one worker task.
type ProcessingResult struct {
	Blob   []byte `json:"-"`
	MIME   string `json:"mime"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
}
