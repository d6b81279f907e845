package worker

import (
	"image"

	"github.com/aliskhannn/image-optimizer/internal/model"
)

// ResponseType tags a message sent back by the worker.
type ResponseType string

const (
	TypeSuccess  ResponseType = "success"
	TypeError    ResponseType = "error"
	TypeProgress ResponseType = "progress"
)

// ProgressCheckpoint is reported once per task, right before the final encode.
const ProgressCheckpoint = 50

// Request asks the worker to process one decoded raster. The worker owns
// Pixels after the request is posted.
type Request struct {
	Type    model.Kind
	ID      string
	Pixels  *image.NRGBA
	Options model.ProcessingOptions
}

// Response is a message from the worker. Every request gets zero or more
// progress responses and exactly one success or error response.
type Response struct {
	Type     ResponseType
	ID       string
	Result   *model.ProcessingResult // set on success
	Error    string                  // set on error
	Progress int                     // set on progress, in percent
}
