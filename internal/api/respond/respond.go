package respond

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

// Success represents a standard structure for successful responses.
type Success struct {
	Result interface{} `json:"result"`
}

// Error represents the error body expected by browser clients.
type Error struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Blob writes raw image bytes with the given content type.
func Blob(c *ginext.Context, status int, contentType string, data []byte) {
	c.Data(status, contentType, data)
}

// JSON sends a JSON response with the specified HTTP status code and data.
// It uses the Gin context to encode the data into JSON format.
func JSON(c *ginext.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// OK sends a 200 OK JSON response, wrapping the given result in a Success struct.
func OK(c *ginext.Context, result interface{}) {
	JSON(c, http.StatusOK, Success{Result: result})
}

// Fail sends an error JSON response with the specified HTTP status code.
func Fail(c *ginext.Context, status int, message string) {
	JSON(c, status, Error{Error: message})
}

// FailWithDetails sends an error JSON response carrying the cause in details.
func FailWithDetails(c *ginext.Context, status int, message string, err error) {
	JSON(c, status, Error{Error: message, Details: err.Error()})
}
