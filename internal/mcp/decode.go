package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/doccov/internal/errors"
)

// decode binds tool arguments to a request struct. Inline specs stay raw
// JSON until ops decodes them; malformed arguments are INVALID_REQUEST.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var input T
	if err := req.BindArguments(&input); err != nil {
		return input, errors.NewInvalidRequest("invalid arguments for " + req.Params.Name + ": " + err.Error())
	}
	return input, nil
}
