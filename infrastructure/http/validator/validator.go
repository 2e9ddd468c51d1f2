package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	domainerr "github.com/cloudcommerce/user-service/domain/error"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 1 << 20

// DecodeJSON reads a JSON object from the request body into dst. An empty
// body decodes to the zero value so the use case can report missing fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domainerr.ErrInvalidRequest(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		}
		return domainerr.ErrInvalidRequest("malformed JSON body")
	}
	if decoder.More() {
		return domainerr.ErrInvalidRequest("request body must contain a single JSON object")
	}
	return nil
}
