package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// maxJSONBodyBytes caps control-plane request bodies. Chunk payloads
// never pass through here.
const maxJSONBodyBytes = 1 << 20

// decodeJSONBody decodes a JSON request body into dst, rejecting
// oversized bodies and trailing garbage.
func decodeJSONBody(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(body)

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
