package fetcher

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSON decodes a single JSON document from r into out.
func DecodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		if err == io.EOF {
			return eris.New("json: empty response body")
		}
		return eris.Wrap(err, "json: decode object")
	}
	return nil
}

// DecodeJSONObject decodes a single JSON object from a reader.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	if err := DecodeJSON(r, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}
