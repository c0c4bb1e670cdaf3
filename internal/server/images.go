package server

import (
	"encoding/base64"
	"errors"
	"strings"
)

const dataURLPrefix = "data:image/png;base64,"

// decodeImageData accepts a raw base64 string or a data URL and returns the
// PNG bytes. Undecodable input is rejected so no step row is created for it.
func decodeImageData(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("no image data")
	}
	if _, encoded, found := strings.Cut(raw, ","); found {
		raw = encoded
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(decoded) == 0 {
		return nil, errors.New("empty image data")
	}
	return decoded, nil
}

func encodeImageData(image []byte) string {
	if len(image) == 0 {
		return ""
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(image)
}
