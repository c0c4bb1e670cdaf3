package server

import (
	"bytes"
	"strings"
	"testing"
)

func TestDecodeImageData(t *testing.T) {
	pngBytes := []byte{0x89, 0x50, 0x4E, 0x47}

	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{"data url", "data:image/png;base64,iVBORw==", pngBytes, false},
		{"raw base64", "iVBORw==", pngBytes, false},
		{"surrounding whitespace", "  iVBORw==  ", pngBytes, false},
		{"empty", "", nil, true},
		{"whitespace only", "   ", nil, true},
		{"not base64", "data:image/png;base64,!!!", nil, true},
		{"decodes to nothing", "data:image/png;base64,", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeImageData(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("decoded % x, want % x", got, tt.want)
			}
		})
	}
}

func TestEncodeImageDataRoundTrip(t *testing.T) {
	original := []byte{1, 2, 3, 4, 5}
	encoded := encodeImageData(original)
	if !strings.HasPrefix(encoded, "data:image/png;base64,") {
		t.Fatalf("encoded form is not a data URL: %q", encoded)
	}
	decoded, err := decodeImageData(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded, original) {
		t.Fatalf("round trip changed bytes: % x", decoded)
	}
}

func TestEncodeImageDataEmpty(t *testing.T) {
	if got := encodeImageData(nil); got != "" {
		t.Fatalf("empty image encoded to %q", got)
	}
}
