// Package json wraps JSON serialization behind a single import point.
// It uses sonic on amd64/arm64 and falls back to encoding/json elsewhere,
// so callers never depend on the codec choice directly.
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

// Encoder encodes values to a stream.
type Encoder interface {
	Encode(v any) error
}

// Decoder decodes values from a stream.
type Decoder interface {
	Decode(v any) error
}

var (
	// Marshal encodes v into JSON bytes.
	Marshal func(v any) ([]byte, error)

	// Unmarshal decodes JSON bytes into v.
	Unmarshal func(data []byte, v any) error

	// NewEncoder creates a stream encoder for w.
	NewEncoder func(w io.Writer) Encoder

	// NewDecoder creates a stream decoder for r.
	NewDecoder func(r io.Reader) Decoder

	usingSonic bool
)

func init() {
	// sonic 仅支持 amd64/arm64
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		api := sonic.ConfigDefault
		Marshal = api.Marshal
		Unmarshal = api.Unmarshal
		NewEncoder = func(w io.Writer) Encoder { return api.NewEncoder(w) }
		NewDecoder = func(r io.Reader) Decoder { return api.NewDecoder(r) }
		usingSonic = true
		return
	}

	Marshal = stdjson.Marshal
	Unmarshal = stdjson.Unmarshal
	NewEncoder = func(w io.Writer) Encoder { return stdjson.NewEncoder(w) }
	NewDecoder = func(r io.Reader) Decoder { return stdjson.NewDecoder(r) }
}

// MarshalString encodes v into a JSON string.
func MarshalString(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalString decodes a JSON string into v.
func UnmarshalString(data string, v any) error {
	return Unmarshal([]byte(data), v)
}

// IsUsingSonic reports whether sonic backs the package-level functions.
func IsUsingSonic() bool {
	return usingSonic
}
