package interactive

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v3"
)

// Scheme names a frame compression scheme negotiated with the service.
type Scheme string

const (
	SchemeNone Scheme = "none"
	SchemeGzip Scheme = "gzip"
	SchemeLZ4  Scheme = "lz4"
)

// ParseScheme maps a scheme name from the wire to a Scheme. Unknown names
// degrade to SchemeNone so that frames round-trip untouched.
func ParseScheme(s string) Scheme {
	switch Scheme(s) {
	case SchemeGzip:
		return SchemeGzip
	case SchemeLZ4:
		return SchemeLZ4
	default:
		return SchemeNone
	}
}

// Encode compresses one outbound frame payload under the scheme.
func (s Scheme) Encode(data []byte) ([]byte, error) {
	switch s {
	case SchemeGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("gzip encode: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("gzip encode: %w", err)
		}
		return buf.Bytes(), nil
	case SchemeLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 encode: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 encode: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return data, nil
	}
}

// Decode decompresses one inbound frame payload under the scheme.
func (s Scheme) Decode(data []byte) ([]byte, error) {
	switch s {
	case SchemeGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer r.Close() // nolint:errcheck
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		return out, nil
	case SchemeLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decode: %w", err)
		}
		return out, nil
	default:
		return data, nil
	}
}

// filterSchemes reduces a preference-ordered list of scheme names to the
// known ones, deduplicated, preserving order.
func filterSchemes(prefs []string) []Scheme {
	seen := make(map[Scheme]struct{}, len(prefs))
	out := make([]Scheme, 0, len(prefs))
	for _, name := range prefs {
		s := Scheme(name)
		switch s {
		case SchemeNone, SchemeGzip, SchemeLZ4:
		default:
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
