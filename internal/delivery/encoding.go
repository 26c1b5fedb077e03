package delivery

import "strings"

// Encoding is an opaque descriptor of the form "<token>[;<auxiliary>]".
// The substrate performs no interpretation beyond splitting at the first
// semicolon and equality/prefix matching on the token, used as wire-level
// optimization hints. The registry of tokens lives with the peers.
type Encoding string

// Registered encoding tokens.
const (
	EncodingBytes      Encoding = "loom/bytes"
	EncodingString     Encoding = "loom/string"
	EncodingSerialized Encoding = "loom/serialized"
	EncodingJSON       Encoding = "application/json"
	EncodingOctets     Encoding = "application/octet-stream"
	EncodingText       Encoding = "text/plain"
)

// Token returns the part before the first semicolon.
func (e Encoding) Token() string {
	if i := strings.IndexByte(string(e), ';'); i >= 0 {
		return string(e)[:i]
	}
	return string(e)
}

// Suffix returns the auxiliary data after the first semicolon, or empty.
func (e Encoding) Suffix() string {
	if i := strings.IndexByte(string(e), ';'); i >= 0 {
		return string(e)[i+1:]
	}
	return ""
}

// WithSuffix returns the encoding with the auxiliary suffix replaced.
func (e Encoding) WithSuffix(suffix string) Encoding {
	if suffix == "" {
		return Encoding(e.Token())
	}
	return Encoding(e.Token() + ";" + suffix)
}

// Matches reports token equality, ignoring auxiliary data on both sides.
func (e Encoding) Matches(other Encoding) bool {
	return e.Token() == other.Token()
}

// HasPrefix reports whether the token starts with the given prefix.
func (e Encoding) HasPrefix(prefix string) bool {
	return strings.HasPrefix(e.Token(), prefix)
}
