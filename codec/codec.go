// Package codec encodes the JSON documents written next to the binary
// archives: job manifests and the summaries printed by the CLI.
//
// Archives themselves use the archive package; a codec only ever sees
// plain structs. The codec name is stored in every manifest so that a
// reader can pick the matching implementation.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}
