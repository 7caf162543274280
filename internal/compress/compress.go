package compress

import "fmt"

// Compress encodes record payloads before they reach the store.
type Compress interface {
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

var (
	_ Compress = GZip{}
	_ Compress = Nop{}
	_ Compress = LZ4{}
	_ Compress = Brotli{}
)

// ByName returns the codec stored next to a payload, empty means nop.
func ByName(name string) (Compress, error) {
	switch name {
	case "", "nop":
		return NewNop(), nil
	case "gzip":
		return NewGZip(), nil
	case "lz4":
		return NewLZ4(), nil
	case "brotli":
		return NewBrotli(), nil
	}

	return nil, fmt.Errorf("unknown compression %q", name)
}
