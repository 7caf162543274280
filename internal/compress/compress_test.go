package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompress_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("#12:4 #12:5 #12:5 "), 64)

	for _, name := range []string{"", "nop", "gzip", "lz4", "brotli"} {
		t.Run(name, func(t *testing.T) {
			c, err := ByName(name)
			assert.NoError(t, err)

			encoded, err := c.Encode(payload)
			assert.NoError(t, err)

			decoded, err := c.Decode(encoded)
			assert.NoError(t, err)
			assert.Equal(t, payload, decoded)
		})
	}
}

func TestByName_Unknown(t *testing.T) {
	_, err := ByName("zstd")
	assert.Error(t, err)
}
