package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("should reject data that is not snappy framed", func(t *testing.T) {
		var out map[string]any
		err := Decode([]byte("{\"plain\":true}"), &out)
		assert.ErrorContains(t, err, "codec: decompress")
	})

	t.Run("should restore the encoded document", func(t *testing.T) {
		// Arrange
		in := map[string]any{"level": 0.5, "on": true}

		// Act
		data, err := Encode(in)
		require.NoError(t, err)
		var out map[string]any
		err = Decode(data, &out)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})
}
