package m17

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterleaveIsInvolution(t *testing.T) {
	for i := 0; i < type3_bits; i++ {
		assert.Equal(t, i, interleave_index(interleave_index(i)), "position %d", i)
	}
}

func TestInterleaveBytesRoundTrip(t *testing.T) {
	var data [type3_bytes]byte
	for i := range data {
		data[i] = byte(i*37 + 11)
	}
	var once = interleave_bytes(data[:])
	assert.NotEqual(t, data, once)
	var twice = interleave_bytes(once[:])
	assert.Equal(t, data, twice)
}

func TestRandomizerRoundTrip(t *testing.T) {
	var data [type3_bytes]byte
	for i := range data {
		data[i] = byte(255 - i)
	}
	var orig = data
	randomize_bytes(data[:])
	assert.NotEqual(t, orig, data)
	randomize_bytes(data[:])
	assert.Equal(t, orig, data)
}

func TestDerandomizeSoftMatchesBytes(t *testing.T) {
	// Hard bytes through the byte path and saturated soft bits through the
	// soft path must agree.
	var data [type3_bytes]byte
	for i := range data {
		data[i] = byte(i * 89)
	}

	var soft [type3_bits]float32
	for i := 0; i < type3_bits; i++ {
		soft[i] = float32(get_bit(data[:], i))
	}
	derandomize_soft(&soft)
	var softOut = deinterleave_soft(&soft)

	var bytesOut = append([]byte{}, data[:]...)
	randomize_bytes(bytesOut)
	var deinterleaved = interleave_bytes(bytesOut)

	assert.Equal(t, deinterleaved[:], hard_bytes(softOut[:]))
}
