package m17

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func soften(hard [type3_bytes]byte, bits int) []float32 {
	var soft = make([]float32, bits)
	for i := 0; i < bits; i++ {
		soft[i] = float32(get_bit(hard[:], i))
	}
	return soft
}

func TestFecPuncturedLengths(t *testing.T) {
	var count = func(steps int, puncture func(int) (bool, bool)) int {
		var n = 0
		for step := 0; step < steps; step++ {
			var k1, k2 = puncture(step)
			if k1 {
				n++
			}
			if k2 {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 368, count(244, p_1))
	assert.Equal(t, 272, count(148, p_2))
	assert.Equal(t, 368, count(210, p_3))
}

func TestFecRoundTripAllSchemes(t *testing.T) {
	var lsf = make([]byte, 30)
	for i := range lsf {
		lsf[i] = byte(i*37 + 11)
	}
	var enc = fec_encode(lsf, 240, p_1)
	var dec, ok = fec_decode(soften(enc, 368), 240, p_1)
	require.True(t, ok)
	assert.Equal(t, lsf, dec)

	var stream = make([]byte, 18)
	for i := range stream {
		stream[i] = byte(i*53 + 7)
	}
	enc = fec_encode(stream, 144, p_2)
	dec, ok = fec_decode(soften(enc, 272), 144, p_2)
	require.True(t, ok)
	assert.Equal(t, stream, dec)

	var packet = make([]byte, 26)
	for i := range packet {
		packet[i] = byte(i*91 + 29)
	}
	packet[25] &= 0xFC
	enc = fec_encode(packet, 206, p_3)
	dec, ok = fec_decode(soften(enc, 368), 206, p_3)
	require.True(t, ok)
	assert.Equal(t, packet, dec)
}

func TestFecCorrectsScatteredFlips(t *testing.T) {
	var lsf = make([]byte, 30)
	for i := range lsf {
		lsf[i] = byte(i*37 + 11)
	}
	var enc = fec_encode(lsf, 240, p_1)
	var soft = soften(enc, 368)
	for _, i := range []int{10, 100, 300} {
		soft[i] = 1 - soft[i]
	}
	var dec, ok = fec_decode(soft, 240, p_1)
	require.True(t, ok)
	assert.Equal(t, lsf, dec)
}

func TestFecToleratesUncertainBits(t *testing.T) {
	var lsf = make([]byte, 30)
	for i := range lsf {
		lsf[i] = byte(i*37 + 11)
	}
	var enc = fec_encode(lsf, 240, p_1)
	var soft = soften(enc, 368)
	for _, i := range []int{0, 50, 100, 150, 200, 250} {
		soft[i] = 0.5
	}
	var dec, ok = fec_decode(soft, 240, p_1)
	require.True(t, ok)
	assert.Equal(t, lsf, dec)
}

func TestFecRejectsHeavyCorruption(t *testing.T) {
	var lsf = make([]byte, 30)
	for i := range lsf {
		lsf[i] = byte(i*37 + 11)
	}
	var enc = fec_encode(lsf, 240, p_1)
	var soft = soften(enc, 368)
	for i := 0; i < 368; i += 3 {
		soft[i] = 1 - soft[i]
	}
	var _, ok = fec_decode(soft, 240, p_1)
	assert.False(t, ok)
}

func TestFecRoundTripRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var data = rapid.SliceOfN(rapid.Byte(), 30, 30).Draw(t, "data")
		var enc = fec_encode(data, 240, p_1)
		var dec, ok = fec_decode(soften(enc, 368), 240, p_1)
		require.True(t, ok)
		assert.Equal(t, data, dec)
	})
}
