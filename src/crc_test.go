package m17

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRCCheckValues(t *testing.T) {
	// Check values published in the protocol specification.
	assert.Equal(t, uint16(0xFFFF), m17_crc([]byte{}))
	assert.Equal(t, uint16(0x206E), m17_crc([]byte("A")))
	assert.Equal(t, uint16(0x772B), m17_crc([]byte("123456789")))

	var all = make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	assert.Equal(t, uint16(0x1C31), m17_crc(all))
}

func TestCRCAppendedChecksToZero(t *testing.T) {
	var data = []byte("Hello, world!")
	var crc = m17_crc(data)
	var framed = append(append([]byte{}, data...), byte(crc>>8), byte(crc&0xFF))
	assert.Equal(t, uint16(0), m17_crc(framed))
}
