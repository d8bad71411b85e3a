package m17

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAddressEncode(t *testing.T) {
	var addr, err = ParseCallsign("AB1CD")
	require.NoError(t, err)
	assert.Equal(t, [6]byte{0x00, 0x00, 0x00, 0x9f, 0xdd, 0x51}, encode_address(addr))
}

func TestAddressDecode(t *testing.T) {
	var addr = decode_address([]byte{0x00, 0x00, 0x00, 0x9f, 0xdd, 0x51})
	var call, err = addr.Callsign()
	require.NoError(t, err)
	assert.Equal(t, "AB1CD", call)
}

func TestAddressLowercaseFolded(t *testing.T) {
	var lower, err = ParseCallsign("ab1cd")
	require.NoError(t, err)
	var upper, err2 = ParseCallsign("AB1CD")
	require.NoError(t, err2)
	assert.Equal(t, upper, lower)
}

func TestAddressRejects(t *testing.T) {
	var bad = []string{"", "TOOLONGCALL", "AB#CD", "K6*", "ÅLAND"}
	for _, text := range bad {
		var _, err = ParseCallsign(text)
		assert.ErrorIs(t, err, ErrInvalidAddress, "expected rejection for %q", text)
	}
}

func TestAddressClasses(t *testing.T) {
	assert.True(t, AddressBroadcast.IsBroadcast())
	assert.Equal(t, "@ALL", AddressBroadcast.String())

	var reserved = Address(0xEE6B28000000)
	assert.True(t, reserved.IsReserved())
	var _, err = reserved.Callsign()
	assert.ErrorIs(t, err, ErrInvalidAddress)

	var _, noneErr = AddressNone.Callsign()
	assert.ErrorIs(t, noneErr, ErrInvalidAddress)

	var top, topErr = ParseCallsign(strings.Repeat(".", 9))
	require.NoError(t, topErr)
	assert.True(t, top.IsCallsign())
	assert.Equal(t, callsign_max, top)
}

func TestAddressRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// Trailing spaces are legal on air but not canonical text, so
		// the final character is drawn from the rest of the alphabet.
		var alphabet = " ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-/."
		var body = rapid.StringOfN(rapid.RuneFrom([]rune(alphabet)), 0, 8, -1).Draw(t, "body")
		var last = rapid.RuneFrom([]rune(alphabet[1:])).Draw(t, "last")
		var text = body + string(last)

		var addr, err = ParseCallsign(text)
		require.NoError(t, err)

		var wire = encode_address(addr)
		var back = decode_address(wire[:])
		assert.Equal(t, addr, back)

		var call, callErr = back.Callsign()
		require.NoError(t, callErr)
		assert.Equal(t, text, call)
	})
}
