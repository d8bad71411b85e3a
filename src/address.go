package m17

/*-------------------------------------------------------------
 *
 * Purpose:	Station addressing: callsign text to and from the
 *		48-bit base-40 encoded form used on the air.
 *
 *		The first character of the callsign is the least
 *		significant base-40 digit, so short callsigns produce
 *		small numbers and trailing padding costs nothing.
 *
 * Reference:	M17 specification, "Address Encoding".
 *
 *--------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"strings"
)

// Address is a 48-bit station identifier.
//
// Values 1 to 0xEE6B27FFFFFF encode callsigns of up to nine characters.
// Everything above that is reserved, except the all-ones broadcast value.
// Zero means no station.
type Address uint64

const (
	AddressNone      Address = 0
	AddressBroadcast Address = 0xFFFFFFFFFFFF
)

const (
	callsign_max         Address = 0xEE6B27FFFFFF
	callsign_max_len             = 9
	address_mask                 = 0xFFFFFFFFFFFF
)

var callsign_alphabet = [40]byte{
	' ', 'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O',
	'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z', '0', '1', '2', '3', '4',
	'5', '6', '7', '8', '9', '-', '/', '.',
}

var ErrInvalidAddress = errors.New("invalid address")

/*-------------------------------------------------------------
 *
 * Name:	ParseCallsign
 *
 * Purpose:	Convert callsign text to its numeric address.
 *
 * Inputs:	text	- Up to 9 characters from the base-40
 *			  alphabet. Lowercase letters are accepted
 *			  and folded to uppercase.
 *
 * Returns:	The encoded Address, or ErrInvalidAddress if the
 *		text is empty, too long, or contains a character
 *		outside the alphabet. Nothing is ever truncated.
 *
 *--------------------------------------------------------------*/

func ParseCallsign(text string) (Address, error) {
	if len(text) == 0 {
		return AddressNone, fmt.Errorf("%w: empty callsign", ErrInvalidAddress)
	}
	if len(text) > callsign_max_len {
		return AddressNone, fmt.Errorf("%w: callsign %q longer than %d characters", ErrInvalidAddress, text, callsign_max_len)
	}
	var out uint64
	var upper = strings.ToUpper(text)
	for i := len(upper) - 1; i >= 0; i-- {
		var pos = alphabet_position(upper[i])
		if pos < 0 {
			return AddressNone, fmt.Errorf("%w: character %q not encodable", ErrInvalidAddress, upper[i])
		}
		out = out*40 + uint64(pos)
	}
	return Address(out), nil
}

func alphabet_position(c byte) int {
	for i, a := range callsign_alphabet {
		if a == c {
			return i
		}
	}
	return -1
}

func (a Address) IsCallsign() bool {
	return a >= 1 && a <= callsign_max
}

func (a Address) IsReserved() bool {
	return a > callsign_max && a < AddressBroadcast
}

func (a Address) IsBroadcast() bool {
	return a == AddressBroadcast
}

// Callsign returns the decoded callsign text.
// It fails with ErrInvalidAddress for broadcast, reserved and unset values,
// which have no textual callsign form.
func (a Address) Callsign() (string, error) {
	if !a.IsCallsign() {
		return "", fmt.Errorf("%w: %012X is not a callsign", ErrInvalidAddress, uint64(a))
	}
	var out [callsign_max_len]byte
	var pos = 0
	var remaining = uint64(a)
	for remaining > 0 {
		out[pos] = callsign_alphabet[remaining%40]
		remaining /= 40
		pos++
	}
	return string(out[:pos]), nil
}

// String is total over all 48-bit values so addresses can always be logged.
func (a Address) String() string {
	switch {
	case a == AddressNone:
		return "<none>"
	case a.IsBroadcast():
		return "@ALL"
	case a.IsReserved():
		return fmt.Sprintf("<reserved-%012X>", uint64(a))
	default:
		var call, _ = a.Callsign()
		return call
	}
}

// decode_address reads the 6-byte big-endian wire form.
func decode_address(encoded []byte) Address {
	var out uint64
	for _, b := range encoded[:6] {
		out = out<<8 | uint64(b)
	}
	return Address(out)
}

// encode_address writes the 6-byte big-endian wire form.
func encode_address(a Address) [6]byte {
	var v = uint64(a) & address_mask
	return [6]byte{
		byte(v >> 40), byte(v >> 32), byte(v >> 24),
		byte(v >> 16), byte(v >> 8), byte(v),
	}
}
