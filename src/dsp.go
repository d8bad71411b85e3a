package m17

import "math"

/*------------------------------------------------------------------
 *
 * Purpose:	Pulse shaping for the 4FSK baseband.
 *
 *		Both directions use the same root raised cosine
 *		filter: the modulator shapes the symbol impulse
 *		train with it and the demodulator applies it again
 *		as the matched filter, so the cascade is a full
 *		raised cosine with no intersymbol interference at
 *		the symbol centers.
 *
 *------------------------------------------------------------------*/

const rrc_rolloff = 0.5
const rrc_taps = 81
const samples_per_symbol = 10

// rrc_48k holds the shaping filter for 48 kHz operation, generated at
// startup. The 1/sqrt(samples_per_symbol) scale puts the worst case
// filter gain (sum of absolute taps) at 4.328, which the modulator's
// amplitude headroom is chosen against.
var rrc_48k [rrc_taps]float32

func init() {
	gen_rrc_filter(rrc_48k[:], rrc_rolloff, samples_per_symbol)
}

/*------------------------------------------------------------------
 *
 * Name:        rrc
 *
 * Purpose:     Root Raised Cosine pulse value.
 *
 * Inputs:      t		- Time in units of symbol duration.
 *				  i.e. The centers of two adjacent symbols
 *				  would differ by 1.
 *
 *		a		- Roll off factor, between 0 and 1.
 *
 * Returns:	Amplitude of the square root of a raised cosine
 *		pulse at time t. Unlike the full raised cosine this
 *		is not zero at the other symbol centers; only the
 *		cascade of two of these filters is.
 *
 *		The formula has removable singularities at t = 0 and
 *		|t| = 1/(4a) which get their limit values.
 *
 *----------------------------------------------------------------*/

func rrc(t float64, a float64) float64 {

	if t > -0.001 && t < 0.001 {
		return 1 - a + 4*a/math.Pi
	}

	var at4 = math.Abs(4 * a * t)
	if at4 > 0.999 && at4 < 1.001 {
		var s, c = math.Sincos(math.Pi / (4 * a))
		return (a / math.Sqrt2) * ((1+2/math.Pi)*s + (1-2/math.Pi)*c)
	}

	var num = math.Sin(math.Pi*t*(1-a)) + 4*a*t*math.Cos(math.Pi*t*(1+a))
	var den = math.Pi * t * (1 - (4*a*t)*(4*a*t))
	return num / den
}

func gen_rrc_filter(pfilter []float32, rolloff float64, sps float64) {
	var scale = 1 / math.Sqrt(sps)
	for k := range pfilter {
		var t = (float64(k) - (float64(len(pfilter))-1)/2.0) / sps
		pfilter[k] = float32(rrc(t, rolloff) * scale)
	}
}
