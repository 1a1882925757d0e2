// Package audio implements the narrow slice of telephony audio handling the
// bridge needs: G.711 μ-law transcoding (ITU-T, bias 0x84) and a linear
// resampler for mono 16-bit PCM. Twilio media streams carry μ-law at 8 kHz
// mono; everything here assumes little-endian int16 PCM on the linear side.
package audio

import (
	"encoding/binary"
	"fmt"
)

const (
	ulawBias = 0x84 // 132
	ulawClip = 32635
)

// segment boundaries for the μ-law exponent, precomputed from 0x84 << n.
var segmentEnds = [8]int32{0x100, 0x200, 0x400, 0x800, 0x1000, 0x2000, 0x4000, 0x8000}

// EncodeSample converts one 16-bit PCM sample to its 8-bit μ-law code.
func EncodeSample(sample int16) byte {
	s := int32(sample)

	var sign int32
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > ulawClip {
		s = ulawClip
	}
	s += ulawBias

	var segment int32
	for segment = 0; segment < 7; segment++ {
		if s < segmentEnds[segment] {
			break
		}
	}

	mantissa := (s >> (segment + 3)) & 0x0F
	return byte(^(sign | segment<<4 | mantissa))
}

// DecodeSample converts one μ-law code back to a 16-bit PCM sample.
func DecodeSample(u byte) int16 {
	c := int32(^u)
	sign := c & 0x80
	segment := (c >> 4) & 0x07
	mantissa := c & 0x0F

	sample := ((mantissa | 0x10) << (segment + 3)) - ulawBias
	if sign != 0 {
		sample = -sample
	}
	if sample > 32767 {
		sample = 32767
	} else if sample < -32768 {
		sample = -32768
	}
	return int16(sample)
}

// LinearToUlaw converts little-endian 16-bit mono PCM to μ-law bytes.
func LinearToUlaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm fragment length %d is not a whole number of 16-bit samples", len(pcm))
	}
	out := make([]byte, len(pcm)/2)
	for i := 0; i < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		out[i/2] = EncodeSample(s)
	}
	return out, nil
}

// UlawToLinear converts μ-law bytes to little-endian 16-bit mono PCM.
func UlawToLinear(ulaw []byte) []byte {
	out := make([]byte, len(ulaw)*2)
	for i, u := range ulaw {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(DecodeSample(u)))
	}
	return out
}
