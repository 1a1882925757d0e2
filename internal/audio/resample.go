package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Resample converts mono little-endian 16-bit PCM from inRate to outRate
// using linear interpolation. Adequate for 8k<->24k voice bandwidth; not a
// general-purpose resampler.
func Resample(pcm []byte, inRate, outRate int) ([]byte, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("sample rates must be positive, got %d -> %d", inRate, outRate)
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm fragment length %d is not a whole number of 16-bit samples", len(pcm))
	}
	if inRate == outRate {
		return pcm, nil
	}

	n := len(pcm) / 2
	if n == 0 {
		return []byte{}, nil
	}

	src := make([]int32, n)
	for i := range src {
		src[i] = int32(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}

	ratio := float64(outRate) / float64(inRate)
	outLen := int(math.Round(float64(n) * ratio))
	out := make([]byte, outLen*2)

	if n == 1 {
		for j := 0; j < outLen; j++ {
			binary.LittleEndian.PutUint16(out[2*j:], uint16(int16(src[0])))
		}
		return out, nil
	}

	for j := 0; j < outLen; j++ {
		pos := float64(j) / ratio
		i0 := int(pos)
		var s int32
		if i0 >= n-1 {
			s = src[n-1]
		} else {
			frac := pos - float64(i0)
			s = int32(math.Round(float64(src[i0])*(1.0-frac) + float64(src[i0+1])*frac))
		}
		binary.LittleEndian.PutUint16(out[2*j:], uint16(int16(s)))
	}
	return out, nil
}
