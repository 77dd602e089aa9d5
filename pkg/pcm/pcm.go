// SPDX-License-Identifier: MIT

// Package pcm converts between the 16-bit signed little-endian wire format
// and the normalized float samples the signal chain works on.
package pcm

// FullScale divides an int16 sample into [-1, 1). MaxAmplitude scales a
// clamped float back; using 32767 keeps +1.0 inside the int16 range.
const (
	FullScale    = 32768.0
	MaxAmplitude = 32767.0
)

// ToFloat normalizes samples into dst, growing it when needed, and
// returns the filled slice.
func ToFloat(dst []float64, samples []int16) []float64 {
	if cap(dst) < len(samples) {
		dst = make([]float64, len(samples))
	}
	dst = dst[:len(samples)]
	for i, s := range samples {
		dst[i] = float64(s) / FullScale
	}
	return dst
}

// FromFloat clamps each value to [-1, 1] and scales it to int16. The
// conversion truncates toward zero.
func FromFloat(dst []int16, values []float64) []int16 {
	if cap(dst) < len(values) {
		dst = make([]int16, len(values))
	}
	dst = dst[:len(values)]
	for i, v := range values {
		dst[i] = int16(Clamp(v) * MaxAmplitude)
	}
	return dst
}

// Clamp limits v to [-1, 1].
func Clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// Decode reads little-endian int16 samples from b. A trailing odd byte is
// ignored.
func Decode(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}

// Encode writes samples as little-endian bytes.
func Encode(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// Downmix averages interleaved frames of the given channel count into mono.
// Input values are clamped to the int16 range after averaging.
func Downmix(interleaved []int, channels int) []int16 {
	if channels <= 1 {
		out := make([]int16, len(interleaved))
		for i, v := range interleaved {
			out[i] = clampInt16(v)
		}
		return out
	}
	frames := len(interleaved) / channels
	out := make([]int16, frames)
	for f := range frames {
		sum := 0
		for c := range channels {
			sum += interleaved[f*channels+c]
		}
		out[f] = clampInt16(sum / channels)
	}
	return out
}

// Rescale shifts integer samples of the given bit depth to 16 bits.
func Rescale(samples []int, bitDepth int) {
	switch {
	case bitDepth == 16 || bitDepth <= 0:
		return
	case bitDepth == 8:
		// 8-bit WAV is unsigned.
		for i, v := range samples {
			samples[i] = (v - 128) << 8
		}
	case bitDepth > 16:
		shift := uint(bitDepth - 16)
		for i, v := range samples {
			samples[i] = v >> shift
		}
	default:
		shift := uint(16 - bitDepth)
		for i, v := range samples {
			samples[i] = v << shift
		}
	}
}

// Resample converts mono samples from srcRate to dstRate by linear
// interpolation. Equal rates return the input unchanged.
func Resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := samples[idx]
		s1 := s0
		if idx+1 < len(samples) {
			s1 = samples[idx+1]
		}
		out[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return out
}

func clampInt16(v int) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
