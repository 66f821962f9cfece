// ABOUTME: Frame encoder for captured microphone audio
// ABOUTME: Converts float samples to base64 PCM16 and computes frame RMS
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

// EncodeFrame converts one captured frame of float samples in [-1, 1] to
// the wire payload: clamp, scale to signed 16-bit, pack little-endian,
// base64. Scaling is asymmetric (negative x32768, non-negative x32767)
// so both rails of the int16 range are reachable.
func EncodeFrame(samples []float32) string {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sampleToInt16(s)))
	}
	return base64.StdEncoding.EncodeToString(out)
}

func sampleToInt16(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// DecodePCM16 is the inverse of the packing step: base64 to int16 samples.
// An odd byte count is a caller bug, not a runtime condition; the trailing
// byte is ignored.
func DecodePCM16(payload string) ([]int16, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples, nil
}

// RMS returns the root-mean-square amplitude of a frame, the loudness
// proxy fed to the activity detector and the level meter.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
