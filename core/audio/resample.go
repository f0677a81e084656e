package audio

import (
	"encoding/binary"
	"math"
)

// Resample downsamples mono samples from inputRate to outputRate using a
// box-filter decimator: each output sample is the mean of its input window.
// The filter trades frequency response for bounded per-frame latency, which
// is what the capture path needs. Upsampling is not performed; when
// outputRate >= inputRate the input is returned unchanged.
func Resample(samples []float32, inputRate, outputRate int) []float32 {
	if outputRate >= inputRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(inputRate) / float64(outputRate)
	outputLen := int(math.Round(float64(len(samples)) / ratio))
	output := make([]float32, outputLen)

	for i := range output {
		start := int(math.Floor(float64(i) * ratio))
		end := int(math.Floor(float64(i+1) * ratio))
		if end > len(samples) {
			end = len(samples)
		}
		if start >= end {
			if start >= len(samples) {
				start = len(samples) - 1
			}
			output[i] = samples[start]
			continue
		}

		var sum float64
		for _, sample := range samples[start:end] {
			sum += float64(sample)
		}
		output[i] = float32(sum / float64(end-start))
	}

	return output
}

// FloatToInt16 converts normalized samples to 16-bit PCM. Samples outside
// [-1, 1] are clamped, not wrapped.
func FloatToInt16(samples []float32) []int16 {
	output := make([]int16, len(samples))
	for i, sample := range samples {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		if sample < 0 {
			output[i] = int16(sample * 32768)
		} else {
			output[i] = int16(sample * 32767)
		}
	}
	return output
}

// Int16ToFloat converts 16-bit PCM to normalized samples in [-1, 1).
func Int16ToFloat(samples []int16) []float32 {
	output := make([]float32, len(samples))
	for i, sample := range samples {
		output[i] = float32(sample) / 32768.0
	}
	return output
}

// Int16ToBytes lays samples out as little-endian PCM16 bytes.
func Int16ToBytes(samples []int16) []byte {
	output := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(output[i*2:], uint16(sample))
	}
	return output
}

// BytesToInt16 parses little-endian PCM16 bytes. A trailing odd byte is
// dropped.
func BytesToInt16(data []byte) []int16 {
	output := make([]int16, len(data)/2)
	for i := range output {
		output[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return output
}

// RMS is the root-mean-square energy of a frame, used as a loudness proxy.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Peak is the largest absolute sample value in a frame.
func Peak(samples []float32) float64 {
	var peak float64
	for _, sample := range samples {
		if abs := math.Abs(float64(sample)); abs > peak {
			peak = abs
		}
	}
	return peak
}
