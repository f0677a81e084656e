package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const wavHeaderSize = 44

// EncodeWAV wraps mono 16-bit PCM samples in a canonical 44-byte RIFF/WAVE
// header followed by little-endian sample data.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))           // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))            // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1))            // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))   // sample rate
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(buf, binary.LittleEndian, samples)

	return buf.Bytes()
}

// DecodeWAV is the exact inverse of EncodeWAV. It only accepts the container
// EncodeWAV produces: RIFF/WAVE, mono, 16-bit PCM, one fmt chunk followed by
// one data chunk.
func DecodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < wavHeaderSize {
		return nil, 0, fmt.Errorf("wav data too short: %d bytes", len(data))
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE container")
	}
	if string(data[12:16]) != "fmt " {
		return nil, 0, fmt.Errorf("missing fmt chunk")
	}

	audioFormat := binary.LittleEndian.Uint16(data[20:22])
	channels := binary.LittleEndian.Uint16(data[22:24])
	bitsPerSample := binary.LittleEndian.Uint16(data[34:36])
	if audioFormat != 1 || channels != 1 || bitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported encoding: format=%d channels=%d bits=%d",
			audioFormat, channels, bitsPerSample)
	}

	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))

	if string(data[36:40]) != "data" {
		return nil, 0, fmt.Errorf("missing data chunk")
	}
	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	if wavHeaderSize+dataSize > len(data) {
		return nil, 0, fmt.Errorf("data chunk size %d exceeds payload", dataSize)
	}

	samples := BytesToInt16(data[wavHeaderSize : wavHeaderSize+dataSize])
	return samples, sampleRate, nil
}
