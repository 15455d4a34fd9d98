package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-audio/wav"
)

// EncodeWAV wraps signed 16-bit mono PCM samples in a minimal WAV container,
// used to upload a captured utterance to an STT backend.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataLen := len(samples) * 2
	totalLen := 44 + dataLen

	buf := make([]byte, totalLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(totalLen-8))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(s))
	}
	return buf
}

// DecodeWAV reads a WAV container (as returned by a TTS backend) and
// returns its samples as signed 16-bit mono PCM, downmixing if the source
// is multi-channel. Only integer PCM WAV is supported.
func DecodeWAV(data []byte) (samples []int16, sampleRate int, err error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, 0, &CodecError{Reason: "not a valid WAV container"}
	}

	full, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}

	ch := full.Format.NumChannels
	if ch <= 0 {
		ch = 1
	}
	sampleRate = full.Format.SampleRate

	if ch == 1 {
		samples = make([]int16, len(full.Data))
		for i, v := range full.Data {
			samples[i] = int16(v)
		}
		return samples, sampleRate, nil
	}

	// Downmix to mono by averaging channels.
	frames := len(full.Data) / ch
	samples = make([]int16, frames)
	for i := range frames {
		var sum int
		for c := range ch {
			sum += full.Data[i*ch+c]
		}
		samples[i] = int16(sum / ch)
	}
	return samples, sampleRate, nil
}
