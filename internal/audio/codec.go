// Package audio implements the codec plane: mu-law/PCM conversion, streaming
// resampling, and fixed-duration frame assembly.
package audio

import "fmt"

// Profile names one of the two fixed wire audio profiles a session may use.
type Profile string

const (
	// ProfileTelephony is 8kHz mu-law, 160-byte frames, 20ms cadence.
	ProfileTelephony Profile = "telephony"
	// ProfileWeb is 16kHz signed 16-bit PCM little-endian mono, 640-byte
	// inbound frames (20ms).
	ProfileWeb Profile = "web"
)

// FrameDurationMs is the fixed audio quantum every Session operates on.
const FrameDurationMs = 20

// FrameBytes returns the wire byte length of one 20ms frame for the given
// profile, or 0 if the profile is not recognized.
func FrameBytes(p Profile) int {
	switch p {
	case ProfileTelephony:
		return 160
	case ProfileWeb:
		return 640
	default:
		return 0
	}
}

// FrameSamples returns the number of PCM samples in one 20ms frame.
func FrameSamples(p Profile) int {
	switch p {
	case ProfileTelephony:
		return 160
	case ProfileWeb:
		return 320
	default:
		return 0
	}
}

// SampleRate returns the wire sample rate in Hz for the given profile.
func SampleRate(p Profile) int {
	switch p {
	case ProfileTelephony:
		return 8000
	case ProfileWeb:
		return 16000
	default:
		return 0
	}
}

// CodecError reports an unsupported sample width, rate, or profile. Per the
// error taxonomy this is fatal to the current turn, not the session.
type CodecError struct {
	Reason string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec: %s", e.Reason)
}

// Decode converts wire bytes for the given profile into signed 16-bit PCM
// samples. Telephony frames are mu-law; web frames are already linear PCM.
func Decode(data []byte, p Profile) ([]int16, error) {
	switch p {
	case ProfileTelephony:
		return DecodeMulaw(data), nil
	case ProfileWeb:
		return DecodePCM16LE(data)
	default:
		return nil, &CodecError{Reason: fmt.Sprintf("unsupported profile %q", p)}
	}
}

// Encode converts signed 16-bit PCM samples into wire bytes for the given profile.
func Encode(samples []int16, p Profile) ([]byte, error) {
	switch p {
	case ProfileTelephony:
		return EncodeMulaw(samples), nil
	case ProfileWeb:
		return EncodePCM16LE(samples), nil
	default:
		return nil, &CodecError{Reason: fmt.Sprintf("unsupported profile %q", p)}
	}
}
