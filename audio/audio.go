// Package audio abstracts microphone capture behind a small backend
// interface so the monitor can run against pulse, malgo, or a WAV replay
// without caring which.
package audio

import "strings"

const WAVHeaderSize = 44

// Breath sounds sit far below speech level on most microphones; raw
// samples are boosted by this factor (with clipping) before delivery so
// amplitude classification has something to work with.
const CaptureGain = 8

// DataCallback receives one frame of little-endian int16 PCM.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Context enumerates capture devices and opens capture streams.
type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// Clip16 saturates a widened sample back into int16 range.
func Clip16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

var btKeywords = []string{
	"bluetooth", " bt ", " bt)", " bt]",
	"airpods", "beats", "powerbeats", "galaxy buds", "pixel buds",
	"bose", "jabra", "sony wh-", "sony wf-", "wh-1000", "wf-1000",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
}

// IsBluetooth guesses from the device name. Bluetooth mics drop frames
// when the link degrades, which reads as silence to the classifier.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
