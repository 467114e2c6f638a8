package audio

import (
	"os"
	"sync/atomic"
	"time"
)

const (
	fakeFrameSamples = 1024
	fakeSampleRate   = 16000
)

// FakeContext replays a WAV file through the CaptureDevice interface.
// Once the recording runs out it feeds silence, which downstream reads
// as a held breath.
type FakeContext struct {
	pcm      []byte
	realtime bool
}

// NewFakeContext loads raw PCM from wavPath. With realtime set, frames
// are paced at the capture rate; otherwise the file is delivered as
// fast as the callback accepts it.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return &FakeContext{pcm: data, realtime: realtime}, nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "replay", Name: "replay"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm, realtime: f.realtime}, nil
}

type FakeCapture struct {
	pcm      []byte
	realtime bool

	callback atomic.Pointer[DataCallback]
	stopCh   chan struct{}
	feedDone chan struct{}
	drained  chan struct{}
}

// Drained closes once the recording itself has been fully delivered;
// only synthetic silence follows.
func (f *FakeCapture) Drained() <-chan struct{} { return f.drained }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.callback.Store(&cb)
}

func (f *FakeCapture) ClearCallback() {
	f.callback.Store(nil)
}

func (f *FakeCapture) DeviceName() string { return "replay" }

func (f *FakeCapture) emit(frame []byte) {
	if cb := f.callback.Load(); cb != nil {
		(*cb)(frame, uint32(len(frame)/2))
	}
}

func (f *FakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	f.drained = make(chan struct{})

	const frameBytes = fakeFrameSamples * 2
	interval := time.Duration(fakeFrameSamples) * time.Second / fakeSampleRate
	if !f.realtime {
		interval = 0
	}

	go func() {
		defer close(f.feedDone)
		silence := make([]byte, frameBytes)
		pos := 0
		for {
			select {
			case <-f.stopCh:
				return
			default:
			}

			if pos < len(f.pcm) {
				end := min(pos+frameBytes, len(f.pcm))
				frame := make([]byte, end-pos)
				copy(frame, f.pcm[pos:end])
				f.emit(frame)
				pos = end
				if pos >= len(f.pcm) {
					close(f.drained)
				}
			} else {
				f.emit(silence)
				if interval == 0 {
					// Keep the silence tail from spinning a core.
					time.Sleep(time.Millisecond)
				}
			}

			if interval > 0 {
				select {
				case <-f.stopCh:
					return
				case <-time.After(interval):
				}
			}
		}
	}()

	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() {}
