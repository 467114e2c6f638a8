// Package breath turns raw microphone frames into a breathing/silence
// classification and an estimated breath rate.
package breath

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"vigil/audio"
)

const (
	SampleRate = 16000
	Channels   = 1

	// FrameInterval is the capture cadence the monitor is tuned for.
	FrameInterval = 33 * time.Millisecond

	// peakDebounce caps the implied rate at ~40 breaths/minute.
	peakDebounce  = 1500 * time.Millisecond
	maxPeaks      = 5
	rawDownsample = 8
)

// Mode selects the classification sensitivity.
type Mode int

const (
	ModeSingle Mode = iota
	ModeTwoPerson
)

// Threshold returns the RMS level above which a frame counts as breathing.
// The two-person profile runs a lower threshold to tolerate a noisier,
// more continuous baseline.
func (m Mode) Threshold() float64 {
	if m == ModeTwoPerson {
		return 0.015
	}
	return 0.02
}

func (m Mode) String() string {
	if m == ModeTwoPerson {
		return "two-person"
	}
	return "single"
}

// Metrics is the per-frame classification snapshot delivered to subscribers.
type Metrics struct {
	Volume    float64   // RMS over the frame, samples normalized to [-1,1]
	Breathing bool      // Volume above the mode threshold
	BPM       int       // estimated breaths per minute, 0 with fewer than 2 peaks
	Raw       []float64 // downsampled frame, display only
	Time      time.Time
}

// Monitor classifies capture frames and fans Metrics out to subscribers.
// Classification is a pure function of the recent frame history and the
// small peak ring, so feeding the same frames at the same timestamps
// always yields the same metrics.
type Monitor struct {
	mu       sync.Mutex
	mode     Mode
	lastPeak time.Time
	peaks    []time.Time
	subs     map[int]func(Metrics)
	nextSub  int
	rawTap   func(data []byte, breathing bool)

	capture   audio.CaptureDevice
	running   bool
	available bool
}

func NewMonitor() *Monitor {
	return &Monitor{subs: make(map[int]func(Metrics))}
}

// SetMode switches the sensitivity profile. It takes effect on the next
// frame, never retroactively.
func (m *Monitor) SetMode(mode Mode) {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
}

func (m *Monitor) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Subscribe registers a callback invoked synchronously for every frame.
// The returned function removes the subscription and is safe to call
// more than once.
func (m *Monitor) Subscribe(cb func(Metrics)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = cb
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// SetRawTap registers a single consumer of the undecoded frame bytes,
// called with each frame's classification. Used for evidence capture.
func (m *Monitor) SetRawTap(tap func(data []byte, breathing bool)) {
	m.mu.Lock()
	m.rawTap = tap
	m.mu.Unlock()
}

// Start acquires the capture device and begins classification. On failure
// the monitor stays stopped and Available reports false; no metrics are
// fabricated while capture is down.
func (m *Monitor) Start(ctx audio.Context, device *audio.DeviceInfo) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	capture, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: SampleRate,
		Channels:   Channels,
	})
	if err != nil {
		m.setAvailable(false)
		return fmt.Errorf("init capture: %w", err)
	}

	capture.SetCallback(func(data []byte, _ uint32) {
		m.Process(data, time.Now())
	})

	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		m.setAvailable(false)
		return fmt.Errorf("start capture: %w", err)
	}

	m.mu.Lock()
	m.capture = capture
	m.running = true
	m.available = true
	m.mu.Unlock()
	return nil
}

// Stop releases the capture device. Safe to call when already stopped.
func (m *Monitor) Stop() {
	m.mu.Lock()
	capture := m.capture
	m.capture = nil
	m.running = false
	m.available = false
	m.mu.Unlock()

	if capture != nil {
		capture.Stop()
		capture.ClearCallback()
		capture.Close()
	}
}

// Available reports whether live capture is currently feeding the monitor.
func (m *Monitor) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

func (m *Monitor) setAvailable(v bool) {
	m.mu.Lock()
	m.available = v
	m.mu.Unlock()
}

// Process classifies one frame of little-endian int16 mono PCM observed at
// the given instant and delivers the resulting Metrics to all subscribers
// before returning.
func (m *Monitor) Process(data []byte, now time.Time) Metrics {
	var sumSquares float64
	n := len(data) / 2
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		x := float64(sample) / 32768.0
		sumSquares += x * x
	}
	volume := 0.0
	if n > 0 {
		volume = math.Sqrt(sumSquares / float64(n))
	}

	m.mu.Lock()
	threshold := m.mode.Threshold()
	breathing := volume > threshold

	if breathing && volume > threshold*1.5 && now.Sub(m.lastPeak) > peakDebounce {
		m.peaks = append(m.peaks, now)
		m.lastPeak = now
		if len(m.peaks) > maxPeaks {
			m.peaks = m.peaks[1:]
		}
	}

	bpm := 0
	if len(m.peaks) >= 2 {
		span := m.peaks[len(m.peaks)-1].Sub(m.peaks[0])
		avg := span / time.Duration(len(m.peaks)-1)
		if avg > 0 {
			bpm = int(math.Round(60000 / float64(avg.Milliseconds())))
		}
	}

	raw := make([]float64, 0, n/rawDownsample+1)
	for i := 0; i < n; i += rawDownsample {
		sample := int16(binary.LittleEndian.Uint16(data[i*2:]))
		raw = append(raw, float64(sample)/32768.0)
	}

	subs := make([]func(Metrics), 0, len(m.subs))
	for _, cb := range m.subs {
		subs = append(subs, cb)
	}
	tap := m.rawTap
	m.mu.Unlock()

	if tap != nil {
		tap(data, breathing)
	}

	metrics := Metrics{
		Volume:    volume,
		Breathing: breathing,
		BPM:       bpm,
		Raw:       raw,
		Time:      now,
	}
	for _, cb := range subs {
		cb(metrics)
	}
	return metrics
}

// Reset clears the peak ring, e.g. after a capture restart.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.peaks = nil
	m.lastPeak = time.Time{}
	m.mu.Unlock()
}
