package breath

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

// genConst builds a frame of constant-amplitude int16 LE mono PCM.
func genConst(amp float64, samples int) []byte {
	buf := make([]byte, samples*2)
	s := int16(amp * 32768)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func genSilence(samples int) []byte {
	return make([]byte, samples*2)
}

func TestVolumeConstantAmplitude(t *testing.T) {
	m := NewMonitor()
	for _, amp := range []float64{0.01, 0.05, 0.25, 0.9} {
		got := m.Process(genConst(amp, 512), time.Now())
		if math.Abs(got.Volume-amp) > 0.001 {
			t.Fatalf("amp %.3f: volume = %.5f", amp, got.Volume)
		}
	}
}

func TestClassificationThresholdPerMode(t *testing.T) {
	frame := genConst(0.018, 512) // between the two thresholds

	m := NewMonitor()
	if got := m.Process(frame, time.Now()); got.Breathing {
		t.Fatal("0.018 classified as breathing in single mode")
	}

	m.SetMode(ModeTwoPerson)
	if got := m.Process(frame, time.Now()); !got.Breathing {
		t.Fatal("0.018 not classified as breathing in two-person mode")
	}
}

func TestSilenceIsNotBreathing(t *testing.T) {
	m := NewMonitor()
	got := m.Process(genSilence(512), time.Now())
	if got.Volume != 0 || got.Breathing {
		t.Fatalf("silence: volume=%.5f breathing=%v", got.Volume, got.Breathing)
	}
}

func TestBPMNeedsTwoPeaks(t *testing.T) {
	m := NewMonitor()
	got := m.Process(genConst(0.1, 512), time.Now())
	if got.BPM != 0 {
		t.Fatalf("single peak: bpm = %d", got.BPM)
	}
}

func TestBPMFromPeakSpacing(t *testing.T) {
	m := NewMonitor()
	base := time.Now()
	m.Process(genConst(0.1, 512), base)
	got := m.Process(genConst(0.1, 512), base.Add(2000*time.Millisecond))
	if got.BPM != 30 {
		t.Fatalf("2 peaks 2000ms apart: bpm = %d, want 30", got.BPM)
	}
}

func TestPeakDebounce(t *testing.T) {
	m := NewMonitor()
	base := time.Now()
	m.Process(genConst(0.1, 512), base)
	// 1000ms later: inside the debounce window, must not count as a peak
	got := m.Process(genConst(0.1, 512), base.Add(1000*time.Millisecond))
	if got.BPM != 0 {
		t.Fatalf("debounced peak still counted: bpm = %d", got.BPM)
	}
	// 1600ms later: new peak
	got = m.Process(genConst(0.1, 512), base.Add(1600*time.Millisecond))
	if got.BPM == 0 {
		t.Fatal("expected a peak after the debounce window")
	}
}

func TestPeakRingKeepsFive(t *testing.T) {
	m := NewMonitor()
	base := time.Now()
	var got Metrics
	for i := 0; i < 8; i++ {
		got = m.Process(genConst(0.1, 512), base.Add(time.Duration(i)*2*time.Second))
	}
	// 5 retained peaks spaced 2s apart still average to 30/min.
	if got.BPM != 30 {
		t.Fatalf("bpm after ring overflow = %d, want 30", got.BPM)
	}
}

func TestQuietBreathDoesNotPeak(t *testing.T) {
	// Above the breathing threshold but below 1.5x: classified as
	// breathing, never recorded as a peak.
	m := NewMonitor()
	base := time.Now()
	for i := 0; i < 4; i++ {
		got := m.Process(genConst(0.025, 512), base.Add(time.Duration(i)*2*time.Second))
		if !got.Breathing {
			t.Fatal("0.025 should classify as breathing")
		}
		if got.BPM != 0 {
			t.Fatalf("quiet breath produced peaks: bpm = %d", got.BPM)
		}
	}
}

func TestSubscribeDelivery(t *testing.T) {
	m := NewMonitor()
	var a, b int
	unsubA := m.Subscribe(func(Metrics) { a++ })
	m.Subscribe(func(Metrics) { b++ })

	m.Process(genSilence(512), time.Now())
	if a != 1 || b != 1 {
		t.Fatalf("delivery counts a=%d b=%d", a, b)
	}

	unsubA()
	unsubA() // double unsubscribe must be safe
	m.Process(genSilence(512), time.Now())
	if a != 1 || b != 2 {
		t.Fatalf("after unsubscribe a=%d b=%d", a, b)
	}
}

func TestRawDownsampled(t *testing.T) {
	m := NewMonitor()
	got := m.Process(genConst(0.5, 512), time.Now())
	if len(got.Raw) != 512/rawDownsample {
		t.Fatalf("raw length = %d, want %d", len(got.Raw), 512/rawDownsample)
	}
}

func TestDeterministicReplay(t *testing.T) {
	base := time.Now()
	run := func() []Metrics {
		m := NewMonitor()
		var out []Metrics
		for i := 0; i < 60; i++ {
			amp := 0.0
			if i%10 < 3 {
				amp = 0.08
			}
			out = append(out, m.Process(genConst(amp, 512), base.Add(time.Duration(i)*FrameInterval)))
		}
		return out
	}
	first, second := run(), run()
	for i := range first {
		if first[i].Volume != second[i].Volume ||
			first[i].Breathing != second[i].Breathing ||
			first[i].BPM != second[i].BPM {
			t.Fatalf("replay diverged at frame %d", i)
		}
	}
}

func TestRawTapSeesClassifiedFrames(t *testing.T) {
	m := NewMonitor()
	var frames int
	var lastBreathing bool
	m.SetRawTap(func(data []byte, breathing bool) {
		frames++
		lastBreathing = breathing
	})

	m.Process(genSilence(512), time.Now())
	if frames != 1 || lastBreathing {
		t.Fatalf("after silence: frames=%d breathing=%v", frames, lastBreathing)
	}
	m.Process(genConst(0.05, 512), time.Now())
	if frames != 2 || !lastBreathing {
		t.Fatalf("after breath: frames=%d breathing=%v", frames, lastBreathing)
	}
}
