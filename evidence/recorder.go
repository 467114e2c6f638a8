// Package evidence captures the audio of a breath-hold episode. While the
// signal stays silent the raw samples are retained in a bounded buffer;
// when the penalty fires the episode is encoded to FLAC and archived as a
// proof, so a scored penalty always has its recording attached.
package evidence

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"vigil/breath"
)

// maxEpisode bounds the retained audio to the last 60 seconds of an
// episode; holds longer than that keep only the tail.
const maxEpisode = 60 * breath.SampleRate

// Saver is the slice of the proof store the recorder writes through.
type Saver interface {
	SaveProof(id string, data []byte) error
}

type Recorder struct {
	mu      sync.Mutex
	saver   Saver
	samples []int16
}

func NewRecorder(saver Saver) *Recorder {
	return &Recorder{saver: saver}
}

// Feed consumes one raw capture frame together with its classification.
// Breathing frames discard the buffer; silent frames extend it.
func (r *Recorder) Feed(data []byte, breathing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if breathing {
		r.samples = r.samples[:0]
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		r.samples = append(r.samples, int16(binary.LittleEndian.Uint16(data[i:])))
	}
	if len(r.samples) > maxEpisode {
		r.samples = append(r.samples[:0], r.samples[len(r.samples)-maxEpisode:]...)
	}
}

// Flush encodes the retained episode and stores it as a proof, returning
// the proof id. An empty buffer flushes to nothing.
func (r *Recorder) Flush(now time.Time) (string, error) {
	r.mu.Lock()
	samples := r.samples
	r.samples = nil
	r.mu.Unlock()

	if len(samples) == 0 {
		return "", nil
	}

	data, err := encodeFLAC(samples)
	if err != nil {
		return "", fmt.Errorf("encode episode: %w", err)
	}
	id := "hold-" + now.Format("20060102-150405")
	if err := r.saver.SaveProof(id, data); err != nil {
		return "", fmt.Errorf("store episode %s: %w", id, err)
	}
	return id, nil
}

// Len reports the buffered sample count.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}
