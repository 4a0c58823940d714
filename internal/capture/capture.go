// Package capture owns the microphone lifecycle for the CLI client:
// Idle → Recording → Stopped, with a hard duration cap.
package capture

import (
	"fmt"
	"sync"
	"time"

	"speakcoach/internal/queue"
)

// State is the recorder lifecycle position.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
)

// DefaultMaxDuration is the hard cap that auto-stops a recording.
const DefaultMaxDuration = 90 * time.Second

// PermissionError reports that microphone access was denied or the
// device could not be opened. The recorder stays Idle so the user can
// retry.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("microphone unavailable: %v", e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// ErrNotStopped is returned when a session is requested before stop.
var ErrNotStopped = fmt.Errorf("recording has not been stopped")

// DataCallback receives raw PCM frames from the device.
type DataCallback func(data []byte)

// InputDevice is one open capture device. Implemented by the malgo
// adapter and by test fakes.
type InputDevice interface {
	Start(cb DataCallback) error
	Stop() error
}

// Session is one finalized recording, consumed by a single submission
// attempt.
type Session struct {
	StartedAt   time.Time
	DurationSec int
	AudioBytes  []byte // WAV-framed PCM
	Goal        string
	PromptText  string
}

// Recorder drives one InputDevice through the capture lifecycle. It
// buffers device chunks and concatenates them into a single WAV
// payload on stop. No pause/resume; stop is idempotent.
type Recorder struct {
	mu      sync.Mutex
	dev     InputDevice
	format  Format
	max     time.Duration
	clock   func() time.Time
	state   State
	chunks  *queue.Queue[[]byte]
	started time.Time
	audio   []byte
	dur     time.Duration
	capStop *time.Timer
}

// Format describes the PCM the device delivers.
type Format struct {
	SampleRate int
	Channels   int
}

// NewRecorder builds an Idle recorder. maxDuration <= 0 selects the
// default cap.
func NewRecorder(dev InputDevice, format Format, maxDuration time.Duration) *Recorder {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	if format.SampleRate == 0 {
		format.SampleRate = 16000
	}
	if format.Channels == 0 {
		format.Channels = 1
	}
	return &Recorder{
		dev:    dev,
		format: format,
		max:    maxDuration,
		clock:  time.Now,
		state:  StateIdle,
		chunks: queue.New[[]byte](),
	}
}

// State reports the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed reports recording time so far (or the final duration once
// stopped).
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StateRecording:
		return r.clock().Sub(r.started)
	case StateStopped:
		return r.dur
	default:
		return 0
	}
}

// Start opens the microphone and begins buffering. A device failure is
// wrapped as PermissionError and the recorder returns to Idle.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("cannot start from state %q", r.state)
	}

	if err := r.dev.Start(r.onData); err != nil {
		return &PermissionError{Err: err}
	}

	r.started = r.clock()
	r.state = StateRecording
	r.capStop = time.AfterFunc(r.max, func() { _ = r.Stop() })
	return nil
}

func (r *Recorder) onData(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	r.chunks.Enqueue(buf)
}

// Stop finalizes the recording into one WAV buffer. Calling it when
// already stopped is a no-op.
//
// The device stop runs outside r.mu: the audio backend blocks Stop
// until any in-flight data callback returns, and that callback takes
// r.mu. A chunk delivered while stopping is dropped by onData's state
// check.
func (r *Recorder) Stop() error {
	r.mu.Lock()

	switch r.state {
	case StateStopped:
		r.mu.Unlock()
		return nil
	case StateIdle:
		r.mu.Unlock()
		return fmt.Errorf("cannot stop from state %q", r.state)
	}

	if r.capStop != nil {
		r.capStop.Stop()
		r.capStop = nil
	}

	r.dur = r.clock().Sub(r.started)
	if r.dur > r.max {
		r.dur = r.max
	}

	var pcm []byte
	for _, chunk := range r.chunks.Drain() {
		pcm = append(pcm, chunk...)
	}
	r.audio = encodeWAV(pcm, r.format.SampleRate, r.format.Channels)
	r.state = StateStopped
	r.mu.Unlock()

	return r.dev.Stop()
}

// Session returns the finalized recording. The recorder resets to Idle
// so the buffer is consumed exactly once.
func (r *Recorder) Session(goal, promptText string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateStopped {
		return Session{}, ErrNotStopped
	}

	s := Session{
		StartedAt:   r.started,
		DurationSec: int(r.dur.Round(time.Second) / time.Second),
		AudioBytes:  r.audio,
		Goal:        goal,
		PromptText:  promptText,
	}
	r.audio = nil
	r.dur = 0
	r.state = StateIdle
	return s, nil
}
