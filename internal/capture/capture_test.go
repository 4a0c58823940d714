package capture

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeDevice drives the recorder without hardware.
type fakeDevice struct {
	cb       DataCallback
	startErr error
	stopped  int
}

func (f *fakeDevice) Start(cb DataCallback) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.cb = cb
	return nil
}

func (f *fakeDevice) Stop() error {
	f.stopped++
	return nil
}

func (f *fakeDevice) emit(data []byte) {
	if f.cb != nil {
		f.cb(data)
	}
}

// advanceClock installs a controllable clock on the recorder.
func advanceClock(r *Recorder) *time.Time {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	r.clock = func() time.Time { return now }
	return &now
}

func TestRecorderLifecycle(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRecorder(dev, Format{SampleRate: 16000, Channels: 1}, time.Minute)
	now := advanceClock(r)

	require.Equal(t, StateIdle, r.State())
	require.Zero(t, r.Elapsed())

	require.NoError(t, r.Start())
	require.Equal(t, StateRecording, r.State())

	dev.emit([]byte{1, 2, 3, 4})
	dev.emit([]byte{5, 6})

	*now = now.Add(12 * time.Second)
	require.Equal(t, 12*time.Second, r.Elapsed())

	require.NoError(t, r.Stop())
	require.Equal(t, StateStopped, r.State())
	require.Equal(t, 1, dev.stopped)

	sess, err := r.Session("Travel", "Describe your trip.")
	require.NoError(t, err)
	require.Equal(t, 12, sess.DurationSec)
	require.Equal(t, "Travel", sess.Goal)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, sess.AudioBytes[wavHeaderSize:])

	// Consuming the session re-arms the recorder.
	require.Equal(t, StateIdle, r.State())
}

func TestRecorderStopIsIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRecorder(dev, Format{}, time.Minute)
	advanceClock(r)

	require.NoError(t, r.Start())
	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())
	require.Equal(t, 1, dev.stopped)
}

func TestRecorderStartDeniedStaysIdle(t *testing.T) {
	dev := &fakeDevice{startErr: errors.New("permission denied")}
	r := NewRecorder(dev, Format{}, time.Minute)

	err := r.Start()
	var pe *PermissionError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, StateIdle, r.State())

	// Retry works once the device cooperates.
	dev.startErr = nil
	require.NoError(t, r.Start())
}

func TestRecorderInvalidTransitions(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRecorder(dev, Format{}, time.Minute)
	advanceClock(r)

	require.Error(t, r.Stop()) // stop before start

	require.NoError(t, r.Start())
	require.Error(t, r.Start()) // double start

	_, err := r.Session("", "")
	require.ErrorIs(t, err, ErrNotStopped)
}

func TestRecorderDurationCappedAtMax(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRecorder(dev, Format{}, 30*time.Second)
	now := advanceClock(r)

	require.NoError(t, r.Start())
	*now = now.Add(5 * time.Minute) // timer never fired: fake clock
	require.NoError(t, r.Stop())

	sess, err := r.Session("", "")
	require.NoError(t, err)
	require.Equal(t, 30, sess.DurationSec)
}

func TestRecorderIgnoresDataAfterStop(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRecorder(dev, Format{}, time.Minute)
	advanceClock(r)

	require.NoError(t, r.Start())
	dev.emit([]byte{1, 2})
	require.NoError(t, r.Stop())
	dev.emit([]byte{3, 4})

	sess, err := r.Session("", "")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, sess.AudioBytes[wavHeaderSize:])
}

// syncStopDevice mimics the real backend: Stop does not return until
// a final data callback has been delivered and completed.
type syncStopDevice struct {
	cb DataCallback
}

func (d *syncStopDevice) Start(cb DataCallback) error {
	d.cb = cb
	return nil
}

func (d *syncStopDevice) Stop() error {
	d.cb(make([]byte, 320))
	return nil
}

func TestRecorderStopWithInFlightCallback(t *testing.T) {
	dev := &syncStopDevice{}
	r := NewRecorder(dev, Format{}, time.Minute)
	advanceClock(r)

	require.NoError(t, r.Start())
	dev.cb([]byte{1, 2})

	done := make(chan error, 1)
	go func() { done <- r.Stop() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop hung waiting for the device's final data callback")
	}

	// The chunk delivered during stop is dropped, not buffered.
	sess, err := r.Session("", "")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, sess.AudioBytes[wavHeaderSize:])
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 320)
	out := encodeWAV(pcm, 16000, 1)

	require.Len(t, out, wavHeaderSize+len(pcm))
	require.Equal(t, "RIFF", string(out[0:4]))
	require.Equal(t, "WAVE", string(out[8:12]))
	require.Equal(t, uint32(16000), binary.LittleEndian.Uint32(out[24:28]))
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:24]))
	require.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(out[40:44]))
}
