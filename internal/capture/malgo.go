package capture

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// MalgoDevice adapts a miniaudio capture device to InputDevice.
type MalgoDevice struct {
	ctx    *malgo.AllocatedContext
	dev    *malgo.Device
	format Format
}

// NewMalgoDevice initializes the default capture device with the given
// format (16-bit mono PCM).
func NewMalgoDevice(format Format) (*MalgoDevice, error) {
	if format.SampleRate == 0 {
		format.SampleRate = 16000
	}
	if format.Channels == 0 {
		format.Channels = 1
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &MalgoDevice{ctx: ctx, format: format}, nil
}

func (m *MalgoDevice) Start(cb DataCallback) error {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(m.format.Channels)
	cfg.SampleRate = uint32(m.format.SampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			cb(input)
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("open capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("start capture device: %w", err)
	}
	m.dev = dev
	return nil
}

func (m *MalgoDevice) Stop() error {
	if m.dev == nil {
		return nil
	}
	err := m.dev.Stop()
	m.dev.Uninit()
	m.dev = nil
	return err
}

// Close releases the audio context.
func (m *MalgoDevice) Close() {
	if m.dev != nil {
		_ = m.Stop()
	}
	if m.ctx != nil {
		_ = m.ctx.Uninit()
		m.ctx.Free()
		m.ctx = nil
	}
}
