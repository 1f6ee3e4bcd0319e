//go:build !linux

package audio

import (
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// malgoMic captures from the default capture device through miniaudio.
// Each instance owns its own context so a supervisor retry starts from
// completely fresh device state.
type malgoMic struct {
	cfg      Config
	sink     *frameSink
	stopping atomic.Bool

	ctx *malgo.AllocatedContext
	dev *malgo.Device
}

func NewMicSource(cfg Config) Source {
	return &malgoMic{cfg: cfg, sink: newFrameSink()}
}

func (m *malgoMic) Start() error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = m.cfg.Channels
	deviceConfig.SampleRate = m.cfg.SampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			m.sink.pushBytes(data)
		},
		Stop: func() {
			// The backend stops the device on its own only when the
			// underlying endpoint is lost.
			if !m.stopping.Load() {
				m.sink.invalidate()
			}
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("malgo capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("malgo start: %w", err)
	}

	m.ctx = ctx
	m.dev = dev
	return nil
}

func (m *malgoMic) ReadFrames() ([]int16, error) {
	return m.sink.read()
}

func (m *malgoMic) Stop() {
	m.stopping.Store(true)
	if m.dev != nil {
		m.dev.Stop()
		m.dev.Uninit()
		m.dev = nil
	}
	if m.ctx != nil {
		m.ctx.Uninit()
		m.ctx.Free()
		m.ctx = nil
	}
}
