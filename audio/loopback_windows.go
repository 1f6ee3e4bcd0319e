//go:build windows

package audio

import (
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// malgoLoopback taps the WASAPI loopback of the render endpoint the
// target application plays into. Scoping to the application is by
// lifetime: the process monitor only keeps this source running while
// the target process is alive.
type malgoLoopback struct {
	pid      int
	cfg      Config
	sink     *frameSink
	stopping atomic.Bool

	ctx *malgo.AllocatedContext
	dev *malgo.Device
}

// NewLoopbackSource creates a loopback Source bound to the given target
// process identity.
func NewLoopbackSource(pid int, cfg Config) Source {
	return &malgoLoopback{pid: pid, cfg: cfg, sink: newFrameSink()}
}

func (l *malgoLoopback) Start() error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Loopback)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = l.cfg.Channels
	deviceConfig.SampleRate = l.cfg.SampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			l.sink.pushBytes(data)
		},
		Stop: func() {
			if !l.stopping.Load() {
				l.sink.invalidate()
			}
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("malgo loopback device (pid %d): %w", l.pid, err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("malgo loopback start: %w", err)
	}

	l.ctx = ctx
	l.dev = dev
	return nil
}

func (l *malgoLoopback) ReadFrames() ([]int16, error) {
	return l.sink.read()
}

func (l *malgoLoopback) Stop() {
	l.stopping.Store(true)
	if l.dev != nil {
		l.dev.Stop()
		l.dev.Uninit()
		l.dev = nil
	}
	if l.ctx != nil {
		l.ctx.Uninit()
		l.ctx.Free()
		l.ctx = nil
	}
}
