//go:build linux

package audio

import (
	"fmt"

	"github.com/jfreymuth/pulse"
)

// pulseMic captures from the default PulseAudio source.
type pulseMic struct {
	cfg  Config
	sink *frameSink

	client *pulse.Client
	stream *pulse.RecordStream
}

func NewMicSource(cfg Config) Source {
	return &pulseMic{cfg: cfg, sink: newFrameSink()}
}

func (p *pulseMic) Start() error {
	client, err := pulse.NewClient()
	if err != nil {
		return fmt.Errorf("pulse: %w", err)
	}

	writer := pulse.Int16Writer(func(buf []int16) (int, error) {
		// buf is reused by the stream, copy before handing off.
		samples := make([]int16, len(buf))
		copy(samples, buf)
		p.sink.push(samples)
		return len(buf), nil
	})

	stream, err := client.NewRecord(writer,
		pulse.RecordMono,
		pulse.RecordSampleRate(int(p.cfg.SampleRate)),
		pulse.RecordLatency(0.05),
	)
	if err != nil {
		client.Close()
		return fmt.Errorf("pulse record: %w", err)
	}
	stream.Start()

	p.client = client
	p.stream = stream
	return nil
}

func (p *pulseMic) ReadFrames() ([]int16, error) {
	return p.sink.read()
}

func (p *pulseMic) Stop() {
	if p.stream != nil {
		p.stream.Stop()
		p.stream.Close()
		p.stream = nil
	}
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}
