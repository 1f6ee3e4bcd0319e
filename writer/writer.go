// Package writer drains the shared event channel and owns every
// recording file. It is the only code that touches file handles, so no
// locking is needed around file state.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"deskmic/config"
	"deskmic/log"
	"deskmic/pipeline"
)

type activeFile struct {
	f          *os.File
	enc        *wav.Encoder
	path       string
	format     *goaudio.Format
	samples    int
	maxSamples int
}

// Run consumes events until the channel is closed, then finalizes every
// still-open file. Call on a dedicated goroutine.
//
// Per-source rules: SpeechStart opens a fresh file (closing a stale one
// if a previous segment never saw its SpeechEnd), SpeechContinue
// appends until the rotation ceiling, SpeechEnd finalizes. Once a file
// rotates at the ceiling, further SpeechContinue events for that source
// are dropped until the next SpeechStart — a rotation boundary is not a
// new speech onset. A write error abandons that source's file without
// finalizing; the source starts clean on its next SpeechStart.
func Run(events <-chan pipeline.Event, out config.Output) {
	active := make(map[string]*activeFile)

	for ev := range events {
		switch ev.Kind {
		case pipeline.SpeechStart:
			if stale, ok := active[ev.Source]; ok {
				// Should not happen: the segmenter always closes before
				// reopening. Finalize rather than lose audio.
				stale.finalize(ev.Source, "stale")
				delete(active, ev.Source)
			}
			af, err := open(out, ev.Source, ev.SampleRate)
			if err != nil {
				log.Errorf("%s: open recording: %v", ev.Source, err)
				continue
			}
			if err := af.write(ev.Samples); err != nil {
				log.Errorf("%s: write: %v", ev.Source, err)
				af.abandon()
				continue
			}
			active[ev.Source] = af
			log.SegmentOpened(ev.Source, af.path)

		case pipeline.SpeechContinue:
			af, ok := active[ev.Source]
			if !ok {
				continue
			}
			if err := af.write(ev.Samples); err != nil {
				log.Errorf("%s: write: %v", ev.Source, err)
				af.abandon()
				delete(active, ev.Source)
				continue
			}
			if af.samples >= af.maxSamples {
				af.finalize(ev.Source, "rotation")
				delete(active, ev.Source)
			}

		case pipeline.SpeechEnd:
			if af, ok := active[ev.Source]; ok {
				af.finalize(ev.Source, "end")
				delete(active, ev.Source)
			}
		}
	}

	for source, af := range active {
		af.finalize(source, "shutdown")
	}
}

func open(out config.Output, source string, sampleRate int) (*activeFile, error) {
	path := makeFilePath(out.Directory, source, out.OrganizeByDate, time.Now())
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &activeFile{
		f:          f,
		enc:        wav.NewEncoder(f, sampleRate, 16, 1, 1),
		path:       path,
		format:     &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		maxSamples: out.MaxFileDurationMins * 60 * sampleRate,
	}, nil
}

func (af *activeFile) write(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	buf := &goaudio.IntBuffer{
		Format:         af.format,
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}
	if err := af.enc.Write(buf); err != nil {
		return err
	}
	af.samples += len(samples)
	return nil
}

// finalize rewrites the header with the true data length and closes.
func (af *activeFile) finalize(source, reason string) {
	if err := af.enc.Close(); err != nil {
		log.Errorf("%s: finalize %s: %v", source, af.path, err)
	}
	af.f.Close()
	log.SegmentClosed(source, af.path, af.samples, reason)
}

// abandon drops the file without header finalization. The stale header
// is an accepted loss; a fresh file starts on the next SpeechStart.
func (af *activeFile) abandon() {
	af.f.Close()
}

func makeFilePath(baseDir, source string, organizeByDate bool, now time.Time) string {
	filename := fmt.Sprintf("%s_%s.wav", source, now.Format("15-04-05"))
	if organizeByDate {
		return filepath.Join(baseDir, now.Format("2006-01-02"), filename)
	}
	return filepath.Join(baseDir, filename)
}
