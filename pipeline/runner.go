package pipeline

import (
	"sync/atomic"

	"deskmic/audio"
	"deskmic/log"
)

// Run drives one capture source through the segmenter and forwards
// every event onto the shared channel. It returns when the stop flag is
// set or the source reports a fatal error; in both cases any open
// segment is closed first. The caller owns recovery: a return — clean
// or not — is an invitation to rebuild the source and call Run again,
// never a terminal state, unless shutdown was requested.
func Run(src audio.Source, seg *Segmenter, events chan<- Event, stop *atomic.Bool) error {
	if err := src.Start(); err != nil {
		return err
	}
	defer src.Stop()

	flush := func() {
		for _, ev := range seg.Flush() {
			events <- ev
		}
	}

	chunkSize := seg.ChunkSize()
	var pending []int16

	for !stop.Load() {
		batch, err := src.ReadFrames()
		if err != nil {
			flush()
			return err
		}
		if len(batch) == 0 {
			// Nothing ready this cycle. Normal: event-driven backends
			// wake up empty-handed all the time.
			continue
		}

		pending = append(pending, batch...)

		n := 0
		for len(pending)-n >= chunkSize {
			evs, perr := seg.Process(pending[n : n+chunkSize])
			n += chunkSize
			if perr != nil {
				log.Warnf("%s: classifier error, chunk skipped: %v", seg.source, perr)
				continue
			}
			for _, ev := range evs {
				events <- ev
			}
		}
		pending = pending[:copy(pending, pending[n:])]
	}

	flush()
	return nil
}
