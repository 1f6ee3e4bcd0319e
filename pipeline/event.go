// Package pipeline turns a continuous capture stream into discrete
// speech-segment events: the pre-roll window, the segmentation state
// machine, and the per-source capture loop that feeds the shared event
// channel.
package pipeline

type EventKind int

const (
	// SpeechStart carries the drained pre-roll window plus the chunk
	// that crossed the speech threshold.
	SpeechStart EventKind = iota
	SpeechContinue
	SpeechEnd
)

func (k EventKind) String() string {
	switch k {
	case SpeechStart:
		return "speech_start"
	case SpeechContinue:
		return "speech_continue"
	case SpeechEnd:
		return "speech_end"
	default:
		return "unknown"
	}
}

// Event is one message on the capture-to-writer channel. Events from a
// single source arrive in producer order; events from different sources
// interleave arbitrarily.
type Event struct {
	Kind       EventKind
	Source     string
	Samples    []int16
	SampleRate int // set on SpeechStart only
}
