// Package speech provides the spoken-prompt and answer-capture controllers
// used by the guided check-in session. Speaker drives a synthesis engine one
// utterance at a time; Listener drives a streaming recognition engine with a
// no-speech timeout and a trailing-silence completion timer.
package speech

import "context"

// Utterance is one in-flight synthesis playback. Done settles exactly once,
// on playback end or failure. Cancel forces Done to settle and is safe to
// call at any time, including after settlement.
type Utterance interface {
	Done() <-chan error
	Cancel()
}

// SynthesisEngine starts speaking one text prompt.
type SynthesisEngine interface {
	Speak(ctx context.Context, text string) (Utterance, error)
}

// EventKind tags a recognition result as interim or final.
type EventKind int

const (
	KindInterim EventKind = iota + 1
	KindFinal
)

// Event is one incremental recognition result.
type Event struct {
	Kind EventKind
	Text string
}

// RecognitionSession is one active answer-capture stream. Events closes when
// the session ends for any reason; Err reports the terminal error afterwards.
// Stop requests a graceful flush of pending finals; Abort tears the session
// down immediately. Both are idempotent.
type RecognitionSession interface {
	Events() <-chan Event
	Err() error
	Stop()
	Abort()
}

// RecognitionEngine starts streaming recognition sessions.
type RecognitionEngine interface {
	Start(ctx context.Context) (RecognitionSession, error)
}
