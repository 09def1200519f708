package speech

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dolbomi/anbu/internal/transcript"
)

// DefaultTrailingSilence is how long a pause after detected speech counts as
// "done talking" rather than a gap between phrases.
const DefaultTrailingSilence = 2 * time.Second

// Listener captures one spoken answer per Listen call over a recognition
// engine. Two independent timers shape the call: the overall timeout fires
// only while no speech has been detected at all, and the trailing-silence
// timer ends the capture once accumulated speech is followed by quiet.
type Listener struct {
	engine          RecognitionEngine
	trailingSilence time.Duration
	logger          *slog.Logger

	mu      sync.Mutex
	current RecognitionSession
}

// NewListener constructs a Listener. A non-positive trailing silence selects
// the default.
func NewListener(engine RecognitionEngine, trailingSilence time.Duration, logger *slog.Logger) *Listener {
	if trailingSilence <= 0 {
		trailingSilence = DefaultTrailingSilence
	}
	return &Listener{engine: engine, trailingSilence: trailingSilence, logger: logger}
}

// Listen starts a recognition session and blocks until an answer resolves,
// the overall timeout fires with no speech, the context is cancelled, or the
// engine fails. Final segments accumulate space-separated; the resolved
// transcript is trimmed.
func (l *Listener) Listen(ctx context.Context, timeout time.Duration) (string, error) {
	if l.engine == nil {
		return "", ErrRecognitionUnavailable
	}

	session, err := l.engine.Start(ctx)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	l.current = session
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		if l.current == session {
			l.current = nil
		}
		l.mu.Unlock()
	}()

	overall := time.NewTimer(timeout)
	defer overall.Stop()

	// Armed on the first recognition event, re-armed on every event after.
	trailing := time.NewTimer(time.Hour)
	trailing.Stop()
	defer trailing.Stop()

	var finals []string
	hasSpeech := false
	stopping := false
	events := session.Events()

	for {
		select {
		case <-ctx.Done():
			session.Abort()
			drainEvents(events)
			return "", ctx.Err()

		case <-overall.C:
			if hasSpeech {
				// The timer fired into its channel before the first event
				// stopped it; the trailing timer owns completion now.
				continue
			}
			session.Abort()
			drainEvents(events)
			return "", ErrListenTimeout

		case <-trailing.C:
			if !stopping && transcript.JoinSegments(finals) != "" {
				stopping = true
				session.Stop()
			}

		case event, ok := <-events:
			if !ok {
				return l.settle(session, finals)
			}
			if strings.TrimSpace(event.Text) == "" {
				continue
			}
			hasSpeech = true
			overall.Stop()
			if event.Kind == KindFinal {
				finals = append(finals, event.Text)
			}
			resetTimer(trailing, l.trailingSilence)
		}
	}
}

// Stop forcibly ends any in-flight recognition. Safe to call when idle.
func (l *Listener) Stop() {
	l.mu.Lock()
	session := l.current
	l.current = nil
	l.mu.Unlock()

	if session == nil {
		return
	}
	session.Stop()
	session.Abort()
}

// settle resolves a finished session from its accumulated finals and
// terminal error. An intentional abort never surfaces as a failure.
func (l *Listener) settle(session RecognitionSession, finals []string) (string, error) {
	text := transcript.JoinSegments(finals)

	if err := session.Err(); err != nil {
		switch {
		case isIgnorable(err):
			// fall through to transcript-based resolution
		default:
			if l.logger != nil {
				l.logger.Warn("recognition session failed", "error", err.Error())
			}
			return "", normalizeError(err)
		}
	}

	if text != "" {
		return text, nil
	}
	return "", ErrNoSpeech
}

// isIgnorable reports errors that resolve by transcript instead of failing
// the call: intentional aborts and the engine's own no-speech signal.
func isIgnorable(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, ErrNoSpeech)
}

func drainEvents(events <-chan Event) {
	go func() {
		for range events {
		}
	}()
}

func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}
