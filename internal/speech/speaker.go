package speech

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultWarmup is the pause before playback starts. The underlying audio
// path drops the first syllables of an utterance when it is still spinning
// up, so starting immediately truncates short prompts.
const DefaultWarmup = 100 * time.Millisecond

// Speaker serializes spoken prompts over one synthesis engine. At most one
// utterance is active at a time; starting a new one cancels the previous.
type Speaker struct {
	engine SynthesisEngine
	warmup time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	current Utterance
}

// NewSpeaker constructs a Speaker. A non-positive warmup selects the default.
func NewSpeaker(engine SynthesisEngine, warmup time.Duration, logger *slog.Logger) *Speaker {
	if warmup <= 0 {
		warmup = DefaultWarmup
	}
	return &Speaker{engine: engine, warmup: warmup, logger: logger}
}

// Speak cancels any in-flight utterance, waits the warmup pause, then speaks
// text and blocks until playback ends or fails.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if s.engine == nil {
		return ErrSynthesisUnavailable
	}

	s.cancelCurrent()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.warmup):
	}

	utterance, err := s.engine.Speak(ctx, text)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = utterance
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.current == utterance {
			s.current = nil
		}
		s.mu.Unlock()
	}()

	select {
	case err := <-utterance.Done():
		return err
	case <-ctx.Done():
		utterance.Cancel()
		return ctx.Err()
	}
}

// Stop cancels the active utterance, if any. Safe to call when idle.
func (s *Speaker) Stop() {
	s.cancelCurrent()
}

func (s *Speaker) cancelCurrent() {
	s.mu.Lock()
	current := s.current
	s.current = nil
	s.mu.Unlock()

	if current != nil {
		current.Cancel()
	}
}
