package speech

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRecognition struct {
	mu       sync.Mutex
	events   chan Event
	err      error
	closed   bool
	stops    atomic.Int32
	aborts   atomic.Int32
	startErr error
}

func newFakeRecognition() *fakeRecognition {
	return &fakeRecognition{events: make(chan Event, 16)}
}

func (f *fakeRecognition) Start(_ context.Context) (RecognitionSession, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f, nil
}

func (f *fakeRecognition) Events() <-chan Event {
	return f.events
}

func (f *fakeRecognition) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeRecognition) Stop() {
	f.stops.Add(1)
	f.end(nil)
}

func (f *fakeRecognition) Abort() {
	f.aborts.Add(1)
	f.end(ErrAborted)
}

func (f *fakeRecognition) emit(kind EventKind, text string) {
	f.events <- Event{Kind: kind, Text: text}
}

// end closes the event stream once, recording the first terminal error.
func (f *fakeRecognition) end(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	if f.err == nil {
		f.err = err
	}
	close(f.events)
}

func TestListenTimesOutWithoutSpeech(t *testing.T) {
	session := newFakeRecognition()
	listener := NewListener(session, 50*time.Millisecond, nil)

	started := time.Now()
	_, err := listener.Listen(context.Background(), 100*time.Millisecond)
	elapsed := time.Since(started)

	if !errors.Is(err, ErrListenTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
	if session.aborts.Load() == 0 {
		t.Fatal("expected session abort on timeout")
	}
}

func TestListenResolvesAfterTrailingSilence(t *testing.T) {
	session := newFakeRecognition()
	listener := NewListener(session, 60*time.Millisecond, nil)

	session.emit(KindFinal, "안녕하세요 ")

	got, err := listener.Listen(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("unexpected listen error: %v", err)
	}
	if got != "안녕하세요" {
		t.Fatalf("expected trimmed transcript, got %q", got)
	}
	if session.stops.Load() == 0 {
		t.Fatal("expected graceful stop after trailing silence")
	}
}

func TestListenSpeechDisarmsOverallTimeout(t *testing.T) {
	session := newFakeRecognition()
	listener := NewListener(session, 80*time.Millisecond, nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		session.emit(KindInterim, "어제는")
		time.Sleep(60 * time.Millisecond)
		session.emit(KindFinal, "어제는 병원에 다녀왔어요")
	}()

	// The overall timeout is shorter than the full answer; interim speech
	// must disarm it.
	got, err := listener.Listen(context.Background(), 40*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected listen error: %v", err)
	}
	if got != "어제는 병원에 다녀왔어요" {
		t.Fatalf("unexpected transcript: %q", got)
	}
	if session.aborts.Load() != 0 {
		t.Fatal("timeout path must not run once speech is detected")
	}
}

func TestListenNeverTimesOutAfterSpeech(t *testing.T) {
	session := newFakeRecognition()
	listener := NewListener(session, 50*time.Millisecond, nil)

	session.emit(KindInterim, "잠깐만요")
	go func() {
		// Quiet well past the original deadline, then the real answer.
		time.Sleep(120 * time.Millisecond)
		session.emit(KindFinal, "네 잘 지냈어요")
	}()

	got, err := listener.Listen(context.Background(), 30*time.Millisecond)
	if errors.Is(err, ErrListenTimeout) {
		t.Fatal("overall timeout fired after speech was detected")
	}
	if err != nil {
		t.Fatalf("unexpected listen error: %v", err)
	}
	if got != "네 잘 지냈어요" {
		t.Fatalf("unexpected transcript: %q", got)
	}
}

func TestListenAccumulatesFinalSegments(t *testing.T) {
	session := newFakeRecognition()
	listener := NewListener(session, 60*time.Millisecond, nil)

	session.emit(KindFinal, "어제는 ")
	session.emit(KindFinal, "병원에 다녀왔어요 ")

	got, err := listener.Listen(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("unexpected listen error: %v", err)
	}
	if got != "어제는 병원에 다녀왔어요" {
		t.Fatalf("unexpected transcript: %q", got)
	}
}

func TestListenNoSpeechOnEmptyEnd(t *testing.T) {
	session := newFakeRecognition()
	listener := NewListener(session, 50*time.Millisecond, nil)

	session.end(nil)

	_, err := listener.Listen(context.Background(), time.Second)
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("expected ErrNoSpeech, got %v", err)
	}
}

func TestListenAbortResolvesByTranscript(t *testing.T) {
	session := newFakeRecognition()
	listener := NewListener(session, time.Second, nil)

	session.emit(KindFinal, "네")
	go func() {
		time.Sleep(20 * time.Millisecond)
		session.Abort()
	}()

	got, err := listener.Listen(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("expected abort to be swallowed, got %v", err)
	}
	if got != "네" {
		t.Fatalf("unexpected transcript: %q", got)
	}
}

func TestListenEngineErrorsAreNormalized(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		want    error
		wrapped bool
	}{
		{name: "not allowed", err: ErrNotAllowed, want: ErrNotAllowed},
		{name: "audio capture", err: ErrAudioCapture, want: ErrAudioCapture},
		{name: "network", err: ErrNetwork, want: ErrNetwork},
		{name: "other", err: errors.New("socket reset"), wrapped: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			session := newFakeRecognition()
			listener := NewListener(session, 50*time.Millisecond, nil)
			session.end(tc.err)

			_, err := listener.Listen(context.Background(), time.Second)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wrapped {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected wrapped engine error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestListenerStopIdleIsNoop(t *testing.T) {
	listener := NewListener(newFakeRecognition(), 0, nil)
	listener.Stop()
	listener.Stop()
}

func TestListenerStopEndsInFlightListen(t *testing.T) {
	session := newFakeRecognition()
	listener := NewListener(session, time.Second, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := listener.Listen(context.Background(), time.Minute)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	listener.Stop()

	if err := <-errCh; !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("expected ErrNoSpeech after forced stop, got %v", err)
	}
}

func TestListenNilEngine(t *testing.T) {
	listener := NewListener(nil, 0, nil)
	if _, err := listener.Listen(context.Background(), time.Second); !errors.Is(err, ErrRecognitionUnavailable) {
		t.Fatalf("expected ErrRecognitionUnavailable, got %v", err)
	}
}
