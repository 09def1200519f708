package asr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dolbomi/anbu/internal/speech"
)

// audioSource is the PCM chunk stream feeding one session.
type audioSource interface {
	Chunks() <-chan []byte
	Stop() error
}

// session is one live capture -> websocket -> transcript-event stream.
type session struct {
	conn   *websocket.Conn
	source audioSource

	events chan speech.Event
	done   chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	stopOnce  sync.Once
	abortOnce sync.Once
}

func newSession(conn *websocket.Conn, source audioSource) *session {
	s := &session{
		conn:   conn,
		source: source,
		events: make(chan speech.Event, 64),
		done:   make(chan struct{}),
	}

	s.wg.Add(2)
	go s.pumpLoop()
	go s.readLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
		close(s.done)
		_ = conn.Close()
	}()

	return s
}

func (s *session) Events() <-chan speech.Event {
	return s.events
}

func (s *session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Stop ends audio capture gracefully; the recognizer flushes pending finals
// and closes the stream, which ends the session normally.
func (s *session) Stop() {
	s.stopOnce.Do(func() {
		_ = s.source.Stop()
	})
}

// Abort tears the session down immediately without waiting for a flush.
func (s *session) Abort() {
	s.abortOnce.Do(func() {
		s.setErr(speech.ErrAborted)
		_ = s.source.Stop()
		_ = s.conn.Close()
	})
}

// pumpLoop forwards PCM chunks to the recognizer, then signals end-of-audio.
func (s *session) pumpLoop() {
	defer s.wg.Done()

	for chunk := range s.source.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			_ = s.source.Stop()
			s.setErr(fmt.Errorf("%w: send audio: %v", speech.ErrNetwork, err))
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(fmt.Errorf("%w: close stream: %v", speech.ErrNetwork, err))
	}
}

// readLoop decodes recognizer messages into transcript events until the
// stream closes. Audio capture stops with it so the pump loop always drains.
func (s *session) readLoop() {
	defer s.wg.Done()
	defer func() { _ = s.source.Stop() }()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !isNormalClose(err) {
				s.setErr(fmt.Errorf("%w: read recognizer event: %v", speech.ErrNetwork, err))
			}
			return
		}

		var response recognizerResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "recognizer returned an unknown error"
			}
			s.setErr(errors.New(message))
			return
		}

		text := response.transcript()
		if text == "" {
			continue
		}

		kind := speech.KindInterim
		if response.IsFinal || response.SpeechFinal {
			kind = speech.KindFinal
		}
		s.emit(speech.Event{Kind: kind, Text: text})
	}
}

// emit drops events when the consumer has fallen behind rather than
// stalling the read loop.
func (s *session) emit(event speech.Event) {
	select {
	case s.events <- event:
	default:
	}
}

// setErr records the first terminal error only; an abort wins over the read
// failure it provokes.
func (s *session) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

type recognizerResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r recognizerResponse) transcript() string {
	if len(r.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Channel.Alternatives[0].Transcript)
}
