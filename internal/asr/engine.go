// Package asr implements the streaming speech-recognition engine: microphone
// PCM is pumped over a websocket to the recognition backend, which answers
// with incremental interim/final transcript events.
package asr

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/dolbomi/anbu/internal/audio"
	"github.com/dolbomi/anbu/internal/speech"
)

// Config controls the recognizer websocket and its audio source.
type Config struct {
	URL            string
	APIKey         string
	Language       string
	Model          string
	InterimResults bool
	Input          string
}

// Engine starts one recognition session per Listen call.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if cfg.Language == "" {
		cfg.Language = "ko"
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Start opens the microphone and the recognizer websocket and begins
// streaming. The returned session ends when stopped, aborted, or when the
// backend closes the stream.
func (e *Engine) Start(ctx context.Context) (speech.RecognitionSession, error) {
	if strings.TrimSpace(e.cfg.URL) == "" {
		return nil, speech.ErrRecognitionUnavailable
	}

	selection, err := audio.SelectDevice(ctx, e.cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", speech.ErrAudioCapture, err)
	}
	if selection.Warning != "" && e.logger != nil {
		e.logger.Warn(selection.Warning)
	}

	wsURL, err := listenURL(e.cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	if e.cfg.APIKey != "" {
		headers.Set("Authorization", "Token "+e.cfg.APIKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", speech.ErrNetwork, err)
	}

	capture, err := audio.StartCapture(ctx, selection.Device)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", speech.ErrAudioCapture, err)
	}

	session := newSession(conn, capture)
	go watchContext(ctx, session)
	return session, nil
}

// watchContext aborts the session when its context ends. It must not
// outlive the session itself; Listen calls share a process-lifetime
// context.
func watchContext(ctx context.Context, s *session) {
	select {
	case <-ctx.Done():
		s.Abort()
	case <-s.done:
	}
}

// listenURL builds the websocket URL with the recognition parameters the
// backend expects alongside the raw PCM stream.
func listenURL(cfg Config) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil {
		return "", fmt.Errorf("parse recognizer url: %w", err)
	}
	switch parsed.Scheme {
	case "ws", "wss":
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported recognizer url scheme %q", parsed.Scheme)
	}

	query := parsed.Query()
	query.Set("language", cfg.Language)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", "16000")
	query.Set("channels", "1")
	query.Set("interim_results", fmt.Sprintf("%t", cfg.InterimResults))
	if cfg.Model != "" {
		query.Set("model", cfg.Model)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
