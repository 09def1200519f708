// Package tts implements the synthesis engine: prompt text is rendered to
// audio by the speech backend over HTTP and played through a local player
// command.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/dolbomi/anbu/internal/speech"
)

// Config controls synthesis requests and local playback.
type Config struct {
	URL      string
	Voice    string
	Language string
	Rate     float64
	Player   []string
	Timeout  time.Duration
}

// Engine speaks one prompt per Speak call.
type Engine struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if cfg.Language == "" {
		cfg.Language = "ko-KR"
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 0.9
	}
	if len(cfg.Player) == 0 {
		cfg.Player = []string{"pw-play"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Engine{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Speak starts synthesis and playback of text. The returned utterance
// settles once, when playback finishes, fails, or is cancelled.
func (e *Engine) Speak(ctx context.Context, text string) (speech.Utterance, error) {
	if strings.TrimSpace(e.cfg.URL) == "" {
		return nil, speech.ErrSynthesisUnavailable
	}

	playCtx, cancel := context.WithCancel(ctx)
	u := &utterance{done: make(chan error, 1), cancel: cancel}
	go u.run(playCtx, e, text)
	return u, nil
}

type utterance struct {
	done   chan error
	cancel context.CancelFunc
	once   sync.Once
}

func (u *utterance) Done() <-chan error {
	return u.done
}

func (u *utterance) Cancel() {
	u.cancel()
}

func (u *utterance) settle(err error) {
	u.once.Do(func() {
		u.done <- err
	})
}

// run fetches synthesized audio and plays it, settling the utterance with
// the outcome. A cancelled context settles as an intentional abort.
func (u *utterance) run(ctx context.Context, e *Engine, text string) {
	defer u.cancel()

	audioData, err := e.synthesize(ctx, text)
	if err != nil {
		u.settle(u.mapErr(ctx, err))
		return
	}

	err = e.play(ctx, audioData)
	u.settle(u.mapErr(ctx, err))
}

func (u *utterance) mapErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return speech.ErrAborted
	}
	return err
}

// synthesize posts the prompt to the speech backend and returns audio bytes.
func (e *Engine) synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"voice":    e.cfg.Voice,
		"language": e.cfg.Language,
		"speed":    e.cfg.Rate,
	})
	if err != nil {
		return nil, fmt.Errorf("encode synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("synthesis backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	if len(audioData) == 0 {
		return nil, fmt.Errorf("synthesis backend returned empty audio")
	}
	return audioData, nil
}

// play writes audio to a temp file and runs the configured player on it.
func (e *Engine) play(ctx context.Context, audioData []byte) error {
	f, err := os.CreateTemp("", "anbu-tts-*.wav")
	if err != nil {
		return fmt.Errorf("create playback temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(audioData); err != nil {
		_ = f.Close()
		return fmt.Errorf("write playback temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close playback temp file: %w", err)
	}

	argv := append(append([]string(nil), e.cfg.Player...), path)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("play synthesized audio: %w", err)
	}
	return nil
}
