// Package cue plays short audible signals around session transitions so a
// senior hears when the check-in starts, ends, or is cancelled.
package cue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/dolbomi/anbu/internal/config"
)

// Kind identifies one of the built-in session cues.
type Kind int

const (
	Start Kind = iota + 1
	Stop
	Complete
	Cancel
)

const sampleRate = 16000

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

var (
	startPCM = synthesizeCue([]toneSpec{
		{frequencyHz: 660, duration: 90 * time.Millisecond, volume: 0.22},
		{frequencyHz: 880, duration: 110 * time.Millisecond, volume: 0.22},
	})
	stopPCM = synthesizeCue([]toneSpec{
		{frequencyHz: 520, duration: 140 * time.Millisecond, volume: 0.22},
	})
	completePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 740, duration: 80 * time.Millisecond, volume: 0.22},
		{frequencyHz: 988, duration: 120 * time.Millisecond, volume: 0.22},
	})
	cancelPCM = synthesizeCue([]toneSpec{
		{frequencyHz: 440, duration: 90 * time.Millisecond, volume: 0.22},
		{frequencyHz: 330, duration: 110 * time.Millisecond, volume: 0.22},
	})
)

// Notifier serializes cue playback. Failures are logged and never surfaced
// to the session flow.
type Notifier struct {
	cfg    config.CueConfig
	logger *slog.Logger

	soundMu sync.Mutex
}

func NewNotifier(cfg config.CueConfig, logger *slog.Logger) *Notifier {
	return &Notifier{cfg: cfg, logger: logger}
}

// RecordingStarted plays the session-start cue.
func (n *Notifier) RecordingStarted() { n.Play(Start) }

// RecordingStopped plays the capture-flushed cue.
func (n *Notifier) RecordingStopped() { n.Play(Stop) }

// SessionComplete plays the upload-finished cue.
func (n *Notifier) SessionComplete() { n.Play(Complete) }

// SessionCancelled plays the discard cue.
func (n *Notifier) SessionCancelled() { n.Play(Cancel) }

// Play emits the cue asynchronously so session timing never waits on audio.
func (n *Notifier) Play(kind Kind) {
	if n == nil || !n.cfg.Enable {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := n.emit(kind); err != nil {
			n.log("cue playback failed", err)
		}
	}()
}

func (n *Notifier) emit(kind Kind) error {
	if path := n.filePath(kind); path != "" {
		err := playFile(path)
		if err == nil {
			return nil
		}
		n.log("cue file playback failed", err)
	}

	samples := cueSamples(kind)
	if len(samples) == 0 {
		return nil
	}
	return playSynth(samples)
}

func (n *Notifier) filePath(kind Kind) string {
	var raw string
	switch kind {
	case Start:
		raw = n.cfg.StartFile
	case Stop:
		raw = n.cfg.StopFile
	case Complete:
		raw = n.cfg.CompleteFile
	case Cancel:
		raw = n.cfg.CancelFile
	default:
		return ""
	}
	return expandUserPath(raw)
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}

func expandUserPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if raw == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return raw
		}
		return home
	}
	if !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(raw, "~/"))
}

func playFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat cue file %q: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pw-play", "--media-role", "Notification", path)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("play cue file %q: %w", path, err)
	}
	return nil
}

func playSynth(samples []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("anbu"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}

		count := copy(buf, samples[cursor:])
		cursor += count
		if cursor >= len(samples) {
			return count, pulse.EndOfData
		}
		return count, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("anbu session cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}

	return nil
}

func cueSamples(kind Kind) []int16 {
	switch kind {
	case Start:
		return startPCM
	case Stop:
		return stopPCM
	case Complete:
		return completePCM
	case Cancel:
		return cancelPCM
	default:
		return nil
	}
}

func synthesizeCue(parts []toneSpec) []int16 {
	if len(parts) == 0 {
		return nil
	}
	gapSamples := samplesForDuration(22 * time.Millisecond)
	total := 0
	for i, part := range parts {
		total += samplesForDuration(part.duration)
		if i < len(parts)-1 {
			total += gapSamples
		}
	}

	pcm := make([]int16, 0, total)
	for i, part := range parts {
		pcm = append(pcm, synthesizeTone(part)...)
		if i < len(parts)-1 && gapSamples > 0 {
			pcm = append(pcm, make([]int16, gapSamples)...)
		}
	}

	return pcm
}

func synthesizeTone(spec toneSpec) []int16 {
	n := samplesForDuration(spec.duration)
	if n <= 0 || spec.frequencyHz <= 0 || spec.volume <= 0 {
		return nil
	}

	attackRelease := n / 10
	maxRamp := sampleRate / 200 // 5ms
	if attackRelease > maxRamp {
		attackRelease = maxRamp
	}
	if attackRelease < 1 {
		attackRelease = 1
	}

	pcm := make([]int16, n)
	for i := 0; i < n; i++ {
		envelope := 1.0
		if i < attackRelease {
			envelope = float64(i) / float64(attackRelease)
		}
		releaseIndex := n - i - 1
		if releaseIndex < attackRelease {
			release := float64(releaseIndex) / float64(attackRelease)
			if release < envelope {
				envelope = release
			}
		}
		t := float64(i) / sampleRate
		sample := math.Sin(2 * math.Pi * spec.frequencyHz * t)
		pcm[i] = int16(math.Round(sample * spec.volume * envelope * 32767))
	}

	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * sampleRate))
}
