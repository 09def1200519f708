package cue

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dolbomi/anbu/internal/config"
)

func TestCueSamplesPresent(t *testing.T) {
	require.NotEmpty(t, cueSamples(Start))
	require.NotEmpty(t, cueSamples(Stop))
	require.NotEmpty(t, cueSamples(Complete))
	require.NotEmpty(t, cueSamples(Cancel))
}

func TestCueSamplesUnknownKindEmpty(t *testing.T) {
	require.Empty(t, cueSamples(Kind(99)))
}

func TestSynthesizeToneDuration(t *testing.T) {
	got := synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0.2})
	want := samplesForDuration(100 * time.Millisecond)
	require.Len(t, got, want)
}

func TestSynthesizeToneInvalidSpecReturnsEmpty(t *testing.T) {
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 0, duration: 100 * time.Millisecond, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 0, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0}))
}

func TestSamplesForDuration(t *testing.T) {
	require.Equal(t, 0, samplesForDuration(0))
	require.Greater(t, samplesForDuration(25*time.Millisecond), 0)
}

func TestPlayDisabledIsNoop(t *testing.T) {
	notifier := NewNotifier(config.CueConfig{Enable: false}, nil)
	notifier.Play(Start)
}

func TestFilePathResolvesConfiguredKinds(t *testing.T) {
	notifier := NewNotifier(config.CueConfig{
		Enable:       true,
		StartFile:    "/tmp/start.wav",
		CompleteFile: "/tmp/done.wav",
	}, nil)

	require.Equal(t, "/tmp/start.wav", notifier.filePath(Start))
	require.Equal(t, "/tmp/done.wav", notifier.filePath(Complete))
	require.Empty(t, notifier.filePath(Stop))
	require.Empty(t, notifier.filePath(Kind(99)))
}

func TestExpandUserPath(t *testing.T) {
	require.Empty(t, expandUserPath("  "))
	require.Equal(t, "/abs/path.wav", expandUserPath("/abs/path.wav"))

	home, err := os.UserHomeDir()
	if err == nil {
		require.Equal(t, filepath.Join(home, "cue.wav"), expandUserPath("~/cue.wav"))
	}
}
