package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dolbomi/anbu/internal/speech"
)

func waitDone(t *testing.T, u speech.Utterance) error {
	t.Helper()
	select {
	case err := <-u.Done():
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("utterance never settled")
		return nil
	}
}

func TestSpeakPlaysSynthesizedAudio(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF-fake-wav"))
	}))
	defer server.Close()

	engine := NewEngine(Config{URL: server.URL, Voice: "ko-female", Player: []string{"true"}}, nil)
	u, err := engine.Speak(context.Background(), "오늘 기분은 어떠세요?")
	require.NoError(t, err)
	require.NoError(t, waitDone(t, u))

	require.Equal(t, "오늘 기분은 어떠세요?", got["text"])
	require.Equal(t, "ko-female", got["voice"])
	require.Equal(t, "ko-KR", got["language"])
	require.InDelta(t, 0.9, got["speed"], 0.001)
}

func TestSpeakBackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "voice unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	engine := NewEngine(Config{URL: server.URL, Player: []string{"true"}}, nil)
	u, err := engine.Speak(context.Background(), "질문")
	require.NoError(t, err)

	err = waitDone(t, u)
	require.Error(t, err)
	require.ErrorContains(t, err, "503")
}

func TestSpeakEmptyAudioFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	engine := NewEngine(Config{URL: server.URL, Player: []string{"true"}}, nil)
	u, err := engine.Speak(context.Background(), "질문")
	require.NoError(t, err)
	require.ErrorContains(t, waitDone(t, u), "empty audio")
}

func TestSpeakCancelAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("RIFF-fake-wav"))
	}))
	defer server.Close()

	engine := NewEngine(Config{URL: server.URL, Player: []string{"sh", "-c", "sleep 5"}}, nil)
	u, err := engine.Speak(context.Background(), "질문")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	u.Cancel()
	require.ErrorIs(t, waitDone(t, u), speech.ErrAborted)
}

func TestSpeakRequiresURL(t *testing.T) {
	engine := NewEngine(Config{Player: []string{"true"}}, nil)
	_, err := engine.Speak(context.Background(), "질문")
	require.ErrorIs(t, err, speech.ErrSynthesisUnavailable)
}

func TestSpeakFailedPlayerSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("RIFF-fake-wav"))
	}))
	defer server.Close()

	engine := NewEngine(Config{URL: server.URL, Player: []string{"false"}}, nil)
	u, err := engine.Speak(context.Background(), "질문")
	require.NoError(t, err)
	require.ErrorContains(t, waitDone(t, u), "play synthesized audio")
}
