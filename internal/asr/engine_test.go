package asr

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolbomi/anbu/internal/speech"
)

func TestEngineStartRequiresURL(t *testing.T) {
	engine := NewEngine(Config{}, nil)
	_, err := engine.Start(context.Background())
	require.ErrorIs(t, err, speech.ErrRecognitionUnavailable)
}

func TestListenURLDefaults(t *testing.T) {
	url, err := listenURL(Config{URL: "wss://asr.example.com/v1/listen", Language: "ko"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "wss://asr.example.com/v1/listen?"))
	require.Contains(t, url, "language=ko")
	require.Contains(t, url, "encoding=linear16")
	require.Contains(t, url, "sample_rate=16000")
	require.Contains(t, url, "channels=1")
	require.Contains(t, url, "interim_results=false")
	require.NotContains(t, url, "model=")
}

func TestListenURLSchemeMapping(t *testing.T) {
	url, err := listenURL(Config{URL: "https://asr.example.com/listen", Language: "ko", Model: "general", InterimResults: true})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "wss://"))
	require.Contains(t, url, "model=general")
	require.Contains(t, url, "interim_results=true")

	url, err = listenURL(Config{URL: "http://localhost:9090/listen", Language: "ko"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "ws://"))
}

func TestListenURLRejectsUnknownScheme(t *testing.T) {
	_, err := listenURL(Config{URL: "ftp://asr.example.com", Language: "ko"})
	require.Error(t, err)
}
