package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolbomi/anbu/internal/analysis"
)

func TestUploadContextSendsMultipartFields(t *testing.T) {
	var (
		gotSessionID string
		gotUserID    string
		gotImage     []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/context/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotSessionID = r.FormValue("session_id")
		gotUserID = r.FormValue("user_id")

		file, _, err := r.FormFile("image_file")
		require.NoError(t, err)
		defer file.Close()
		gotImage, err = io.ReadAll(file)
		require.NoError(t, err)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewAIClient(server.URL, 0, nil)
	err := client.UploadContext(context.Background(), "session-1", "7", []byte{0xff, 0xd8})
	require.NoError(t, err)

	assert.Equal(t, "session-1", gotSessionID)
	assert.Equal(t, "7", gotUserID)
	assert.Equal(t, []byte{0xff, 0xd8}, gotImage)
}

func TestUploadAnalysisMapsResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/analyze/upload", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "session-1", req["session_id"])
		assert.Equal(t, "7", req["user_id"])
		assert.Equal(t, "김영희", req["senior_name"])
		assert.Contains(t, req["conversation"], "질문:")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"health":         "양호",
			"emotion":        "행복",
			"daily_function": "정상",
			"summary":        "오늘 컨디션이 좋습니다.",
			"key_phrases":    []string{"산책", "식사"},
			"care_todo":      []string{"수분 섭취 확인"},
			"today":          "가벼운 산책",
			"this_week":      "병원 방문",
			"this_month":     "정기 검진",
			"this_year":      "건강 관리 유지",
		})
	}))
	defer server.Close()

	client := NewAIClient(server.URL, 0, nil)
	result, err := client.UploadAnalysis(context.Background(), "session-1", "7", "김영희", "질문: 잘 주무셨나요?\n답변: 네")
	require.NoError(t, err)

	assert.Equal(t, "양호", result.Health)
	assert.Equal(t, "행복", result.Emotion)
	assert.Equal(t, "정상", result.DailyFunction)
	assert.Equal(t, []string{"산책", "식사"}, result.KeyPhrases)
	assert.Equal(t, []string{"수분 섭취 확인"}, result.CareTodo)
	assert.Equal(t, "가벼운 산책", result.Plan.Today)
	assert.Equal(t, "건강 관리 유지", result.Plan.ThisYear)
	assert.Equal(t, analysis.EmotionHappy, analysis.MapEmotion(result.Emotion))
}

func TestUploadAnalysisNormalizesNilSlices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"summary":"ok"}`))
	}))
	defer server.Close()

	client := NewAIClient(server.URL, 0, nil)
	result, err := client.UploadAnalysis(context.Background(), "s", "1", "n", "c")
	require.NoError(t, err)
	assert.NotNil(t, result.KeyPhrases)
	assert.NotNil(t, result.CareTodo)
}

func TestUploadAnalysisSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewAIClient(server.URL, 0, nil)
	_, err := client.UploadAnalysis(context.Background(), "s", "1", "n", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
