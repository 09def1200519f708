package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/dolbomi/anbu/internal/analysis"
	"github.com/dolbomi/anbu/internal/capture"
)

// MainClient talks to the main server: senior authentication and log
// persistence.
type MainClient struct {
	*client
}

// NewMainClient constructs a client for the main server.
func NewMainClient(baseURL string, timeout time.Duration, logger *slog.Logger) *MainClient {
	return &MainClient{client: newClient(baseURL, timeout, logger)}
}

// Session is the authenticated senior session returned by login.
type Session struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
	UserID      int64  `json:"user_id"`
}

type seniorLoginRequest struct {
	Code string `json:"code"`
}

// SeniorLogin exchanges a senior access code for a bearer session. The
// token is installed on the client for subsequent calls.
func (c *MainClient) SeniorLogin(ctx context.Context, code string) (Session, error) {
	var session Session
	if err := c.postJSON(ctx, "/auth/senior/login", seniorLoginRequest{Code: code}, &session); err != nil {
		return Session{}, err
	}
	if session.AccessToken == "" {
		return Session{}, fmt.Errorf("login returned no access token")
	}
	c.SetToken(session.AccessToken)
	return session, nil
}

// LogRequest is the persisted senior log entry.
type LogRequest struct {
	UserID        int64                `json:"user_id"`
	SessionID     string               `json:"session_id"`
	Health        string               `json:"health"`
	Emotion       string               `json:"emotion"`
	DailyFunction string               `json:"daily_function"`
	Summary       string               `json:"summary"`
	KeyPhrases    []string             `json:"key_phrases"`
	CareTodo      []string             `json:"care_todo"`
	EmotionType   analysis.EmotionType `json:"emotion_type"`
	Today         string               `json:"today"`
	ThisWeek      string               `json:"this_week"`
	ThisMonth     string               `json:"this_month"`
	ThisYear      string               `json:"this_year"`
}

// NewLogRequest assembles a log entry from an analysis result. The emotion
// label is mapped onto the closed enumeration.
func NewLogRequest(userID int64, sessionID string, result analysis.Result) LogRequest {
	req := LogRequest{
		UserID:        userID,
		SessionID:     sessionID,
		Health:        result.Health,
		Emotion:       result.Emotion,
		DailyFunction: result.DailyFunction,
		Summary:       result.Summary,
		KeyPhrases:    result.KeyPhrases,
		CareTodo:      result.CareTodo,
		EmotionType:   analysis.MapEmotion(result.Emotion),
		Today:         result.Plan.Today,
		ThisWeek:      result.Plan.ThisWeek,
		ThisMonth:     result.Plan.ThisMonth,
		ThisYear:      result.Plan.ThisYear,
	}
	if req.KeyPhrases == nil {
		req.KeyPhrases = []string{}
	}
	if req.CareTodo == nil {
		req.CareTodo = []string{}
	}
	return req
}

// CreateLog persists the log entry together with the recorded clip. The
// server acknowledges with an empty body.
func (c *MainClient) CreateLog(ctx context.Context, request LogRequest, clip capture.Clip) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode log request: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("request", string(payload)); err != nil {
		return fmt.Errorf("failed to write request field: %w", err)
	}

	if len(clip.Data) > 0 {
		part, err := writer.CreateFormFile("file", clipFilename(clip))
		if err != nil {
			return fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := part.Write(clip.Data); err != nil {
			return fmt.Errorf("failed to write clip: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	return c.postMultipart(ctx, "/log", writer.FormDataContentType(), &body, nil)
}

func clipFilename(clip capture.Clip) string {
	ext := "webm"
	if strings.Contains(clip.MimeType, "mp4") {
		ext = "mp4"
	}
	return fmt.Sprintf("log-%d.%s", time.Now().UnixMilli(), ext)
}
