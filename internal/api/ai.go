package api

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/dolbomi/anbu/internal/analysis"
)

// AIClient talks to the AI server: snapshot context uploads and
// conversation analysis.
type AIClient struct {
	*client
}

// NewAIClient constructs a client for the AI server.
func NewAIClient(baseURL string, timeout time.Duration, logger *slog.Logger) *AIClient {
	return &AIClient{client: newClient(baseURL, timeout, logger)}
}

// UploadContext uploads a still frame for the session so the analysis has
// visual context.
func (c *AIClient) UploadContext(ctx context.Context, sessionID, userID string, frame []byte) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("session_id", sessionID); err != nil {
		return fmt.Errorf("failed to write session_id: %w", err)
	}
	if err := writer.WriteField("user_id", userID); err != nil {
		return fmt.Errorf("failed to write user_id: %w", err)
	}

	part, err := writer.CreateFormFile("image_file", fmt.Sprintf("recording-%d.jpg", time.Now().UnixMilli()))
	if err != nil {
		return fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := part.Write(frame); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	return c.postMultipart(ctx, "/context/upload", writer.FormDataContentType(), &body, nil)
}

type analyzeRequest struct {
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
	SeniorName   string `json:"senior_name"`
	Conversation string `json:"conversation"`
}

type analyzeResponse struct {
	Health        string   `json:"health"`
	Emotion       string   `json:"emotion"`
	DailyFunction string   `json:"daily_function"`
	Summary       string   `json:"summary"`
	KeyPhrases    []string `json:"key_phrases"`
	CareTodo      []string `json:"care_todo"`
	Today         string   `json:"today"`
	ThisWeek      string   `json:"this_week"`
	ThisMonth     string   `json:"this_month"`
	ThisYear      string   `json:"this_year"`
}

// UploadAnalysis submits the formatted conversation for analysis and
// returns the structured result.
func (c *AIClient) UploadAnalysis(ctx context.Context, sessionID, userID, seniorName, conversation string) (analysis.Result, error) {
	req := analyzeRequest{
		SessionID:    sessionID,
		UserID:       userID,
		SeniorName:   seniorName,
		Conversation: conversation,
	}

	var resp analyzeResponse
	if err := c.postJSON(ctx, "/analyze/upload", req, &resp); err != nil {
		return analysis.Result{}, err
	}

	result := analysis.Result{
		Health:        resp.Health,
		Emotion:       resp.Emotion,
		DailyFunction: resp.DailyFunction,
		Summary:       resp.Summary,
		KeyPhrases:    resp.KeyPhrases,
		CareTodo:      resp.CareTodo,
		Plan: analysis.CarePlan{
			Today:     resp.Today,
			ThisWeek:  resp.ThisWeek,
			ThisMonth: resp.ThisMonth,
			ThisYear:  resp.ThisYear,
		},
	}
	if result.KeyPhrases == nil {
		result.KeyPhrases = []string{}
	}
	if result.CareTodo == nil {
		result.CareTodo = []string{}
	}
	return result, nil
}
