// Package upload runs the post-recording pipeline: snapshot upload,
// conversation analysis, and log persistence. Every step degrades
// gracefully; the pipeline never blocks session completion.
package upload

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dolbomi/anbu/internal/analysis"
	"github.com/dolbomi/anbu/internal/api"
	"github.com/dolbomi/anbu/internal/capture"
	"github.com/dolbomi/anbu/internal/transcript"
)

// ContextUploader uploads the session still frame.
type ContextUploader interface {
	UploadContext(ctx context.Context, sessionID, userID string, frame []byte) error
}

// Analyzer submits the conversation for remote analysis.
type Analyzer interface {
	UploadAnalysis(ctx context.Context, sessionID, userID, seniorName, conversation string) (analysis.Result, error)
}

// LogCreator persists the final log entry with the recorded clip.
type LogCreator interface {
	CreateLog(ctx context.Context, request api.LogRequest, clip capture.Clip) error
}

// Input is everything a finished session hands to the pipeline.
type Input struct {
	SessionID    string
	UserID       int64
	SeniorName   string
	Snapshot     []byte
	Clip         capture.Clip
	Conversation []transcript.Entry
}

// Pipeline sequences the three upload steps.
type Pipeline struct {
	uploader ContextUploader
	analyzer Analyzer
	logs     LogCreator
	logger   *slog.Logger
}

// New constructs the pipeline. Nil collaborators skip their step.
func New(uploader ContextUploader, analyzer Analyzer, logs LogCreator, logger *slog.Logger) *Pipeline {
	return &Pipeline{uploader: uploader, analyzer: analyzer, logs: logs, logger: logger}
}

// Run executes snapshot upload, analysis, and log persistence in order.
// Failures are logged and swallowed; the analysis step substitutes the
// default result so log persistence always has a well-formed payload. The
// returned result is what was persisted, real or default.
func (p *Pipeline) Run(ctx context.Context, input Input) analysis.Result {
	userID := strconv.FormatInt(input.UserID, 10)

	if p.uploader != nil && len(input.Snapshot) > 0 {
		if err := p.uploader.UploadContext(ctx, input.SessionID, userID, input.Snapshot); err != nil {
			p.warn("snapshot upload failed", input.SessionID, err)
		}
	} else if len(input.Snapshot) == 0 {
		p.warn("no snapshot to upload", input.SessionID, nil)
	}

	result := analysis.Default()
	if p.analyzer != nil {
		conversation := transcript.FormatConversation(input.Conversation)
		analyzed, err := p.analyzer.UploadAnalysis(ctx, input.SessionID, userID, input.SeniorName, conversation)
		if err != nil {
			p.warn("analysis failed, using default result", input.SessionID, err)
		} else {
			result = analyzed
		}
	}

	if p.logs != nil {
		request := api.NewLogRequest(input.UserID, input.SessionID, result)
		if err := p.logs.CreateLog(ctx, request, input.Clip); err != nil {
			p.warn("log persistence failed", input.SessionID, err)
		}
	}

	return result
}

func (p *Pipeline) warn(msg, sessionID string, err error) {
	if p.logger == nil {
		return
	}
	if err != nil {
		p.logger.Warn(msg, "session_id", sessionID, "error", err)
		return
	}
	p.logger.Warn(msg, "session_id", sessionID)
}
