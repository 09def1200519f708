// Package app wires configuration, logging, IPC ownership, and the session
// controller into the anbu CLI process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/dolbomi/anbu/internal/api"
	"github.com/dolbomi/anbu/internal/asr"
	"github.com/dolbomi/anbu/internal/audio"
	"github.com/dolbomi/anbu/internal/capture"
	"github.com/dolbomi/anbu/internal/cli"
	"github.com/dolbomi/anbu/internal/config"
	"github.com/dolbomi/anbu/internal/cue"
	"github.com/dolbomi/anbu/internal/doctor"
	"github.com/dolbomi/anbu/internal/ipc"
	"github.com/dolbomi/anbu/internal/logging"
	"github.com/dolbomi/anbu/internal/session"
	"github.com/dolbomi/anbu/internal/speech"
	"github.com/dolbomi/anbu/internal/tts"
	"github.com/dolbomi/anbu/internal/upload"
	"github.com/dolbomi/anbu/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("anbu"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("anbu"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandQuestions:
		for i, question := range cfgLoaded.Config.Session.Questions {
			fmt.Fprintf(r.Stdout, "%d. %s\n", i+1, question)
		}
		return 0
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStart:
		return r.forwardOrFail(ctx, "start")
	case cli.CommandStop:
		return r.forwardOrFail(ctx, "stop")
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, "cancel")
	case cli.CommandRecord:
		return r.commandRecord(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, "status")
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		if resp.Total > 0 {
			fmt.Fprintf(r.Stdout, "%s (%d/%d)\n", resp.State, resp.Question, resp.Total)
		} else {
			fmt.Fprintln(r.Stdout, resp.State)
		}
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active anbu session\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) commandRecord(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: a check-in session is already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	controller, err := buildController(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	result := controller.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logSessionResult(logger, result)

	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}

	fmt.Fprintf(r.Stdout, "check-in complete: %d answers recorded\n", len(result.Conversation))
	if strings.TrimSpace(result.Analysis.Summary) != "" {
		fmt.Fprintln(r.Stdout, result.Analysis.Summary)
	}
	return 0
}

// buildController assembles the session controller from configuration:
// speech engines, the capture recorder, backend clients, and identity.
func buildController(ctx context.Context, cfg config.Config, logger *slog.Logger) (*session.Controller, error) {
	mainClient := api.NewMainClient(cfg.Main.URL, cfg.Main.Timeout, logger)
	aiClient := api.NewAIClient(cfg.AI.URL, cfg.AI.Timeout, logger)

	identity := session.Identity{SeniorName: cfg.Auth.SeniorName}
	if strings.TrimSpace(cfg.Auth.SeniorCode) != "" {
		authed, err := mainClient.SeniorLogin(ctx, cfg.Auth.SeniorCode)
		if err != nil {
			return nil, fmt.Errorf("senior login failed: %w", err)
		}
		identity.UserID = authed.UserID
		logger.Info("senior authenticated", "user_id", authed.UserID)
	} else {
		logger.Warn("no senior code configured; uploads will be unauthenticated")
	}

	playerArgv, err := config.ParseArgv(cfg.TTS.Player)
	if err != nil {
		return nil, fmt.Errorf("invalid tts.player: %w", err)
	}

	ttsEngine := tts.NewEngine(tts.Config{
		URL:      cfg.TTS.URL,
		Voice:    cfg.TTS.Voice,
		Language: cfg.TTS.Language,
		Rate:     cfg.TTS.Rate,
		Player:   playerArgv,
	}, logger)
	speaker := speech.NewSpeaker(ttsEngine, cfg.Session.Warmup, logger)

	asrEngine := asr.NewEngine(asr.Config{
		URL:            cfg.ASR.URL,
		APIKey:         cfg.ASR.APIKey,
		Language:       cfg.ASR.Language,
		Model:          cfg.ASR.Model,
		InterimResults: cfg.ASR.InterimResults,
		Input:          cfg.Audio.Input,
	}, logger)
	answerListener := speech.NewListener(asrEngine, cfg.Session.Trailing, logger)

	captureEngine := capture.NewFFmpegEngine(cfg.Capture.FFmpeg, logger)
	recorder := capture.NewController(captureEngine, cfg.Capture.MimeTypes, logger)

	pipeline := upload.New(aiClient, aiClient, mainClient, logger)

	return session.NewController(logger, speaker, answerListener, recorder, pipeline, session.Options{
		Questions: cfg.Session.Questions,
		Identity:  identity,
		Cues:      cue.NewNotifier(cfg.Cue, logger),
		Timing: session.Timing{
			Grace:         cfg.Session.Grace,
			QuestionPause: cfg.Session.QuestionPause,
			AnswerTimeout: cfg.Session.AnswerTimeout,
		},
		Constraints: capture.Constraints{
			VideoDevice: cfg.Capture.VideoDevice,
			AudioInput:  cfg.Capture.AudioInput,
			Width:       cfg.Capture.Width,
			Height:      cfg.Capture.Height,
			FrameRate:   cfg.Capture.FrameRate,
		},
	}), nil
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"session_id", result.SessionID,
		"state", result.State,
		"cancelled", result.Cancelled,
		"answers", len(result.Conversation),
		"uploaded", result.Uploaded,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) || isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
