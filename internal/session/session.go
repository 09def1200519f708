// Package session coordinates one guided check-in: capture acquisition,
// the spoken question/answer loop, and the post-recording upload pipeline.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dolbomi/anbu/internal/analysis"
	"github.com/dolbomi/anbu/internal/capture"
	"github.com/dolbomi/anbu/internal/fsm"
	"github.com/dolbomi/anbu/internal/ipc"
	"github.com/dolbomi/anbu/internal/speech"
	"github.com/dolbomi/anbu/internal/transcript"
	"github.com/dolbomi/anbu/internal/upload"
)

// Speaker is the session-facing subset of the speech output controller.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Stop()
}

// AnswerListener is the session-facing subset of the speech input
// controller.
type AnswerListener interface {
	Listen(ctx context.Context, timeout time.Duration) (string, error)
	Stop()
}

// Recorder is the session-facing subset of the media capture controller.
type Recorder interface {
	Acquire(ctx context.Context, constraints capture.Constraints) error
	Start() error
	Stop(ctx context.Context) (capture.Clip, error)
	Snapshot(ctx context.Context) ([]byte, error)
	Release()
}

// Uploader runs the post-recording pipeline.
type Uploader interface {
	Run(ctx context.Context, input upload.Input) analysis.Result
}

// Notifier receives audible-feedback hooks around session transitions.
type Notifier interface {
	RecordingStarted()
	RecordingStopped()
	SessionComplete()
	SessionCancelled()
}

// Identity is the authenticated senior on whose behalf the session runs.
type Identity struct {
	UserID     int64
	SeniorName string
}

// Timing collects the session's wall-clock delays.
type Timing struct {
	// Grace is the settle delay between acquisition and auto-start.
	Grace time.Duration
	// QuestionPause is the pause between consecutive questions.
	QuestionPause time.Duration
	// AnswerTimeout is the overall no-speech timeout per question.
	AnswerTimeout time.Duration
}

func (t Timing) withDefaults() Timing {
	if t.Grace <= 0 {
		t.Grace = time.Second
	}
	if t.QuestionPause <= 0 {
		t.QuestionPause = time.Second
	}
	if t.AnswerTimeout <= 0 {
		t.AnswerTimeout = 10 * time.Second
	}
	return t
}

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	State        fsm.State
	SessionID    string
	Conversation []transcript.Entry
	Analysis     analysis.Result
	Uploaded     bool
	Cancelled    bool
	Err          error
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Options configures a session controller.
type Options struct {
	Questions   []string
	Identity    Identity
	Timing      Timing
	Constraints capture.Constraints
	Cues        Notifier
}

// Controller orchestrates one recording session. A controller is single
// use; construct a new one per session.
type Controller struct {
	logger   *slog.Logger
	speaker  Speaker
	listener AnswerListener
	recorder Recorder
	pipeline Uploader
	cues     Notifier

	questions   []string
	identity    Identity
	timing      Timing
	constraints capture.Constraints
	sessionID   string

	mu            sync.RWMutex
	state         fsm.State
	started       bool
	processing    bool
	questionIndex int
	conversation  []transcript.Entry

	startCh   chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	cancelled bool
}

// noopSpeaker preserves session flow when no synthesis engine is wired.
type noopSpeaker struct{}

func (noopSpeaker) Speak(context.Context, string) error { return nil }
func (noopSpeaker) Stop()                               {}

// noopListener resolves every question as unanswered.
type noopListener struct{}

func (noopListener) Listen(context.Context, time.Duration) (string, error) {
	return "", speech.ErrNoSpeech
}
func (noopListener) Stop() {}

type noopNotifier struct{}

func (noopNotifier) RecordingStarted() {}
func (noopNotifier) RecordingStopped() {}
func (noopNotifier) SessionComplete()  {}
func (noopNotifier) SessionCancelled() {}

// NewController constructs a session controller with safe default
// fallbacks for unwired speech collaborators. The recorder is mandatory.
func NewController(
	logger *slog.Logger,
	speaker Speaker,
	listener AnswerListener,
	recorder Recorder,
	pipeline Uploader,
	opts Options,
) *Controller {
	if speaker == nil {
		speaker = noopSpeaker{}
	}
	if listener == nil {
		listener = noopListener{}
	}
	cues := opts.Cues
	if cues == nil {
		cues = noopNotifier{}
	}

	return &Controller{
		logger:      logger,
		speaker:     speaker,
		listener:    listener,
		recorder:    recorder,
		pipeline:    pipeline,
		cues:        cues,
		questions:   opts.Questions,
		identity:    opts.Identity,
		timing:      opts.Timing.withDefaults(),
		constraints: opts.Constraints,
		sessionID:   NewSessionID(),
		state:       fsm.StateIdle,
		startCh:     make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
}

// NewSessionID mints a session identifier in the format the backend logs
// expect.
func NewSessionID() string {
	return fmt.Sprintf("session-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// SessionID returns the identifier minted for this session.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// State returns the current state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Progress returns how many questions have completed and the total.
func (c *Controller) Progress() (asked, total int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.questionIndex, len(c.questions)
}

// transition applies one event to the session state.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Run executes one session from acquisition to upload completion. It
// returns once the session has terminated for any reason; the capture
// device is released on every exit path.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{SessionID: c.sessionID, StartedAt: time.Now()}

	if err := c.transition(fsm.EventAcquire); err != nil {
		return c.finishResult(result, err)
	}

	if err := c.recorder.Acquire(ctx, c.constraints); err != nil {
		_ = c.transition(fsm.EventFail)
		c.logError("capture acquisition failed", err)
		return c.finishResult(result, err)
	}
	defer c.recorder.Release()

	if err := c.transition(fsm.EventAcquired); err != nil {
		return c.finishResult(result, err)
	}

	// Let the preview settle; a manual start cuts the grace short.
	if proceed := c.waitGrace(ctx); proceed {
		if err := c.startRecording(); err != nil {
			c.logError("recording start failed", err)
			result.Err = err
		} else {
			c.askQuestions(ctx)
		}
	}

	return c.finish(ctx, result)
}

// waitGrace blocks for the grace delay. It reports whether the session
// should proceed into recording; stop or context cancellation ends the
// session before recording ever starts.
func (c *Controller) waitGrace(ctx context.Context) bool {
	timer := time.NewTimer(c.timing.Grace)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-c.startCh:
		return true
	case <-c.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// startRecording flips the session into recording exactly once. The second
// of two racing start requests is a no-op.
func (c *Controller) startRecording() error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.questionIndex = 0
	c.conversation = nil
	c.processing = false
	c.mu.Unlock()

	if err := c.recorder.Start(); err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return err
	}
	if err := c.transition(fsm.EventStart); err != nil {
		return err
	}
	c.cues.RecordingStarted()
	c.info("recording started", "questions", len(c.questions))
	return nil
}

// askQuestions runs the question/answer loop until the list is exhausted
// or the session stops.
func (c *Controller) askQuestions(ctx context.Context) {
	for i := 0; i < len(c.questions); i++ {
		if !c.askQuestion(ctx, i) {
			return
		}
		if i+1 < len(c.questions) {
			if !c.pause(ctx, c.timing.QuestionPause) {
				return
			}
		}
	}
}

// askQuestion runs one question/answer cycle. It reports whether the loop
// should continue to the next question.
func (c *Controller) askQuestion(ctx context.Context, index int) bool {
	if !c.beginCycle(index) {
		return false
	}
	defer c.endCycle()

	question := c.questions[index]

	if err := c.speaker.Speak(ctx, question); err != nil {
		if c.stopRequested() || errors.Is(err, speech.ErrAborted) {
			return false
		}
		c.logError("question playback failed", err, "question", index)
		// One broken question must not end the session; it records as
		// unanswered.
		c.append(question, transcript.NoAnswer, index)
		return true
	}
	if c.stopRequested() {
		return false
	}

	answer, err := c.listener.Listen(ctx, c.timing.AnswerTimeout)
	if c.stopRequested() {
		// Abandon without appending; stop cancelled the listen.
		return false
	}
	if err != nil {
		switch {
		case speech.IsNoAnswer(err):
			answer = transcript.NoAnswer
		case errors.Is(err, speech.ErrAborted):
			return false
		default:
			c.logError("answer capture failed", err, "question", index)
			c.append(question, transcript.NoAnswer, index)
			return true
		}
	}

	c.append(question, answer, index)
	return true
}

// beginCycle takes the re-entrancy guard. The first question may begin
// before the recording flag flips; later questions require it.
func (c *Controller) beginCycle(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.processing {
		return false
	}
	if c.state != fsm.StateRecording && index > 0 {
		return false
	}
	c.processing = true
	return true
}

func (c *Controller) endCycle() {
	c.mu.Lock()
	c.processing = false
	c.mu.Unlock()
}

// append records one completed question/answer pair and advances.
func (c *Controller) append(question, answer string, index int) {
	c.mu.Lock()
	c.conversation = append(c.conversation, transcript.Entry{
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now(),
	})
	c.questionIndex = index + 1
	c.mu.Unlock()
}

// pause waits between questions, abandoning on stop or cancellation.
func (c *Controller) pause(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-c.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// finish stops speech, flushes the recorder, and runs the upload pipeline.
// Context cancellation is teardown: release without upload.
func (c *Controller) finish(ctx context.Context, result Result) Result {
	c.speaker.Stop()
	c.listener.Stop()

	if err := c.transition(fsm.EventStop); err != nil {
		return c.finishResult(result, err)
	}

	c.mu.RLock()
	started := c.started
	cancelled := c.cancelled
	result.Conversation = append([]transcript.Entry(nil), c.conversation...)
	c.mu.RUnlock()

	// Explicit cancel and process teardown both discard the recording:
	// the clip is flushed and released but never uploaded.
	discard := cancelled || ctx.Err() != nil
	result.Cancelled = discard

	if !started {
		_ = c.transition(fsm.EventFlushed)
		return c.finishResult(result, nil)
	}

	// Snapshot comes from the frame cached at acquisition; grab it before
	// the recorder flushes.
	snapshot, err := c.recorder.Snapshot(ctx)
	if err != nil {
		c.logError("snapshot unavailable", err)
	}

	flushCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		flushCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	clip, err := c.recorder.Stop(flushCtx)
	if err != nil {
		c.logError("recorder flush failed", err)
	}
	c.cues.RecordingStopped()

	_ = c.transition(fsm.EventFlushed)

	if discard {
		c.cues.SessionCancelled()
	}
	if c.pipeline != nil && !discard {
		result.Analysis = c.pipeline.Run(ctx, upload.Input{
			SessionID:    c.sessionID,
			UserID:       c.identity.UserID,
			SeniorName:   c.identity.SeniorName,
			Snapshot:     snapshot,
			Clip:         clip,
			Conversation: result.Conversation,
		})
		result.Uploaded = true
		c.cues.SessionComplete()
	}

	return c.finishResult(result, nil)
}

func (c *Controller) finishResult(result Result, err error) Result {
	result.State = c.State()
	if err != nil {
		result.Err = err
	}
	result.FinishedAt = time.Now()
	return result
}

// Handle serves IPC commands for the active session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		asked, total := c.Progress()
		return ipc.Response{OK: true, State: string(c.State()), Question: asked, Total: total, Message: "status"}
	case "start":
		return c.requestStart()
	case "stop":
		return c.requestStop()
	case "cancel":
		return c.requestCancel()
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// requestStart wakes a session still in its grace delay.
func (c *Controller) requestStart() ipc.Response {
	state := c.State()
	if state != fsm.StateCaptureReady {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot start from state %s", state)}
	}

	select {
	case c.startCh <- struct{}{}:
		return ipc.Response{OK: true, State: string(state), Message: "start requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "start already requested"}
	}
}

// requestStop ends the session gracefully: the final clip is flushed and
// the upload pipeline runs.
func (c *Controller) requestStop() ipc.Response {
	state := c.State()
	switch state {
	case fsm.StateCaptureReady, fsm.StateRecording:
	default:
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot stop from state %s", state)}
	}

	c.signalStop(false)
	return ipc.Response{OK: true, State: string(state), Message: "stop requested"}
}

// requestCancel ends the session and discards the recording.
func (c *Controller) requestCancel() ipc.Response {
	state := c.State()
	switch state {
	case fsm.StateCaptureReady, fsm.StateRecording:
	default:
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot cancel from state %s", state)}
	}

	c.signalStop(true)
	return ipc.Response{OK: true, State: string(state), Message: "cancel requested"}
}

// signalStop flips the still-recording guard and cancels in-flight speech.
// Idempotent; the first caller wins the cancelled flag.
func (c *Controller) signalStop(cancelled bool) {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.cancelled = cancelled
		c.mu.Unlock()
		close(c.stopCh)
		c.speaker.Stop()
		c.listener.Stop()
	})
}

// stopRequested reports whether a stop or cancel has been signalled.
func (c *Controller) stopRequested() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Controller) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, append([]any{"session_id", c.sessionID}, args...)...)
	}
}

func (c *Controller) logError(msg string, err error, args ...any) {
	if c.logger != nil {
		args = append(args, "error", err)
		c.logger.Error(msg, append([]any{"session_id", c.sessionID}, args...)...)
	}
}
