// Package capture owns the camera/microphone recording lifecycle: device
// acquisition, codec negotiation, the single active recorder, and the final
// encoded clip.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrAcquire is the user-facing capability failure; the session cannot
	// proceed without the capture device.
	ErrAcquire = errors.New("카메라와 마이크에 접근할 수 없습니다")
	// ErrNotAcquired indicates a recording operation before Acquire.
	ErrNotAcquired = errors.New("capture device not acquired")
	// ErrAlreadyRecording guards against a concurrent second recorder.
	ErrAlreadyRecording = errors.New("recording already in progress")
	// ErrNotRecording indicates Stop without a running recorder.
	ErrNotRecording = errors.New("no recording in progress")
)

// Constraints are the device hints passed to acquisition.
type Constraints struct {
	VideoDevice string
	AudioInput  string
	Width       int
	Height      int
	FrameRate   int
}

// Clip is the final encoded recording, tagged with the mime type that was
// actually negotiated, never the preferred one.
type Clip struct {
	Data     []byte
	MimeType string
}

// Handle is one open capture device.
type Handle interface {
	StartRecording(mimeType string) error
	StopRecording(ctx context.Context) (Clip, error)
	Snapshot(ctx context.Context) ([]byte, error)
	Release()
}

// Engine opens capture devices and reports codec support.
type Engine interface {
	Supports(mimeType string) bool
	Open(ctx context.Context, constraints Constraints) (Handle, error)
}

// DefaultMimeTypes is the negotiation preference order.
var DefaultMimeTypes = []string{
	"video/webm;codecs=vp9",
	"video/webm;codecs=vp8",
	"video/mp4;codecs=h264",
}

// FallbackMimeType is used when no preferred type is supported.
const FallbackMimeType = "video/webm"

// Controller guards one capture device and at most one active recorder.
type Controller struct {
	engine    Engine
	preferred []string
	logger    *slog.Logger

	mu        sync.Mutex
	handle    Handle
	mimeType  string
	recording bool
}

// NewController constructs a capture controller. Empty preferred types
// select the default negotiation order.
func NewController(engine Engine, preferred []string, logger *slog.Logger) *Controller {
	if len(preferred) == 0 {
		preferred = DefaultMimeTypes
	}
	return &Controller{engine: engine, preferred: preferred, logger: logger}
}

// Acquire opens the capture device and negotiates the recording mime type.
func (c *Controller) Acquire(ctx context.Context, constraints Constraints) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil {
		return fmt.Errorf("capture device already acquired")
	}

	mimeType := c.negotiate()
	handle, err := c.engine.Open(ctx, constraints)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAcquire, err)
	}

	c.handle = handle
	c.mimeType = mimeType
	if c.logger != nil {
		c.logger.Info("capture device acquired", "mime_type", mimeType)
	}
	return nil
}

// MimeType returns the negotiated recording mime type.
func (c *Controller) MimeType() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mimeType
}

// Start begins recording. A second start while recording is an error, never
// a second recorder on the same device.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		return ErrNotAcquired
	}
	if c.recording {
		return ErrAlreadyRecording
	}
	if err := c.handle.StartRecording(c.mimeType); err != nil {
		return err
	}
	c.recording = true
	return nil
}

// Stop flushes the recorder and returns the final clip.
func (c *Controller) Stop(ctx context.Context) (Clip, error) {
	c.mu.Lock()
	if c.handle == nil {
		c.mu.Unlock()
		return Clip{}, ErrNotAcquired
	}
	if !c.recording {
		c.mu.Unlock()
		return Clip{}, ErrNotRecording
	}
	c.recording = false
	handle := c.handle
	mimeType := c.mimeType
	c.mu.Unlock()

	clip, err := handle.StopRecording(ctx)
	if err != nil {
		return Clip{}, err
	}
	if clip.MimeType == "" {
		clip.MimeType = mimeType
	}
	return clip, nil
}

// Snapshot returns a still frame for the upload pipeline.
func (c *Controller) Snapshot(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	handle := c.handle
	c.mu.Unlock()

	if handle == nil {
		return nil, ErrNotAcquired
	}
	return handle.Snapshot(ctx)
}

// Release stops every constituent track and frees the device. Idempotent,
// and required on all exit paths including errors and teardown.
func (c *Controller) Release() {
	c.mu.Lock()
	handle := c.handle
	c.handle = nil
	c.recording = false
	c.mu.Unlock()

	if handle != nil {
		handle.Release()
	}
}

// negotiate probes preferred mime types in order against engine support.
func (c *Controller) negotiate() string {
	for _, mimeType := range c.preferred {
		if c.engine.Supports(mimeType) {
			return mimeType
		}
	}
	if c.logger != nil {
		c.logger.Warn("no preferred mime type supported, using fallback", "fallback", FallbackMimeType)
	}
	return FallbackMimeType
}
