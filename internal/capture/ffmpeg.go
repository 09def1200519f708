package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// stopGracePeriod is how long a recorder gets to finalize its container
// after SIGINT before it is killed.
const stopGracePeriod = 5 * time.Second

// encoderProfile maps a negotiable mime type onto ffmpeg muxer and codec
// arguments.
type encoderProfile struct {
	muxer      string
	videoCodec string
	audioCodec string
	extension  string
}

var encoderProfiles = map[string]encoderProfile{
	"video/webm;codecs=vp9": {muxer: "webm", videoCodec: "libvpx-vp9", audioCodec: "libopus", extension: "webm"},
	"video/webm;codecs=vp8": {muxer: "webm", videoCodec: "libvpx", audioCodec: "libopus", extension: "webm"},
	"video/mp4;codecs=h264": {muxer: "mp4", videoCodec: "libx264", audioCodec: "aac", extension: "mp4"},
	"video/webm":            {muxer: "webm", videoCodec: "libvpx", audioCodec: "libopus", extension: "webm"},
}

// FFmpegEngine records camera and microphone through an ffmpeg child
// process.
type FFmpegEngine struct {
	command string
	logger  *slog.Logger

	encodersOnce sync.Once
	encoders     string
}

// NewFFmpegEngine constructs an engine around the given ffmpeg binary.
func NewFFmpegEngine(command string, logger *slog.Logger) *FFmpegEngine {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegEngine{command: command, logger: logger}
}

// Supports reports whether the local ffmpeg build carries the encoder the
// mime type needs.
func (e *FFmpegEngine) Supports(mimeType string) bool {
	profile, ok := encoderProfiles[mimeType]
	if !ok {
		return false
	}
	return encoderListed(e.encoderList(), profile.videoCodec)
}

// Open probes the devices and grabs a still frame while the camera is still
// free. The snapshot is cached on the handle; a snapshot failure is not
// fatal to acquisition.
func (e *FFmpegEngine) Open(ctx context.Context, constraints Constraints) (Handle, error) {
	constraints = withDefaults(constraints)

	if _, err := exec.LookPath(e.command); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	if _, err := os.Stat(constraints.VideoDevice); err != nil {
		return nil, fmt.Errorf("video device %s: %w", constraints.VideoDevice, err)
	}

	snapshot, err := e.grabFrame(ctx, constraints)
	if err != nil {
		snapshot = nil
		if e.logger != nil {
			e.logger.Warn("snapshot grab failed", "error", err)
		}
	}

	return &ffmpegHandle{
		command:     e.command,
		constraints: constraints,
		snapshot:    snapshot,
		logger:      e.logger,
	}, nil
}

// grabFrame captures a single JPEG frame from the camera on stdout.
func (e *FFmpegEngine) grabFrame(ctx context.Context, constraints Constraints) ([]byte, error) {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", constraints.Width, constraints.Height),
		"-i", constraints.VideoDevice,
		"-frames:v", "1",
		"-c:v", "mjpeg",
		"-f", "image2",
		"-",
	}

	cmd := exec.CommandContext(ctx, e.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("frame grab failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errors.New("frame grab produced no data")
	}
	return stdout.Bytes(), nil
}

func (e *FFmpegEngine) encoderList() string {
	e.encodersOnce.Do(func() {
		out, err := exec.Command(e.command, "-hide_banner", "-encoders").Output()
		if err != nil {
			return
		}
		e.encoders = string(out)
	})
	return e.encoders
}

// encoderListed scans ffmpeg -encoders output for an encoder name.
func encoderListed(list, encoder string) bool {
	for _, line := range strings.Split(list, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == encoder {
			return true
		}
	}
	return false
}

func withDefaults(constraints Constraints) Constraints {
	if constraints.VideoDevice == "" {
		constraints.VideoDevice = "/dev/video0"
	}
	if constraints.AudioInput == "" {
		constraints.AudioInput = "default"
	}
	if constraints.Width <= 0 {
		constraints.Width = 1280
	}
	if constraints.Height <= 0 {
		constraints.Height = 720
	}
	if constraints.FrameRate <= 0 {
		constraints.FrameRate = 30
	}
	return constraints
}

type ffmpegHandle struct {
	command     string
	constraints Constraints
	snapshot    []byte
	logger      *slog.Logger

	mu       sync.Mutex
	process  *os.Process
	waitErr  <-chan error
	stderr   *bytes.Buffer
	outPath  string
	released bool
}

func (h *ffmpegHandle) StartRecording(mimeType string) error {
	profile, ok := encoderProfiles[mimeType]
	if !ok {
		return fmt.Errorf("unsupported mime type %q", mimeType)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return errors.New("capture device released")
	}
	if h.process != nil {
		return ErrAlreadyRecording
	}

	out, err := os.CreateTemp("", "anbu-rec-*."+profile.extension)
	if err != nil {
		return fmt.Errorf("failed to create recording file: %w", err)
	}
	outPath := out.Name()
	_ = out.Close()

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "v4l2",
		"-framerate", strconv.Itoa(h.constraints.FrameRate),
		"-video_size", fmt.Sprintf("%dx%d", h.constraints.Width, h.constraints.Height),
		"-i", h.constraints.VideoDevice,
		"-f", "pulse",
		"-i", h.constraints.AudioInput,
		"-c:v", profile.videoCodec,
		"-c:a", profile.audioCodec,
		"-f", profile.muxer,
		"-y", outPath,
	}

	cmd := exec.Command(h.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		_ = os.Remove(outPath)
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	h.process = cmd.Process
	h.waitErr = waitErr
	h.stderr = &stderr
	h.outPath = outPath
	return nil
}

func (h *ffmpegHandle) StopRecording(ctx context.Context) (Clip, error) {
	h.mu.Lock()
	process := h.process
	waitErr := h.waitErr
	stderr := h.stderr
	outPath := h.outPath
	h.process = nil
	h.waitErr = nil
	h.stderr = nil
	h.outPath = ""
	h.mu.Unlock()

	if process == nil {
		return Clip{}, ErrNotRecording
	}
	defer func() { _ = os.Remove(outPath) }()

	// SIGINT lets ffmpeg finalize the container before exiting.
	_ = process.Signal(os.Interrupt)

	select {
	case err := <-waitErr:
		if err != nil && !isExpectedExit(err) {
			return Clip{}, fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
	case <-time.After(stopGracePeriod):
		_ = process.Kill()
		<-waitErr
	case <-ctx.Done():
		_ = process.Kill()
		<-waitErr
		return Clip{}, ctx.Err()
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to read recording: %w", err)
	}
	if len(data) == 0 {
		return Clip{}, errors.New("recording produced no data")
	}
	return Clip{Data: data}, nil
}

func (h *ffmpegHandle) Snapshot(_ context.Context) ([]byte, error) {
	if len(h.snapshot) == 0 {
		return nil, errors.New("no snapshot available")
	}
	frame := make([]byte, len(h.snapshot))
	copy(frame, h.snapshot)
	return frame, nil
}

func (h *ffmpegHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return
	}
	h.released = true

	if h.process != nil {
		_ = h.process.Kill()
		<-h.waitErr
		h.process = nil
		h.waitErr = nil
	}
	if h.outPath != "" {
		_ = os.Remove(h.outPath)
		h.outPath = ""
	}
	h.snapshot = nil
}

// isExpectedExit treats the non-zero status from an interrupted ffmpeg as a
// clean stop.
func isExpectedExit(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
