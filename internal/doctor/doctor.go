// Package doctor runs runtime readiness diagnostics for config, tools,
// devices, and backend reachability.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dolbomi/anbu/internal/audio"
	"github.com/dolbomi/anbu/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	})

	checks = append(checks, checkBinary(cfg.Config.Capture.FFmpeg, "recording requires ffmpeg"))

	if argv, err := config.ParseArgv(cfg.Config.TTS.Player); err != nil || len(argv) == 0 {
		checks = append(checks, Check{Name: "tts.player", Pass: false, Message: "player command is empty or malformed"})
	} else {
		checks = append(checks, checkBinary(argv[0], "question playback requires a player"))
	}

	checks = append(checks, checkVideoDevice(cfg.Config.Capture.VideoDevice))
	checks = append(checks, checkAudioSelection(cfg.Config))
	checks = append(checks, checkEndpoint("asr.url", wsProbeURL(cfg.Config.ASR.URL)))
	checks = append(checks, checkEndpoint("tts.url", cfg.Config.TTS.URL))
	checks = append(checks, checkEndpoint("ai_server.url", cfg.Config.AI.URL))
	checks = append(checks, checkEndpoint("main_server.url", cfg.Config.Main.URL))

	return Report{Checks: checks}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	if strings.TrimSpace(bin) == "" {
		return Check{Name: "binary", Pass: false, Message: "binary name is empty"}
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkVideoDevice validates the camera device node.
func checkVideoDevice(device string) Check {
	if strings.TrimSpace(device) == "" {
		return Check{Name: "capture.video_device", Pass: false, Message: "no video device configured"}
	}
	if _, err := os.Stat(device); err != nil {
		return Check{Name: "capture.video_device", Pass: false, Message: err.Error()}
	}
	return Check{Name: "capture.video_device", Pass: true, Message: fmt.Sprintf("found %s", device)}
}

// checkAudioSelection runs live device selection to surface microphone
// issues.
func checkAudioSelection(cfg config.Config) Check {
	selection, err := audio.SelectDevice(context.Background(), cfg.Audio.Input)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkEndpoint probes a backend URL for reachability. Any HTTP response
// counts; doctor verifies the host answers, not that the route exists.
func checkEndpoint(name, url string) Check {
	url = strings.TrimSpace(url)
	if url == "" {
		return Check{Name: name, Pass: false, Message: "not configured"}
	}

	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	return Check{Name: name, Pass: true, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
}

// wsProbeURL maps a websocket URL onto its HTTP equivalent for probing.
func wsProbeURL(url string) string {
	switch {
	case strings.HasPrefix(url, "wss://"):
		return "https://" + strings.TrimPrefix(url, "wss://")
	case strings.HasPrefix(url, "ws://"):
		return "http://" + strings.TrimPrefix(url, "ws://")
	default:
		return url
	}
}
