// Package config resolves, loads, validates, and defaults the anbu runtime
// configuration.
package config

import "time"

// Config is the fully materialized runtime configuration.
type Config struct {
	Auth    AuthConfig    `mapstructure:"auth"`
	AI      ServerConfig  `mapstructure:"ai_server" validate:"required"`
	Main    ServerConfig  `mapstructure:"main_server" validate:"required"`
	Audio   AudioConfig   `mapstructure:"audio"`
	ASR     ASRConfig     `mapstructure:"asr"`
	TTS     TTSConfig     `mapstructure:"tts"`
	Capture CaptureConfig `mapstructure:"capture"`
	Session SessionConfig `mapstructure:"session"`
	Cue     CueConfig     `mapstructure:"cue"`
}

// AuthConfig holds the senior access code used to authenticate the device.
type AuthConfig struct {
	SeniorCode string `mapstructure:"senior_code"`
	SeniorName string `mapstructure:"senior_name"`
}

// ServerConfig addresses one backend collaborator.
type ServerConfig struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`
}

// AudioConfig controls microphone input selection.
type AudioConfig struct {
	Input string `mapstructure:"input"`
}

// ASRConfig controls the streaming recognition engine.
type ASRConfig struct {
	URL            string `mapstructure:"url" validate:"omitempty,url"`
	APIKey         string `mapstructure:"api_key"`
	Language       string `mapstructure:"language" validate:"required"`
	Model          string `mapstructure:"model"`
	InterimResults bool   `mapstructure:"interim_results"`
}

// TTSConfig controls the synthesis engine and local playback.
type TTSConfig struct {
	URL      string  `mapstructure:"url" validate:"omitempty,url"`
	Voice    string  `mapstructure:"voice"`
	Language string  `mapstructure:"language" validate:"required"`
	Rate     float64 `mapstructure:"rate" validate:"gt=0,lte=2"`
	Player   string  `mapstructure:"player" validate:"required"`
}

// CaptureConfig controls camera/microphone recording.
type CaptureConfig struct {
	VideoDevice string   `mapstructure:"video_device"`
	AudioInput  string   `mapstructure:"audio_input"`
	Width       int      `mapstructure:"width" validate:"min=0"`
	Height      int      `mapstructure:"height" validate:"min=0"`
	FrameRate   int      `mapstructure:"frame_rate" validate:"min=0"`
	MimeTypes   []string `mapstructure:"mime_types"`
	FFmpeg      string   `mapstructure:"ffmpeg"`
}

// SessionConfig controls the check-in question flow and its timers.
type SessionConfig struct {
	Questions     []string      `mapstructure:"questions"`
	Grace         time.Duration `mapstructure:"grace" validate:"min=0"`
	QuestionPause time.Duration `mapstructure:"question_pause" validate:"min=0"`
	AnswerTimeout time.Duration `mapstructure:"answer_timeout" validate:"min=0"`
	Warmup        time.Duration `mapstructure:"warmup" validate:"min=0"`
	Trailing      time.Duration `mapstructure:"trailing_silence" validate:"min=0"`
}

// CueConfig controls audible feedback around session transitions. Custom
// cue files replace the built-in synthesized tones when set.
type CueConfig struct {
	Enable       bool   `mapstructure:"enable"`
	StartFile    string `mapstructure:"start_file"`
	StopFile     string `mapstructure:"stop_file"`
	CompleteFile string `mapstructure:"complete_file"`
	CancelFile   string `mapstructure:"cancel_file"`
}

// Warning is a non-fatal load message.
type Warning struct {
	Message string
}
