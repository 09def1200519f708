package config

import (
	"time"

	"github.com/dolbomi/anbu/internal/speech"
)

// DefaultQuestions is the check-in question list used when none is
// configured.
func DefaultQuestions() []string {
	return []string{
		"안녕하세요! 어젯밤에는 잘 주무셨나요?",
		"오늘 식사는 맛있게 하셨나요?",
		"요즘 몸 상태는 어떠세요? 불편한 곳은 없으신가요?",
		"오늘 기분은 어떠신가요?",
		"최근에 가족이나 친구와 연락하신 적이 있으신가요?",
	}
}

// Default returns the canonical runtime configuration used when no file is
// present.
func Default() Config {
	return Config{
		AI:   ServerConfig{Timeout: 60 * time.Second},
		Main: ServerConfig{URL: "http://localhost:8000", Timeout: 60 * time.Second},
		Audio: AudioConfig{
			Input: "default",
		},
		ASR: ASRConfig{
			Language:       "ko",
			InterimResults: true,
		},
		TTS: TTSConfig{
			Language: "ko-KR",
			Rate:     0.9,
			Player:   "pw-play",
		},
		Capture: CaptureConfig{
			VideoDevice: "/dev/video0",
			AudioInput:  "default",
			Width:       1280,
			Height:      720,
			FrameRate:   30,
			FFmpeg:      "ffmpeg",
		},
		Session: SessionConfig{
			Questions:     DefaultQuestions(),
			Grace:         time.Second,
			QuestionPause: time.Second,
			AnswerTimeout: 10 * time.Second,
			Warmup:        speech.DefaultWarmup,
			Trailing:      speech.DefaultTrailingSilence,
		},
		Cue: CueConfig{
			Enable: true,
		},
	}
}
