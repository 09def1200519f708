package speech

import (
	"errors"
	"fmt"
)

var (
	// ErrSynthesisUnavailable indicates no synthesis engine is wired.
	ErrSynthesisUnavailable = errors.New("TTS를 지원하지 않는 환경입니다")
	// ErrRecognitionUnavailable indicates no recognition engine is wired.
	ErrRecognitionUnavailable = errors.New("음성 인식을 지원하지 않는 환경입니다")
	// ErrListenTimeout indicates no speech was detected within the overall timeout.
	ErrListenTimeout = errors.New("답변 시간이 초과되었습니다")
	// ErrNoSpeech indicates recognition ended without any usable transcript.
	ErrNoSpeech = errors.New("음성이 감지되지 않았습니다")
	// ErrAborted indicates recognition was intentionally cancelled.
	ErrAborted = errors.New("음성 인식이 중단되었습니다")
	// ErrAudioCapture indicates the microphone could not be opened.
	ErrAudioCapture = errors.New("마이크를 찾을 수 없습니다")
	// ErrNotAllowed indicates microphone access was denied.
	ErrNotAllowed = errors.New("마이크 권한이 거부되었습니다")
	// ErrNetwork indicates the recognition backend was unreachable.
	ErrNetwork = errors.New("네트워크 오류가 발생했습니다")
)

// IsNoAnswer reports whether a Listen failure means "no answer was given"
// rather than a hard recognition failure. Callers record the no-answer
// placeholder for these instead of treating them as errors.
func IsNoAnswer(err error) bool {
	return errors.Is(err, ErrListenTimeout) || errors.Is(err, ErrNoSpeech)
}

// normalizeError maps engine failures onto the caller-facing taxonomy,
// keeping known sentinels intact and wrapping everything else with a
// human-readable message.
func normalizeError(err error) error {
	switch {
	case errors.Is(err, ErrAudioCapture),
		errors.Is(err, ErrNotAllowed),
		errors.Is(err, ErrNetwork):
		return err
	default:
		return fmt.Errorf("음성 인식에 실패했습니다: %w", err)
	}
}
