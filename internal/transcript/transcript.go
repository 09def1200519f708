// Package transcript models the per-session conversation record and its
// wire formatting for the analysis endpoint.
package transcript

import (
	"strings"
	"time"
)

// NoAnswer is the placeholder recorded when a question received no speech.
// The analysis endpoint consumes it as literal text, so the string must not
// change while that contract holds.
const NoAnswer = "[답변이 없었습니다]"

// Entry is one asked question with its recognized (or placeholder) answer.
// Entries are immutable once appended to a conversation.
type Entry struct {
	Question  string
	Answer    string
	Timestamp time.Time
}

// FormatConversation renders entries as the line-separated paragraphs the
// analysis endpoint expects, one question/answer pair per paragraph.
func FormatConversation(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}

	paragraphs := make([]string, 0, len(entries))
	for _, entry := range entries {
		var b strings.Builder
		b.WriteString("질문: ")
		b.WriteString(strings.TrimSpace(entry.Question))
		b.WriteString("\n답변: ")
		b.WriteString(strings.TrimSpace(entry.Answer))
		paragraphs = append(paragraphs, b.String())
	}
	return strings.Join(paragraphs, "\n\n")
}

// JoinSegments assembles incremental final recognition segments into one
// answer string, separated by a single space per segment.
func JoinSegments(segments []string) string {
	kept := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		kept = append(kept, segment)
	}
	return strings.Join(kept, " ")
}
