package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexwox/research-assistant/internal/agent/model"
	errx "github.com/alexwox/research-assistant/internal/core/error"
)

// Frame is the wire unit sent to the chat client.
type Frame struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	Message        string `json:"message,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

const (
	FrameStatus = "status"
	FrameChunk  = "chunk"
	FrameDone   = "done"
	FrameError  = "error"
)

// FrameWriter abstracts the transport so rendering can be tested without a
// live websocket.
type FrameWriter interface {
	WriteFrame(Frame) error
}

// streamResult reveals the answer incrementally: title first, then the body,
// then the bullet list, word by word with a short delay between chunks.
func streamResult(w FrameWriter, result *model.ResearchResult, delay time.Duration) error {
	for _, segment := range answerSegments(result) {
		for _, chunk := range splitWords(segment) {
			if err := w.WriteFrame(Frame{Type: FrameChunk, Content: chunk}); err != nil {
				return err
			}
			if delay > 0 {
				time.Sleep(delay)
			}
		}
	}
	return w.WriteFrame(Frame{Type: FrameDone})
}

// answerSegments orders the markdown parts of the answer, skipping empty ones.
func answerSegments(result *model.ResearchResult) []string {
	var segments []string
	if title := strings.TrimSpace(result.Title); title != "" {
		segments = append(segments, "## "+title+"\n\n")
	}
	if body := strings.TrimSpace(result.Body); body != "" {
		segments = append(segments, body+"\n\n")
	}
	if bullets := strings.TrimSpace(result.Bullets); bullets != "" {
		segments = append(segments, bullets+"\n")
	}
	return segments
}

// splitWords breaks a segment into word-sized chunks, each carrying its
// trailing whitespace so concatenating the chunks reproduces the segment.
func splitWords(segment string) []string {
	var chunks []string
	var b strings.Builder
	inSpace := false
	for _, r := range segment {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if inSpace && !isSpace && b.Len() > 0 {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		b.WriteRune(r)
		inSpace = isSpace
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

// errorMessage maps every failure kind to a user-facing message. The default
// arm keeps internal details out of the chat surface.
func errorMessage(err error) string {
	var synthesis *errx.SynthesisFailure
	if errors.As(err, &synthesis) {
		return fmt.Sprintf(
			"I could not put together a well-formed answer after %d attempts. Please try rephrasing your question.",
			synthesis.Attempts,
		)
	}

	var tool *errx.ToolFailure
	if errors.As(err, &tool) {
		return fmt.Sprintf("A research step failed (%s). Please try again in a moment.", tool.Tool)
	}

	var config *errx.ConfigurationFailure
	if errors.As(err, &config) {
		return "The assistant is not configured correctly. Please contact the operator."
	}

	return "Something went wrong while researching your question. Please try again."
}
