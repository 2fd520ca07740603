// Package assistant runs chat turns through the dialogue engine and exposes
// them over HTTP and WebSocket.
package assistant

import (
	"github.com/ashureev/veltrix/internal/domain"
	"github.com/ashureev/veltrix/internal/intent"
)

// ChatRequest is the inbound body of a chat turn.
type ChatRequest struct {
	Message string `json:"message"`
}

// Request is one turn as seen by the engine.
type Request struct {
	UserID  string
	Role    domain.Role
	Message string
}

// Response is the outbound body of a chat turn. Guided-flow replies carry no
// intent or confidence.
type Response struct {
	Success    bool          `json:"success"`
	Intent     *intent.Label `json:"intent,omitempty"`
	Confidence *float64      `json:"confidence,omitempty"`
	Reply      string        `json:"reply"`
}

// TranscriptResponse is the body of the transcript endpoint.
type TranscriptResponse struct {
	Success  bool             `json:"success"`
	Messages []domain.Message `json:"messages"`
}

func flowResponse(reply string) *Response {
	return &Response{Success: true, Reply: reply}
}

func classifiedResponse(result intent.Result, reply string) *Response {
	label := result.Label
	confidence := result.Confidence
	return &Response{Success: true, Intent: &label, Confidence: &confidence, Reply: reply}
}
