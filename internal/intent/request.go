// Package intent defines inbound requests and classifies them into a vendor,
// equipment class and confidence.
package intent

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyPayload is returned for requests with no text to classify.
// Image and audio payloads must be transcribed before they reach Signalbox.
var ErrEmptyPayload = errors.New("intent: request payload has no text content")

// PayloadKind is the original medium of a request.
type PayloadKind string

const (
	KindText  PayloadKind = "text"
	KindImage PayloadKind = "image"
	KindAudio PayloadKind = "audio"
)

// Payload carries the request content. For image and audio payloads Content
// holds the upstream transcription.
type Payload struct {
	Kind    PayloadKind `json:"kind"`
	Content string      `json:"content"`
}

// Request is an inbound diagnostic question. It is never modified after
// construction.
type Request struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	UserID    string    `json:"user"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks that the request can be classified.
func (r Request) Validate() error {
	switch r.Payload.Kind {
	case KindText, KindImage, KindAudio, "":
	default:
		return fmt.Errorf("intent: unsupported payload kind %q", r.Payload.Kind)
	}
	if strings.TrimSpace(r.Payload.Content) == "" {
		return ErrEmptyPayload
	}
	return nil
}

// Text returns the normalised request text.
func (r Request) Text() string {
	return strings.TrimSpace(r.Payload.Content)
}
