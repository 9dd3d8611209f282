package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"worklens/internal/catalog"
	"worklens/internal/generate"
)

// Backend produces the assistant text for one turn. Generation failures are
// absorbed below this boundary (the outcome is fallback text); a returned
// error is always a *TransportError, the one failure class the turn handler
// surfaces to the user.
type Backend interface {
	Generate(ctx context.Context, files []catalog.SourceFile, prompt string) (generate.Outcome, error)
}

// TransportError is an unreachable or misbehaving gateway: connection
// refused, a non-JSON body, or an error payload.
type TransportError struct {
	Status  int
	Message string
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport: %s (status %d)", e.Message, e.Status)
	}
	return "transport: " + e.Message
}

// LocalBackend runs the generation gateway in-process. It never errors.
type LocalBackend struct {
	Gateway *generate.Gateway
}

func (b LocalBackend) Generate(ctx context.Context, files []catalog.SourceFile, prompt string) (generate.Outcome, error) {
	return b.Gateway.Generate(ctx, files, prompt), nil
}

// HTTPBackend speaks the gateway wire contract over HTTP.
type HTTPBackend struct {
	BaseURL string
	Client  *http.Client
}

type generateRequest struct {
	Files  []catalog.SourceFile `json:"files"`
	Prompt string               `json:"prompt"`
}

type generateResponse struct {
	AIResponse string `json:"aiResponse"`
	LLMStatus  struct {
		Fallback bool   `json:"fallback"`
		Model    string `json:"model"`
	} `json:"llmStatus"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b *HTTPBackend) Generate(ctx context.Context, files []catalog.SourceFile, prompt string) (generate.Outcome, error) {
	if files == nil {
		files = []catalog.SourceFile{}
	}
	body, err := json.Marshal(generateRequest{Files: files, Prompt: prompt})
	if err != nil {
		return generate.Outcome{}, &TransportError{Message: err.Error()}
	}

	url := strings.TrimRight(b.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return generate.Outcome{}, &TransportError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return generate.Outcome{}, &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return generate.Outcome{}, &TransportError{Status: resp.StatusCode, Message: err.Error()}
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return generate.Outcome{}, &TransportError{Status: resp.StatusCode, Message: "malformed response body"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := decoded.Error
		if msg == "" {
			msg = decoded.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return generate.Outcome{}, &TransportError{Status: resp.StatusCode, Message: msg}
	}
	// a 2xx carrying an error payload is still a transport-level failure
	if decoded.Error != "" {
		return generate.Outcome{}, &TransportError{Status: resp.StatusCode, Message: decoded.Error}
	}

	return generate.Outcome{
		Text:     decoded.AIResponse,
		Fallback: decoded.LLMStatus.Fallback,
		Model:    decoded.LLMStatus.Model,
	}, nil
}
