// Package jsonapi posts JSON to provider HTTP APIs and classifies failures
// into rcaerr kinds.
package jsonapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/rcaerr"
)

// maxErrorBody bounds how much of a failed response ends up in an error.
const maxErrorBody = 300

// Post sends in as a JSON body and decodes a 200 reply into out. Transport
// failures are network errors. Any other status is a provider error that
// carries the API's own message when the body has one.
func Post(ctx context.Context, client *http.Client, step, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshalling request: %w", step, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", step, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return rcaerr.New(rcaerr.KindNetwork, step, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return rcaerr.New(rcaerr.KindNetwork, step, fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return rcaerr.Newf(rcaerr.KindProvider, step, "status %d: %s", resp.StatusCode, Message(respBody))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return rcaerr.New(rcaerr.KindProvider, step, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// Message extracts a readable message from an error body. Google replies
// with {"error":{"message","status"}} and Ollama with {"error":"..."}; other
// bodies are returned trimmed and shortened.
func Message(body []byte) string {
	var structured struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &structured) == nil && structured.Error.Message != "" {
		if structured.Error.Status != "" {
			return structured.Error.Status + ": " + structured.Error.Message
		}
		return structured.Error.Message
	}

	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Error != "" {
		return flat.Error
	}

	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	if s == "" {
		return "empty response"
	}
	return s
}
