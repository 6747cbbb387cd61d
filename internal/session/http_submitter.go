package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/klasio/lms-backend/internal/model"
)

// HTTPSubmitter posts attempts to a per-quiz attempts endpoint over HTTP.
// Used when grading runs in a separate service. The request carries no
// client-enforced timeout: the transport's defaults apply, and the session
// clock is deliberately not a timeout on this call.
type HTTPSubmitter struct {
	baseURL string
	client  *http.Client
	token   func() string
}

// NewHTTPSubmitter creates a submitter for the given grading base URL, e.g.
// "https://grading.internal/api/v1/student". token, if non-nil, supplies the
// bearer token per request.
func NewHTTPSubmitter(baseURL string, client *http.Client, token func() string) *HTTPSubmitter {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSubmitter{baseURL: baseURL, client: client, token: token}
}

// attemptEnvelope mirrors the response envelope of the attempts endpoint.
// Every field is optional: any shape is tolerated and a missing attempt id
// simply falls back to generic result navigation.
type attemptEnvelope struct {
	Data struct {
		Attempt *model.AttemptResult `json:"attempt"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *HTTPSubmitter) Submit(ctx context.Context, quizID int64, payload *model.SubmitAttemptRequest) (*model.AttemptResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/quizzes/%d/attempts", s.baseURL, quizID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != nil {
		if t := s.token(); t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &SubmissionError{Message: "could not reach the grading service", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SubmissionError{Message: "could not read the grading response", Err: err}
	}

	var envelope attemptEnvelope
	// Decode errors are tolerated: a 2xx with an unknown shape still counts
	// as a successful submission, just without a routable attempt id.
	_ = json.Unmarshal(raw, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := "submission was rejected, please try again"
		if envelope.Error != nil && envelope.Error.Message != "" {
			msg = envelope.Error.Message
		}
		return nil, &SubmissionError{Message: msg, Err: fmt.Errorf("attempts endpoint returned %d", resp.StatusCode)}
	}

	if envelope.Data.Attempt == nil {
		return &model.AttemptResult{}, nil
	}
	return envelope.Data.Attempt, nil
}
