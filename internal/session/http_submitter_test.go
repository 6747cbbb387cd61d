package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/klasio/lms-backend/internal/model"
)

func TestHTTPSubmitterSuccess(t *testing.T) {
	attemptID := uuid.New()
	var gotPath, gotAuth string
	var gotBody model.SubmitAttemptRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"attempt": map[string]any{
					"id":              attemptID,
					"score":           66.7,
					"correct_count":   2,
					"total_questions": 3,
				},
			},
		})
	}))
	defer srv.Close()

	sub := NewHTTPSubmitter(srv.URL, srv.Client(), func() string { return "tok-123" })

	payload := &model.SubmitAttemptRequest{
		Answers:         []model.AttemptAnswer{{QuestionID: 1, SelectedOption: intPtr(2)}},
		DurationSeconds: 42,
	}
	result, err := sub.Submit(context.Background(), 7, payload)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if gotPath != "/quizzes/7/attempts" {
		t.Errorf("path = %q, want /quizzes/7/attempts", gotPath)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody.DurationSeconds != 42 || len(gotBody.Answers) != 1 {
		t.Errorf("posted body = %+v", gotBody)
	}
	if result.ID != attemptID || result.CorrectCount != 2 {
		t.Errorf("result = %+v", result)
	}
}

func TestHTTPSubmitterServerRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "answers reference unknown questions"},
		})
	}))
	defer srv.Close()

	sub := NewHTTPSubmitter(srv.URL, srv.Client(), nil)
	_, err := sub.Submit(context.Background(), 7, &model.SubmitAttemptRequest{})

	var serr *SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *SubmissionError", err)
	}
	if serr.Message != "answers reference unknown questions" {
		t.Errorf("message = %q, want the server's message", serr.Message)
	}
}

func TestHTTPSubmitterToleratesUnknownShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sub := NewHTTPSubmitter(srv.URL, srv.Client(), nil)
	result, err := sub.Submit(context.Background(), 7, &model.SubmitAttemptRequest{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// No attempt id: the caller falls back to generic navigation.
	if result.ID != uuid.Nil {
		t.Errorf("result id = %v, want nil uuid", result.ID)
	}
}

func TestHTTPSubmitterNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	sub := NewHTTPSubmitter(srv.URL, nil, nil)
	_, err := sub.Submit(context.Background(), 7, &model.SubmitAttemptRequest{})

	var serr *SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *SubmissionError", err)
	}
	if serr.Message == "" {
		t.Error("network failure carries no user-facing message")
	}
}
