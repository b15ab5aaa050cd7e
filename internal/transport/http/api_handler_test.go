package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"trivia-quiz-service/internal/domain"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry, results := newTestRegistry(t)
	mux := http.NewServeMux()
	NewAPIHandler(registry, results, nil).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestAPIQuizLifecycle(t *testing.T) {
	server := newAPIServer(t)

	var created createQuizResponse
	status := doJSON(t, http.MethodPost, server.URL+"/quizzes", map[string]any{
		"title":                  "Capitals",
		"questions":              sampleQuestions(),
		"timePerQuestionSeconds": 30,
		"difficulty":             "easy",
		"creatorId":              "host",
	}, &created)
	if status != http.StatusCreated || created.QuizID == "" {
		t.Fatalf("create: status %d, body %+v", status, created)
	}
	quizURL := server.URL + "/quizzes/" + created.QuizID

	for _, p := range []joinRequest{{PlayerID: "a", Name: "Alice"}, {PlayerID: "b", Name: "Bob"}} {
		if status := doJSON(t, http.MethodPost, quizURL+"/players", p, nil); status != http.StatusCreated {
			t.Fatalf("join %s: status %d", p.PlayerID, status)
		}
	}

	var errBody errorPayload
	if status := doJSON(t, http.MethodPost, quizURL+"/start", controlRequest{RequesterID: "a"}, &errBody); status != http.StatusForbidden {
		t.Fatalf("non-creator start: status %d", status)
	}

	var state domain.QuizState
	if status := doJSON(t, http.MethodPost, quizURL+"/start", controlRequest{RequesterID: "host"}, &state); status != http.StatusOK {
		t.Fatalf("start: status %d", status)
	}
	if state.Status != domain.StatusInProgress || state.Difficulty != domain.DifficultyEasy {
		t.Fatalf("unexpected state after start: %+v", state)
	}

	answers := []struct {
		player string
		option int
	}{
		{"a", 1}, {"b", 0}, // q1: A correct
		{"a", 1}, {"b", 0}, // q2: B correct
	}
	for _, a := range answers {
		var outcome domain.AnswerOutcome
		status := doJSON(t, http.MethodPost, quizURL+"/answers", map[string]any{"playerId": a.player, "optionIndex": a.option}, &outcome)
		if status != http.StatusOK {
			t.Fatalf("answer %s: status %d", a.player, status)
		}
	}

	if status := doJSON(t, http.MethodGet, quizURL, nil, &state); status != http.StatusOK || state.Status != domain.StatusCompleted {
		t.Fatalf("get after completion: status %d, state %+v", status, state.Status)
	}

	var winners []domain.QuizResult
	if status := doJSON(t, http.MethodGet, server.URL+"/results/winners", nil, &winners); status != http.StatusOK {
		t.Fatalf("winners: status %d", status)
	}
	if len(winners) != 2 {
		t.Fatalf("expected a two-way tie, got %+v", winners)
	}

	var history []domain.QuizResult
	doJSON(t, http.MethodGet, server.URL+"/results/players/a?limit=5", nil, &history)
	if len(history) != 1 || history[0].Score != 10 || history[0].CorrectAnswers != 1 {
		t.Fatalf("unexpected history: %+v", history)
	}

	if status := doJSON(t, http.MethodDelete, quizURL, nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete: status %d", status)
	}
	if status := doJSON(t, http.MethodGet, quizURL, nil, &errBody); status != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", status)
	}
}

func TestAPICreateFromSet(t *testing.T) {
	server := newAPIServer(t)

	var created createQuizResponse
	status := doJSON(t, http.MethodPost, server.URL+"/quizzes", map[string]any{
		"title":         "From set",
		"setId":         "set-1",
		"questionCount": 1,
		"creatorId":     "host",
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create from set: status %d", status)
	}

	var state domain.QuizState
	doJSON(t, http.MethodGet, server.URL+"/quizzes/"+created.QuizID, nil, &state)
	if state.TotalQuestions != 1 || state.Difficulty != domain.DifficultyMedium {
		t.Fatalf("unexpected state: %+v", state)
	}

	var errBody errorPayload
	status = doJSON(t, http.MethodPost, server.URL+"/quizzes", map[string]any{
		"title": "Missing", "setId": "nope", "creatorId": "host",
	}, &errBody)
	if status != http.StatusNotFound || errBody.Code != "question_set_not_found" {
		t.Fatalf("missing set: status %d, body %+v", status, errBody)
	}
}

func TestAPIErrorMapping(t *testing.T) {
	server := newAPIServer(t)

	var errBody errorPayload
	status := doJSON(t, http.MethodPost, server.URL+"/quizzes", map[string]any{
		"title": "Empty", "creatorId": "host", "timePerQuestionSeconds": 10,
	}, &errBody)
	if status != http.StatusBadRequest || errBody.Code != "invalid_config" {
		t.Fatalf("empty questions: status %d, body %+v", status, errBody)
	}

	var created createQuizResponse
	doJSON(t, http.MethodPost, server.URL+"/quizzes", map[string]any{
		"title": "Q", "questions": sampleQuestions(), "timePerQuestionSeconds": 10, "creatorId": "host",
	}, &created)
	quizURL := server.URL + "/quizzes/" + created.QuizID

	if status := doJSON(t, http.MethodPost, quizURL+"/start", controlRequest{RequesterID: "host"}, &errBody); status != http.StatusConflict || errBody.Code != "empty_roster" {
		t.Fatalf("start empty: status %d, body %+v", status, errBody)
	}
	if status := doJSON(t, http.MethodPost, quizURL+"/answers", map[string]any{"playerId": "a", "optionIndex": 0}, &errBody); status != http.StatusConflict {
		t.Fatalf("answer before start: status %d", status)
	}
	if status := doJSON(t, http.MethodPost, quizURL+"/answers", map[string]any{"playerId": "a"}, &errBody); status != http.StatusBadRequest {
		t.Fatalf("answer without option: status %d", status)
	}

	req, _ := http.NewRequest(http.MethodPost, quizURL+"/players", bytes.NewBufferString("{not json"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json: status %d", resp.StatusCode)
	}
}

func TestAPIRejectsAnswerForClosedQuestion(t *testing.T) {
	server := newAPIServer(t)

	var created createQuizResponse
	doJSON(t, http.MethodPost, server.URL+"/quizzes", map[string]any{
		"title": "Q", "questions": sampleQuestions(), "timePerQuestionSeconds": 10, "creatorId": "host",
	}, &created)
	quizURL := server.URL + "/quizzes/" + created.QuizID
	doJSON(t, http.MethodPost, quizURL+"/players", joinRequest{PlayerID: "a", Name: "Alice"}, nil)

	var state domain.QuizState
	if status := doJSON(t, http.MethodPost, quizURL+"/start", controlRequest{RequesterID: "host"}, &state); status != http.StatusOK {
		t.Fatalf("start: status %d", status)
	}
	if state.TimePerQuestionMs != 10000 || state.QuestionDeadline == nil || state.CompletedAt != nil {
		t.Fatalf("unexpected timing fields: %+v", state)
	}
	if status := doJSON(t, http.MethodPost, quizURL+"/next", controlRequest{RequesterID: "host"}, &state); status != http.StatusOK {
		t.Fatalf("next: status %d", status)
	}

	var errBody errorPayload
	status := doJSON(t, http.MethodPost, quizURL+"/answers", map[string]any{"playerId": "a", "questionId": "q1", "optionIndex": 1}, &errBody)
	if status != http.StatusConflict || errBody.Code != "stale_answer" {
		t.Fatalf("late answer: status %d, body %+v", status, errBody)
	}

	var outcome domain.AnswerOutcome
	status = doJSON(t, http.MethodPost, quizURL+"/answers", map[string]any{"playerId": "a", "questionId": "q2", "optionIndex": 0}, &outcome)
	if status != http.StatusOK || outcome.QuestionID != "q2" || !outcome.Correct {
		t.Fatalf("answer to open question: status %d, outcome %+v", status, outcome)
	}
}
