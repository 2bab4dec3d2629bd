package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Idle keep-alive connections from httptest servers.
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	c, err := NewClient(Config{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Millisecond,
			Multiplier: 2,
		},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestChatSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat-messages" {
			t.Errorf("path = %q, want /chat-messages", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var body map[string]any
		if err := jsonDecode(r, &body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["response_mode"] != "blocking" {
			t.Errorf("response_mode = %v", body["response_mode"])
		}
		inputs, _ := body["inputs"].(map[string]any)
		if inputs["retrieval_mode"] != "broad" {
			t.Errorf("retrieval_mode = %v", inputs["retrieval_mode"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"answer": "Restart the benchmark agent first.",
			"message_id": "msg-1",
			"conversation_id": "conv-1",
			"metadata": {
				"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150},
				"retriever_resources": [
					{"document_id": "doc-9", "document_name": "RVT Guide", "score": 0.87}
				]
			}
		}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Chat(context.Background(), ChatRequest{
		Query:   "how do I restart the agent",
		User:    "tester",
		Breadth: BreadthBroad,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Answer != "Restart the benchmark agent first." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if resp.ConversationID != "conv-1" {
		t.Errorf("ConversationID = %q", resp.ConversationID)
	}
	if resp.Usage.TotalTokens != 150 {
		t.Errorf("TotalTokens = %d", resp.Usage.TotalTokens)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].DocumentName != "RVT Guide" {
		t.Errorf("Citations = %+v", resp.Citations)
	}
}

func TestChatRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"answer": "eventually fine", "conversation_id": "conv-2", "metadata": {}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Chat(context.Background(), ChatRequest{Query: "q", User: "u"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Answer != "eventually fine" {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestChatRetriesBadRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"answer": "ok", "metadata": {}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if _, err := client.Chat(context.Background(), ChatRequest{Query: "q", User: "u"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestChatExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Chat(context.Background(), ChatRequest{Query: "q", User: "u"})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("err = %v, want wrapped 503 StatusError", err)
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("calls = %d, want 4 (initial + 3 retries)", got)
	}
}

func TestChatNonRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "invalid api key"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Chat(context.Background(), ChatRequest{Query: "q", User: "u"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 StatusError", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", got)
	}
}

func TestChatContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Minute, // would block a full minute without cancellation
			Multiplier: 2,
		},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err = client.Chat(ctx, ChatRequest{Query: "q", User: "u"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took %v, backoff did not abort", elapsed)
	}
}

func TestChatCircuitOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	for i := 0; i < 5; i++ {
		client.Chat(context.Background(), ChatRequest{Query: "q", User: "u"})
	}

	_, err := client.Chat(context.Background(), ChatRequest{Query: "q", User: "u"})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen after repeated failures", err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}
