package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/timmy/tally/internal/config"
	"github.com/timmy/tally/internal/domain"
)

func testJob() *domain.BulkUploadJob {
	return &domain.BulkUploadJob{
		ID:           "job-1",
		OwnerID:      "u1",
		RecordType:   domain.RecordTypeCenter,
		ElectionYear: 2024,
		Status:       domain.JobStatusCompleted,
		TotalRows:    4,
		Progress:     domain.JobProgress{Processed: 4, Successful: 3, Failed: 1},
	}
}

func TestWebhookPublisher_TerminalOnly(t *testing.T) {
	var calls int32
	var got Event
	var signature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		body, _ := io.ReadAll(r.Body)
		signature = r.Header.Get(SignatureHeader)
		if Sign("s3cret", body) != signature {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	pub := NewWebhookPublisher(config.WebhookConfig{URL: srv.URL, Secret: "s3cret", Timeout: time.Second})
	ctx := context.Background()

	if err := pub.Publish(ctx, NewEvent(EventProgress, testJob())); err != nil {
		t.Fatalf("Publish(progress): %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("progress event sent %d requests, want 0", n)
	}

	if err := pub.Publish(ctx, NewEvent(EventCompleted, testJob())); err != nil {
		t.Fatalf("Publish(completed): %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("completed event sent %d requests, want 1", n)
	}
	if got.UploadID != "job-1" || got.Progress.Successful != 3 || got.Type != EventCompleted {
		t.Errorf("payload = %+v", got)
	}
	if signature == "" {
		t.Error("missing signature header")
	}
}

func TestWebhookPublisher_Errors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch r.URL.Path {
		case "/flaky":
			if n == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("bad payload"))
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	flaky := NewWebhookPublisher(config.WebhookConfig{URL: srv.URL + "/flaky", RetryCount: 2, Timeout: time.Second})
	if err := flaky.Publish(ctx, NewEvent(EventFailed, testJob())); err != nil {
		t.Fatalf("retry should recover from 502: %v", err)
	}

	atomic.StoreInt32(&calls, 0)
	rejected := NewWebhookPublisher(config.WebhookConfig{URL: srv.URL + "/reject", RetryCount: 2, Timeout: time.Second})
	if err := rejected.Publish(ctx, NewEvent(EventCompleted, testJob())); err == nil {
		t.Fatal("expected error for HTTP 400")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("4xx should not be retried, got %d requests", n)
	}
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestMulti(t *testing.T) {
	ok := &recordingPublisher{}
	boom := errors.New("boom")
	failing := &recordingPublisher{err: boom}

	m := Multi{failing, ok}
	err := m.Publish(context.Background(), NewEvent(EventProgress, testJob()))
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if len(ok.events) != 1 {
		t.Errorf("a failing publisher must not stop the others")
	}

	if err := (Multi{}).Publish(context.Background(), Event{}); err != nil {
		t.Errorf("empty Multi err = %v", err)
	}
}

func TestNew(t *testing.T) {
	pubs, err := New(context.Background(), config.NotifyConfig{})
	if err != nil || len(pubs) != 0 {
		t.Fatalf("New(empty) = %v, %v", pubs, err)
	}

	pubs, err = New(context.Background(), config.NotifyConfig{Webhook: config.WebhookConfig{URL: "http://localhost/hook"}})
	if err != nil || len(pubs) != 1 {
		t.Fatalf("New(webhook) = %v, %v", pubs, err)
	}

	_, err = New(context.Background(), config.NotifyConfig{Redis: config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}})
	if err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestEvent_Terminal(t *testing.T) {
	tests := map[EventType]bool{
		EventProgress:  false,
		EventCompleted: true,
		EventFailed:    true,
	}
	for typ, want := range tests {
		if got := (Event{Type: typ}).Terminal(); got != want {
			t.Errorf("Event{%s}.Terminal() = %v, want %v", typ, got, want)
		}
	}
}
