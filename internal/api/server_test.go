package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/binarykitchen/noodlenotify/internal/config"
	"github.com/binarykitchen/noodlenotify/internal/models"
	"github.com/binarykitchen/noodlenotify/internal/publish"
	"github.com/binarykitchen/noodlenotify/internal/signing"
	"github.com/binarykitchen/noodlenotify/internal/stream"
)

func setupTestServer(t *testing.T, secret string) (*Server, *httptest.Server) {
	t.Helper()

	s := NewServer(config.HubConfig{Secret: secret}, zerolog.Nop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Shutdown(time.Second)
		ts.Close()
	})
	return s, ts
}

func postMessage(t *testing.T, url, body string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/api/v1/messages", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	_, ts := setupTestServer(t, "")

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := setupTestServer(t, "")

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestSendValidation(t *testing.T) {
	_, ts := setupTestServer(t, "")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"data":"Hello World"}`, http.StatusAccepted},
		{"typed", `{"data":"x","event":"status"}`, http.StatusAccepted},
		{"invalid json", `{"data":`, http.StatusBadRequest},
		{"empty data", `{"data":""}`, http.StatusBadRequest},
		{"multi-line event", `{"data":"x","event":"a\nb"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postMessage(t, ts.URL, tt.body, nil)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestSendReturnsMessage(t *testing.T) {
	_, ts := setupTestServer(t, "")

	resp := postMessage(t, ts.URL, `{"data":"noodles"}`, nil)
	var msg models.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(msg.ID, "msg_") || msg.Data != "noodles" || msg.Event != "" {
		t.Errorf("message = %+v", msg)
	}
}

func TestSignatureMiddleware(t *testing.T) {
	_, ts := setupTestServer(t, "s3cret")
	body := `{"data":"signed"}`

	t.Run("missing headers", func(t *testing.T) {
		resp := postMessage(t, ts.URL, body, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		sig, stamp := signing.Sign("wrong", []byte(body))
		h := http.Header{}
		h.Set(signing.SignatureHeader, sig)
		h.Set(signing.TimestampHeader, strconv.FormatInt(stamp, 10))
		resp := postMessage(t, ts.URL, body, h)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("valid", func(t *testing.T) {
		sig, stamp := signing.Sign("s3cret", []byte(body))
		h := http.Header{}
		h.Set(signing.SignatureHeader, sig)
		h.Set(signing.TimestampHeader, strconv.FormatInt(stamp, 10))
		resp := postMessage(t, ts.URL, body, h)
		if resp.StatusCode != http.StatusAccepted {
			t.Errorf("status = %d, want 202", resp.StatusCode)
		}
	})
}

type recorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *recorder) Notify(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.texts)
}

func TestPushToListener(t *testing.T) {
	_, ts := setupTestServer(t, "s3cret")

	rec := &recorder{}
	sub := stream.NewSubscriber(config.ListenConfig{URL: ts.URL + "/push", Greeting: "Hello World"}, rec, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	pub := publish.NewPublisher(config.PublishConfig{URL: ts.URL, Secret: "s3cret", Timeout: time.Second})

	// Publish until the listener's subscription is live.
	deadline := time.Now().Add(3 * time.Second)
	for len(rec.snapshot()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("listener never received a message: %q", rec.snapshot())
		}
		if _, err := pub.Publish(ctx, "ping", ""); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, err := pub.Publish(ctx, "printer status", "status"); err != nil {
		t.Fatalf("Publish typed: %v", err)
	}
	if _, err := pub.Publish(ctx, "line one\nline two", ""); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline = time.Now().Add(3 * time.Second)
	for !slices.Contains(rec.snapshot(), "line one\nline two") {
		if time.Now().After(deadline) {
			t.Fatalf("multi-line message never arrived: %q", rec.snapshot())
		}
		time.Sleep(5 * time.Millisecond)
	}

	got := rec.snapshot()
	if got[0] != "Hello World" {
		t.Errorf("first notification = %q, want greeting", got[0])
	}
	if slices.Contains(got, "printer status") {
		t.Errorf("typed event reached the listener: %q", got)
	}
	if got[len(got)-1] != "line one\nline two" {
		t.Errorf("last notification = %q", got[len(got)-1])
	}
}
