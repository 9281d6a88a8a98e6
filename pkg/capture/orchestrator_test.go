package capture

import (
	"context"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-yolocapture/pkg/encoder"
	"github.com/teslashibe/go-yolocapture/pkg/label"
	"github.com/teslashibe/go-yolocapture/pkg/touch"
	"github.com/teslashibe/go-yolocapture/pkg/upload"
)

var testDets = []label.Detection{{ClassIndex: 2, BoundingBox: [4]float64{0.1, 0.2, 0.3, 0.4}}}

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 8, 8))
}

// endpoint is an httptest server recording requests to /upload.
type endpoint struct {
	*httptest.Server
	calls atomic.Int32
	mu    sync.Mutex
	body  string
}

func newEndpoint(t *testing.T, status int, response string) *endpoint {
	t.Helper()
	e := &endpoint{}
	e.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.calls.Add(1)
		b, _ := io.ReadAll(r.Body)
		e.mu.Lock()
		e.body = string(b)
		e.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(e.Close)
	return e
}

func (e *endpoint) lastBody() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.body
}

func newOrchestrator(t *testing.T, cfg Config, enc encoder.Encoder, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(cfg, enc, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func wait(t *testing.T, a *Attempt) (upload.Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := a.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("attempt did not resolve")
	}
	return res, err
}

func TestCaptureUploadsAndCallsBack(t *testing.T) {
	ep := newEndpoint(t, http.StatusCreated, `{"id":"abc"}`)
	o := newOrchestrator(t, Config{Enabled: true, BaseURL: ep.URL, Dataset: "ds1"}, encoder.NewMock("AAAA"))

	var calls atomic.Int32
	var got upload.Result
	a := o.Capture(context.Background(), testFrame(), testDets, func(res upload.Result) {
		calls.Add(1)
		got = res
	})

	res, err := wait(t, a)
	if err != nil {
		t.Fatalf("attempt error: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("callback invoked %d times, want 1", calls.Load())
	}
	if got.String("id") != "abc" || res.String("id") != "abc" {
		t.Errorf("callback result = %v, attempt result = %v", got, res)
	}
	if o.CaptureCount() != 1 || a.Seq() != 1 {
		t.Errorf("count = %d, seq = %d", o.CaptureCount(), a.Seq())
	}

	want := `{"dataset":"ds1","image_b64":"AAAA","label":"2 0.1 0.2 0.3 0.4\n"}`
	if body := ep.lastBody(); body != want {
		t.Errorf("request body = %s\nwant           %s", body, want)
	}
}

func TestCaptureNotFoundYieldsSentinel(t *testing.T) {
	ep := newEndpoint(t, http.StatusNotFound, `{"detail":"missing"}`)
	o := newOrchestrator(t, Config{Enabled: true, BaseURL: ep.URL, Dataset: "ds1"}, encoder.NewMock("AAAA"))

	var calls atomic.Int32
	var got upload.Result = upload.Result{"placeholder": true}
	a := o.Capture(context.Background(), testFrame(), testDets, func(res upload.Result) {
		calls.Add(1)
		got = res
	})

	if _, err := wait(t, a); err != nil {
		t.Fatalf("attempt error: %v", err)
	}
	if calls.Load() != 1 || got != nil {
		t.Errorf("callback calls = %d, result = %v; want 1 call with nil", calls.Load(), got)
	}
	if o.CaptureCount() != 1 {
		t.Errorf("count = %d, want 1", o.CaptureCount())
	}
}

func TestCaptureDisabled(t *testing.T) {
	ep := newEndpoint(t, http.StatusCreated, `{}`)
	enc := encoder.NewMock("AAAA")
	o := newOrchestrator(t, Config{Enabled: false, BaseURL: ep.URL, Dataset: "ds1"}, enc)

	o.OnTouchEvent(touch.Tap(1))

	calls := 0
	var got upload.Result = upload.Result{}
	a := o.Capture(context.Background(), testFrame(), testDets, func(res upload.Result) {
		calls++
		got = res
	})

	// The callback runs before Capture returns.
	if calls != 1 || got != nil {
		t.Errorf("callback calls = %d, result = %v; want 1 call with nil", calls, got)
	}
	if !errors.Is(a.Err(), ErrCaptureDisabled) {
		t.Errorf("attempt err = %v, want ErrCaptureDisabled", a.Err())
	}
	if o.CaptureCount() != 0 {
		t.Errorf("count = %d, want 0", o.CaptureCount())
	}
	if o.IsCapturing() {
		t.Error("trigger should be reset even when disabled")
	}
	if ep.calls.Load() != 0 || enc.Calls() != 0 {
		t.Errorf("http calls = %d, encode calls = %d; want none", ep.calls.Load(), enc.Calls())
	}
}

func TestCaptureEncodeFailure(t *testing.T) {
	ep := newEndpoint(t, http.StatusCreated, `{}`)
	enc := &encoder.Mock{Err: encoder.ErrEncodeFailed}
	o := newOrchestrator(t, Config{Enabled: true, BaseURL: ep.URL, Dataset: "ds1"}, enc)

	var calls atomic.Int32
	a := o.Capture(context.Background(), testFrame(), testDets, func(upload.Result) { calls.Add(1) })

	_, err := wait(t, a)
	if !errors.Is(err, ErrEncodeFailed) {
		t.Fatalf("err = %v, want ErrEncodeFailed", err)
	}
	if !errors.Is(err, encoder.ErrEncodeFailed) {
		t.Errorf("err should wrap the encoder error: %v", err)
	}
	var ee *EncodeError
	if !errors.As(err, &ee) || ee.Seq != 1 {
		t.Errorf("err = %#v, want *EncodeError with Seq 1", err)
	}
	if calls.Load() != 0 {
		t.Errorf("callback invoked %d times on encode failure", calls.Load())
	}
	if ep.calls.Load() != 0 {
		t.Errorf("upload attempted after encode failure")
	}
	if o.CaptureCount() != 1 {
		t.Errorf("count = %d, want 1", o.CaptureCount())
	}
}

func TestCaptureEmptyPayloadStillUploads(t *testing.T) {
	ep := newEndpoint(t, http.StatusCreated, `{"status":"stored"}`)
	enc := encoder.FromAsync(func(_ image.Image, onSuccess func(string), _ func()) {
		onSuccess("")
	})
	o := newOrchestrator(t, Config{Enabled: true, BaseURL: ep.URL, Dataset: "ds1"}, enc)

	var calls atomic.Int32
	a := o.Capture(context.Background(), testFrame(), testDets, func(upload.Result) { calls.Add(1) })

	res, err := wait(t, a)
	if err != nil {
		t.Fatalf("attempt error: %v", err)
	}
	if res.String("status") != "stored" {
		t.Errorf("result = %v", res)
	}
	if ep.calls.Load() != 1 {
		t.Errorf("http calls = %d, want 1", ep.calls.Load())
	}
	if calls.Load() != 1 {
		t.Errorf("callback invoked %d times, want 1", calls.Load())
	}
	want := `{"dataset":"ds1","image_b64":"","label":"2 0.1 0.2 0.3 0.4\n"}`
	if body := ep.lastBody(); body != want {
		t.Errorf("body = %s, want %s", body, want)
	}
}

func TestCaptureTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	o := newOrchestrator(t, Config{Enabled: true, BaseURL: url, Dataset: "ds1"}, encoder.NewMock("AAAA"))

	var calls atomic.Int32
	a := o.Capture(context.Background(), testFrame(), nil, func(upload.Result) { calls.Add(1) })

	_, err := wait(t, a)
	var te *upload.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *upload.TransportError", err)
	}
	if calls.Load() != 0 {
		t.Error("callback must not run on transport failure")
	}
}

func TestCaptureEmptyDetections(t *testing.T) {
	ep := newEndpoint(t, http.StatusOK, `{"status":"stored"}`)
	o := newOrchestrator(t, Config{Enabled: true, BaseURL: ep.URL, Dataset: "ds1"}, encoder.NewMock("AAAA"))

	if _, err := wait(t, o.Capture(context.Background(), testFrame(), nil, nil)); err != nil {
		t.Fatalf("attempt error: %v", err)
	}
	want := `{"dataset":"ds1","image_b64":"AAAA","label":""}`
	if body := ep.lastBody(); body != want {
		t.Errorf("body = %s, want %s", body, want)
	}
}

func TestTouchArmsTrigger(t *testing.T) {
	o := newOrchestrator(t, Config{}, encoder.NewMock(""))

	for _, phase := range []touch.Phase{touch.Moved, touch.Stationary, touch.Ended, touch.Canceled} {
		o.OnTouchEvent(touch.Event{Phase: phase})
		if o.IsCapturing() {
			t.Fatalf("phase %s armed the trigger", phase)
		}
	}

	o.OnTouchEvent(touch.Event{Phase: touch.Began})
	o.OnTouchEvent(touch.Event{Phase: touch.Began})
	o.OnTouchEvent(touch.Event{Phase: touch.Ended})
	if !o.IsCapturing() {
		t.Fatal("began should arm the trigger")
	}
	if o.CaptureCount() != 0 {
		t.Errorf("touches changed the count to %d", o.CaptureCount())
	}
}

func TestCaptureResetsTriggerImmediately(t *testing.T) {
	ep := newEndpoint(t, http.StatusCreated, `{}`)
	enc := encoder.NewMock("AAAA")
	enc.Block = make(chan struct{})
	o := newOrchestrator(t, Config{Enabled: true, BaseURL: ep.URL, Dataset: "ds1"}, enc)

	o.OnTouchEvent(touch.Tap(1))
	a := o.Capture(context.Background(), testFrame(), testDets, nil)

	if o.IsCapturing() {
		t.Error("trigger still armed while attempt is in flight")
	}

	// A touch during the in-flight attempt re-arms independently.
	o.OnTouchEvent(touch.Tap(2))
	if !o.IsCapturing() {
		t.Error("touch during flight should re-arm")
	}

	close(enc.Block)
	if _, err := wait(t, a); err != nil {
		t.Fatalf("attempt error: %v", err)
	}
}

func TestConcurrentCapturesCountEach(t *testing.T) {
	ep := newEndpoint(t, http.StatusCreated, `{"ok":true}`)
	o := newOrchestrator(t, Config{Enabled: true, BaseURL: ep.URL, Dataset: "ds1"}, encoder.NewMock("AAAA"))

	const n = 16
	var callbacks atomic.Int32
	attempts := make([]*Attempt, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempts[i] = o.Capture(context.Background(), testFrame(), testDets, func(upload.Result) { callbacks.Add(1) })
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, a := range attempts {
		if _, err := wait(t, a); err != nil {
			t.Fatalf("attempt error: %v", err)
		}
		seen[a.Seq()] = true
	}
	if o.CaptureCount() != n || len(seen) != n {
		t.Errorf("count = %d, distinct seqs = %d, want %d", o.CaptureCount(), len(seen), n)
	}
	if callbacks.Load() != n {
		t.Errorf("callbacks = %d, want %d", callbacks.Load(), n)
	}
}

func TestStateHook(t *testing.T) {
	var mu sync.Mutex
	var states []State
	hook := func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}

	uploader := uploaderFunc(func(context.Context, *upload.Request) (upload.Result, error) {
		return upload.Result{}, nil
	})
	o := newOrchestrator(t, Config{Enabled: true, BaseURL: "http://localhost", Dataset: "ds"}, encoder.NewMock("A"),
		WithUploader(uploader), WithStateHook(hook))

	o.OnTouchEvent(touch.Tap(1))
	wait(t, o.Capture(context.Background(), testFrame(), nil, nil))

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 {
		t.Fatalf("got %d state notifications, want 2", len(states))
	}
	if !states[0].Capturing || states[0].Count != 0 {
		t.Errorf("armed state = %+v", states[0])
	}
	if states[1].Capturing || states[1].Count != 1 {
		t.Errorf("capturing state = %+v", states[1])
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		enc  encoder.Encoder
		want error
	}{
		{"disabled needs nothing", Config{}, encoder.NewMock(""), nil},
		{"enabled ok", Config{Enabled: true, BaseURL: "https://api.example.com", Dataset: "ds1"}, encoder.NewMock(""), nil},
		{"bad scheme", Config{Enabled: true, BaseURL: "ftp://x", Dataset: "ds1"}, encoder.NewMock(""), ErrInvalidBaseURL},
		{"missing url", Config{Enabled: true, Dataset: "ds1"}, encoder.NewMock(""), ErrInvalidBaseURL},
		{"bad dataset", Config{Enabled: true, BaseURL: "https://api.example.com", Dataset: "a/b"}, encoder.NewMock(""), ErrInvalidDataset},
		{"nil encoder", Config{}, nil, ErrNoEncoder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.enc)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() err = %v, want %v", err, tt.want)
			}
		})
	}
}

type uploaderFunc func(context.Context, *upload.Request) (upload.Result, error)

func (f uploaderFunc) Upload(ctx context.Context, req *upload.Request) (upload.Result, error) {
	return f(ctx, req)
}
