package preview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"promptmaster/internal/domain"
	"promptmaster/internal/providers/image"
	"promptmaster/internal/providers/video"
)

type fakeImages struct {
	handle domain.MediaHandle
	err    error
	got    image.GenerateRequest
}

func (f *fakeImages) Generate(ctx context.Context, req image.GenerateRequest) (domain.MediaHandle, error) {
	f.got = req
	return f.handle, f.err
}

// fakeVideos reports done flags from script: the first entry answers
// Submit, the rest answer successive Polls.
type fakeVideos struct {
	script      []bool
	uri         string
	errMessage  string
	downloadErr error

	submits   []video.SubmitRequest
	polls     int
	downloads []string
}

func (f *fakeVideos) op(i int) *video.Operation {
	done := f.script[len(f.script)-1]
	if i < len(f.script) {
		done = f.script[i]
	}
	op := &video.Operation{Name: "operations/test", Done: done}
	if done {
		op.URI = f.uri
		op.ErrMessage = f.errMessage
	}
	return op
}

func (f *fakeVideos) Submit(ctx context.Context, req video.SubmitRequest) (*video.Operation, error) {
	f.submits = append(f.submits, req)
	return f.op(0), nil
}

func (f *fakeVideos) Poll(ctx context.Context, op *video.Operation, apiKey string) (*video.Operation, error) {
	f.polls++
	return f.op(f.polls), nil
}

func (f *fakeVideos) Download(ctx context.Context, uri, apiKey string) (video.Media, error) {
	f.downloads = append(f.downloads, uri+"|"+apiKey)
	if f.downloadErr != nil {
		return video.Media{}, f.downloadErr
	}
	return video.Media{Data: []byte("mp4"), MIMEType: "video/mp4"}, nil
}

type fakeGate struct {
	selected bool
	err      error
	opened   int
}

func (g *fakeGate) HasSelectedKey(ctx context.Context) (bool, error) { return g.selected, g.err }

func (g *fakeGate) OpenSelectKey(ctx context.Context) error {
	g.opened++
	return nil
}

type staticKey string

func (k staticKey) APIKey(ctx context.Context) (string, error) { return string(k), nil }

type countingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *countingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

type sinkFunc func(ctx context.Context, data []byte, mime string) (domain.MediaHandle, error)

func (f sinkFunc) Store(ctx context.Context, data []byte, mime string) (domain.MediaHandle, error) {
	return f(ctx, data, mime)
}

type harness struct {
	images  *fakeImages
	videos  *fakeVideos
	gate    *fakeGate
	sleeper *countingSleeper
	states  []State
	wf      *Workflow
}

func newHarness(t *testing.T, script ...bool) *harness {
	t.Helper()
	h := &harness{
		images:  &fakeImages{handle: domain.MediaHandle{URL: "data:image/png;base64,AA==", MIMEType: "image/png", Kind: domain.MediaImage}},
		videos:  &fakeVideos{script: script, uri: "https://files.example/v.mp4"},
		gate:    &fakeGate{selected: true},
		sleeper: &countingSleeper{},
	}
	wf, err := NewWorkflow(Options{
		Images:      h.images,
		Videos:      h.videos,
		Gate:        h.gate,
		Credentials: staticKey("paid-key"),
		Sleep:       h.sleeper.sleep,
		MaxPolls:    5,
		Sink: sinkFunc(func(ctx context.Context, data []byte, mime string) (domain.MediaHandle, error) {
			return domain.MediaHandle{URL: "http://localhost/media/v.mp4"}, nil
		}),
		Observer: ObserverFunc(func(ctx context.Context, tr Transition) {
			h.states = append(h.states, tr.To)
		}),
	})
	if err != nil {
		t.Fatalf("NewWorkflow returned error: %v", err)
	}
	h.wf = wf
	return h
}

func videoRequest() Request {
	return Request{Prompt: "a fox in snow", MediaKind: domain.MediaVideo, AspectRatio: domain.RatioVertical}
}

func TestPollWaitsOncePerPendingOperation(t *testing.T) {
	tests := []struct {
		name   string
		script []bool
		waits  int
	}{
		{name: "false false true", script: []bool{false, false, true}, waits: 2},
		{name: "initially done", script: []bool{true}, waits: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.script...)
			out, err := h.wf.Acquire(context.Background(), videoRequest())
			if err != nil {
				t.Fatalf("Acquire returned error: %v", err)
			}
			if got := len(h.sleeper.waits); got != tc.waits {
				t.Fatalf("waits = %d, want %d", got, tc.waits)
			}
			for _, d := range h.sleeper.waits {
				if d != DefaultPollInterval {
					t.Fatalf("wait = %s, want %s", d, DefaultPollInterval)
				}
			}
			if out.Handle.Kind != domain.MediaVideo || out.Handle.MIMEType != "video/mp4" {
				t.Fatalf("unexpected handle: %+v", out.Handle)
			}
		})
	}
}

func TestVideoHappyPathTransitions(t *testing.T) {
	h := newHarness(t, false, true)
	if _, err := h.wf.Acquire(context.Background(), videoRequest()); err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	want := []State{StateCredentialCheck, StateJobSubmitted, StatePolling, StateCompleted, StateDownloading, StateReady}
	if len(h.states) != len(want) {
		t.Fatalf("states = %v, want %v", h.states, want)
	}
	for i := range want {
		if h.states[i] != want[i] {
			t.Fatalf("states = %v, want %v", h.states, want)
		}
	}
	if got := h.videos.submits[0]; got.AspectRatio != "9:16" || got.APIKey != "paid-key" {
		t.Fatalf("unexpected submit: %+v", got)
	}
	if h.videos.downloads[0] != "https://files.example/v.mp4|paid-key" {
		t.Fatalf("download = %q", h.videos.downloads[0])
	}
}

func TestDeclinedConfirmationSubmitsNothing(t *testing.T) {
	h := newHarness(t, true)
	h.gate.selected = false
	wf := h.wf.With(Overrides{Confirmer: ConfirmFunc(func(ctx context.Context, msg string) (bool, error) {
		if msg == "" {
			t.Error("empty confirmation message")
		}
		return false, nil
	})})

	out, err := wf.Acquire(context.Background(), videoRequest())
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if !out.Cancelled || !out.Handle.IsZero() {
		t.Fatalf("outcome = %+v, want cancelled", out)
	}
	if len(h.videos.submits) != 0 || h.gate.opened != 0 {
		t.Fatalf("submits = %d opened = %d, want none", len(h.videos.submits), h.gate.opened)
	}
	if last := h.states[len(h.states)-1]; last != StateAborted {
		t.Fatalf("last state = %s, want %s", last, StateAborted)
	}
}

func TestAcceptedConfirmationOpensSelector(t *testing.T) {
	h := newHarness(t, true)
	h.gate.selected = false
	wf := h.wf.With(Overrides{Confirmer: ConfirmFunc(func(ctx context.Context, msg string) (bool, error) { return true, nil })})
	if _, err := wf.Acquire(context.Background(), videoRequest()); err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if h.gate.opened != 1 || len(h.videos.submits) != 1 {
		t.Fatalf("opened = %d submits = %d, want 1 and 1", h.gate.opened, len(h.videos.submits))
	}
}

func TestMissingConfirmerCancels(t *testing.T) {
	h := newHarness(t, true)
	h.gate.selected = false
	out, err := h.wf.Acquire(context.Background(), videoRequest())
	if err != nil || !out.Cancelled {
		t.Fatalf("Acquire = %+v, %v; want cancelled", out, err)
	}
}

func TestVideoFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		script  []bool
		wantErr error
	}{
		{
			name:    "gate error",
			script:  []bool{true},
			setup:   func(h *harness) { h.gate.err = errors.New("db down") },
			wantErr: domain.ErrCredentialCheck,
		},
		{
			name:    "poll bound",
			script:  []bool{false},
			wantErr: domain.ErrVideoPollTimeout,
		},
		{
			name:    "missing uri",
			script:  []bool{true},
			setup:   func(h *harness) { h.videos.uri = "" },
			wantErr: domain.ErrVideoGenerationFailed,
		},
		{
			name:   "remote error",
			script: []bool{false, true},
			setup: func(h *harness) {
				h.videos.uri = ""
				h.videos.errMessage = "safety filter"
			},
			wantErr: domain.ErrVideoGenerationFailed,
		},
		{
			name:    "download failure",
			script:  []bool{true},
			setup:   func(h *harness) { h.videos.downloadErr = domain.ErrVideoDownloadFailed },
			wantErr: domain.ErrVideoDownloadFailed,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.script...)
			if tc.setup != nil {
				tc.setup(h)
			}
			_, err := h.wf.Acquire(context.Background(), videoRequest())
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Acquire error = %v, want %v", err, tc.wantErr)
			}
			if last := h.states[len(h.states)-1]; last != StateFailed {
				t.Fatalf("last state = %s, want %s", last, StateFailed)
			}
		})
	}
}

func TestPollBoundCountsPolls(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.wf.Acquire(context.Background(), videoRequest())
	if !errors.Is(err, domain.ErrVideoPollTimeout) {
		t.Fatalf("Acquire error = %v, want ErrVideoPollTimeout", err)
	}
	if h.videos.polls != 5 || len(h.sleeper.waits) != 5 {
		t.Fatalf("polls = %d waits = %d, want 5 and 5", h.videos.polls, len(h.sleeper.waits))
	}
}

func TestCancelledContextStopsPolling(t *testing.T) {
	h := newHarness(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.wf.Acquire(ctx, videoRequest()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire error = %v, want context.Canceled", err)
	}
	if h.videos.polls != 0 {
		t.Fatalf("polls = %d, want 0", h.videos.polls)
	}
}

func TestImageBranch(t *testing.T) {
	h := newHarness(t, true)
	out, err := h.wf.Acquire(context.Background(), Request{Prompt: "p", MediaKind: domain.MediaImage, AspectRatio: domain.RatioClassic})
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if !out.Handle.IsDataURI() || h.images.got.AspectRatio != domain.RatioClassic {
		t.Fatalf("unexpected image outcome %+v (request %+v)", out, h.images.got)
	}
	if len(h.states) != 2 || h.states[0] != StateGenerating || h.states[1] != StateReady {
		t.Fatalf("states = %v", h.states)
	}

	h.images.err = domain.ErrNoImageProduced
	if _, err := h.wf.Acquire(context.Background(), Request{Prompt: "p", MediaKind: domain.MediaImage, AspectRatio: domain.RatioSquare}); !errors.Is(err, domain.ErrNoImageProduced) {
		t.Fatalf("Acquire error = %v, want ErrNoImageProduced", err)
	}
}

func TestAcquireRejectsBadRequests(t *testing.T) {
	h := newHarness(t, true)
	for _, req := range []Request{
		{Prompt: " ", MediaKind: domain.MediaImage},
		{Prompt: "p", MediaKind: "AUDIO"},
	} {
		if _, err := h.wf.Acquire(context.Background(), req); !errors.Is(err, domain.ErrInvalidSettings) {
			t.Fatalf("Acquire(%+v) error = %v, want ErrInvalidSettings", req, err)
		}
	}
}

func TestNilSinkFallsBackToDataURI(t *testing.T) {
	h := newHarness(t, true)
	h.wf.sink = nil
	out, err := h.wf.Acquire(context.Background(), videoRequest())
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if out.Handle.URL != "data:video/mp4;base64,bXA0" {
		t.Fatalf("URL = %q", out.Handle.URL)
	}
}
