package video

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"promptmaster/internal/domain"
	"promptmaster/internal/providers/gemini"
)

type fakeVeo struct {
	srv        *httptest.Server
	submitBody string
	polls      atomic.Int32
	readyAfter int32
	downloadOK bool
	gotKey     string
}

func newFakeVeo(t *testing.T, readyAfter int32) *fakeVeo {
	t.Helper()
	f := &fakeVeo{readyAfter: readyAfter, downloadOK: true}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, ":predictLongRunning"):
			raw, _ := io.ReadAll(r.Body)
			f.submitBody = string(raw)
			_, _ = io.WriteString(w, `{"name":"operations/abc","done":false}`)
		case strings.HasSuffix(r.URL.Path, "/operations/abc"):
			if f.polls.Add(1) < f.readyAfter {
				_, _ = io.WriteString(w, `{"name":"operations/abc","done":false}`)
				return
			}
			_, _ = io.WriteString(w, `{"name":"operations/abc","done":true,"response":{"generateVideoResponse":{"generatedSamples":[{"video":{"uri":"`+f.srv.URL+`/files/v1:download?alt=media"}}]}}}`)
		case strings.HasPrefix(r.URL.Path, "/files/"):
			f.gotKey = r.URL.Query().Get("key")
			if !f.downloadOK {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "video/mp4")
			_, _ = io.WriteString(w, "mp4-bytes")
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeVeo) backend(t *testing.T) *VeoBackend {
	t.Helper()
	b, err := NewVeoBackend(VeoOptions{Factory: gemini.NewFactory(gemini.Options{APIKey: "default-key", BaseURL: f.srv.URL, APIVersion: "v1beta"})})
	if err != nil {
		t.Fatalf("NewVeoBackend returned error: %v", err)
	}
	return b
}

func TestVeoSubmitPollDownload(t *testing.T) {
	fake := newFakeVeo(t, 2)
	b := fake.backend(t)
	ctx := context.Background()

	op, err := b.Submit(ctx, SubmitRequest{Prompt: "a fox", AspectRatio: AspectRatioFor(domain.RatioVertical), APIKey: "picked"})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if op.Name != "operations/abc" || op.Done {
		t.Fatalf("unexpected operation: %+v", op)
	}
	for _, fragment := range []string{`"sampleCount":1`, `"resolution":"720p"`, `"aspectRatio":"9:16"`, `"prompt":"a fox"`} {
		if !strings.Contains(fake.submitBody, fragment) {
			t.Fatalf("submit body missing %s: %s", fragment, fake.submitBody)
		}
	}

	op, err = b.Poll(ctx, op, "picked")
	if err != nil || op.Done {
		t.Fatalf("first poll = %+v, %v; want pending", op, err)
	}
	op, err = b.Poll(ctx, op, "picked")
	if err != nil || !op.Done || op.URI == "" {
		t.Fatalf("second poll = %+v, %v; want done with uri", op, err)
	}

	media, err := b.Download(ctx, op.URI, "picked")
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if string(media.Data) != "mp4-bytes" || media.MIMEType != "video/mp4" {
		t.Fatalf("unexpected media: %q %q", media.Data, media.MIMEType)
	}
	if fake.gotKey != "picked" {
		t.Fatalf("download key = %q, want picked", fake.gotKey)
	}
}

func TestVeoDownloadRejected(t *testing.T) {
	fake := newFakeVeo(t, 1)
	fake.downloadOK = false
	b := fake.backend(t)
	if _, err := b.Download(context.Background(), fake.srv.URL+"/files/x", "k"); !errors.Is(err, domain.ErrVideoDownloadFailed) {
		t.Fatalf("Download error = %v, want ErrVideoDownloadFailed", err)
	}
}

func TestVeoDownloadSizeLimit(t *testing.T) {
	fake := newFakeVeo(t, 1)
	b := fake.backend(t)
	uri := fake.srv.URL + "/files/x"

	b.maxBytes = int64(len("mp4-bytes"))
	media, err := b.Download(context.Background(), uri, "k")
	if err != nil || string(media.Data) != "mp4-bytes" {
		t.Fatalf("Download at limit = %q, %v", media.Data, err)
	}

	b.maxBytes = 4
	media, err = b.Download(context.Background(), uri, "k")
	if !errors.Is(err, domain.ErrVideoDownloadFailed) {
		t.Fatalf("Download error = %v, want ErrVideoDownloadFailed", err)
	}
	if media.Data != nil {
		t.Fatalf("oversized download returned %d bytes", len(media.Data))
	}
}

func TestVeoPollRequiresName(t *testing.T) {
	fake := newFakeVeo(t, 1)
	b := fake.backend(t)
	if _, err := b.Poll(context.Background(), &Operation{}, "k"); !errors.Is(err, domain.ErrVideoGenerationFailed) {
		t.Fatalf("Poll error = %v, want ErrVideoGenerationFailed", err)
	}
}

func TestAspectRatioFor(t *testing.T) {
	tests := map[domain.AspectRatio]string{
		domain.RatioSquare:    "16:9",
		domain.RatioLandscape: "16:9",
		domain.RatioClassic:   "16:9",
		domain.RatioPortrait:  "9:16",
		domain.RatioVertical:  "9:16",
	}
	for in, want := range tests {
		if got := AspectRatioFor(in); got != want {
			t.Errorf("AspectRatioFor(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestWithKeyKeepsExistingQuery(t *testing.T) {
	got, err := withKey("https://example.com/v1/files/a:download?alt=media", "secret")
	if err != nil {
		t.Fatalf("withKey returned error: %v", err)
	}
	if !strings.Contains(got, "alt=media") || !strings.Contains(got, "key=secret") {
		t.Fatalf("withKey = %q", got)
	}
}
