package studio

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"promptmaster/internal/domain"
	"promptmaster/internal/i18n"
	"promptmaster/internal/preview"
)

type stubRefiner struct {
	result domain.RefinedResult
	err    error
	calls  int
}

func (r *stubRefiner) Refine(ctx context.Context, s domain.GenerationSettings) (domain.RefinedResult, error) {
	r.calls++
	return r.result, r.err
}

type stubPreviewer struct {
	out  preview.Outcome
	err  error
	reqs []preview.Request
}

func (p *stubPreviewer) Acquire(ctx context.Context, req preview.Request) (preview.Outcome, error) {
	p.reqs = append(p.reqs, req)
	return p.out, p.err
}

func newTestSession(t *testing.T, r *stubRefiner, p *stubPreviewer) *Session {
	t.Helper()
	m, err := NewManager(ManagerOptions{Refiner: r, Previewer: p})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	settings := domain.DefaultSettings()
	settings.RawIdea = "a lighthouse in a storm"
	return m.Create(settings, "")
}

func refined() domain.RefinedResult {
	return domain.RefinedResult{Title: "Storm", Prompt: "A lighthouse in a violent storm", NegativePrompt: "blurry", Explanation: "..."}
}

func TestRefineStoresResultAndResetsPreview(t *testing.T) {
	r := &stubRefiner{result: refined()}
	p := &stubPreviewer{out: preview.Outcome{Handle: domain.MediaHandle{URL: "data:image/png;base64,AA==", Kind: domain.MediaImage}}}
	s := newTestSession(t, r, p)

	if _, err := s.Refine(context.Background()); err != nil {
		t.Fatalf("Refine returned error: %v", err)
	}
	if _, err := s.GeneratePreview(context.Background()); err != nil {
		t.Fatalf("GeneratePreview returned error: %v", err)
	}
	if s.Snapshot().Preview == nil {
		t.Fatal("preview not stored")
	}
	if _, err := s.Refine(context.Background()); err != nil {
		t.Fatalf("Refine returned error: %v", err)
	}
	snap := s.Snapshot()
	if snap.Preview != nil {
		t.Fatalf("preview not reset by refine: %+v", snap.Preview)
	}
	if snap.Result == nil || *snap.Result != refined() {
		t.Fatalf("result = %+v", snap.Result)
	}
}

func TestRefineFailureKeepsPreviousResult(t *testing.T) {
	r := &stubRefiner{result: refined()}
	s := newTestSession(t, r, &stubPreviewer{})
	if _, err := s.Refine(context.Background()); err != nil {
		t.Fatalf("Refine returned error: %v", err)
	}

	r.err = domain.ErrRefinementFailure
	r.result = domain.RefinedResult{}
	if _, err := s.Refine(context.Background()); !errors.Is(err, domain.ErrRefinementFailure) {
		t.Fatalf("Refine error = %v, want ErrRefinementFailure", err)
	}
	snap := s.Snapshot()
	if snap.Result == nil || snap.Result.Title != "Storm" {
		t.Fatalf("previous result lost: %+v", snap.Result)
	}
	if snap.Error != "Có lỗi xảy ra khi kết nối với AI. Vui lòng thử lại." {
		t.Fatalf("error banner = %q", snap.Error)
	}

	s.DismissError()
	if s.Snapshot().Error != "" {
		t.Fatal("DismissError did not clear the banner")
	}
}

func TestRefineRejectsInvalidSettings(t *testing.T) {
	r := &stubRefiner{result: refined()}
	s := newTestSession(t, r, &stubPreviewer{})
	s.UpdateSettings(func(gs *domain.GenerationSettings) { gs.RawIdea = "" })
	if _, err := s.Refine(context.Background()); !errors.Is(err, domain.ErrInvalidSettings) {
		t.Fatalf("Refine error = %v, want ErrInvalidSettings", err)
	}
	if r.calls != 0 {
		t.Fatalf("refiner called %d times", r.calls)
	}
}

func TestPreviewRequiresResult(t *testing.T) {
	s := newTestSession(t, &stubRefiner{}, &stubPreviewer{})
	if _, err := s.GeneratePreview(context.Background()); !errors.Is(err, domain.ErrNoRefinedResult) {
		t.Fatalf("GeneratePreview error = %v, want ErrNoRefinedResult", err)
	}
}

func TestPreviewFailureMessage(t *testing.T) {
	p := &stubPreviewer{err: domain.ErrNoImageProduced}
	s := newTestSession(t, &stubRefiner{result: refined()}, p)
	if _, err := s.Refine(context.Background()); err != nil {
		t.Fatalf("Refine returned error: %v", err)
	}
	if _, err := s.GeneratePreview(context.Background()); !errors.Is(err, domain.ErrNoImageProduced) {
		t.Fatalf("GeneratePreview error = %v", err)
	}
	snap := s.Snapshot()
	if snap.Error != "Không thể tạo bản xem trước. No image generated" {
		t.Fatalf("error banner = %q", snap.Error)
	}
	if snap.Previewing {
		t.Fatal("session still previewing")
	}
	if p.reqs[0].Prompt != refined().Prompt || p.reqs[0].Locale != i18n.LocaleVietnamese {
		t.Fatalf("unexpected request %+v", p.reqs[0])
	}
}

func TestCancelledPreviewLeavesNoError(t *testing.T) {
	p := &stubPreviewer{out: preview.Outcome{Cancelled: true}}
	s := newTestSession(t, &stubRefiner{result: refined()}, p)
	s.SetLocale("en-US")
	if _, err := s.Refine(context.Background()); err != nil {
		t.Fatalf("Refine returned error: %v", err)
	}
	out, err := s.GeneratePreview(context.Background())
	if err != nil || !out.Cancelled {
		t.Fatalf("GeneratePreview = %+v, %v", out, err)
	}
	snap := s.Snapshot()
	if snap.Error != "" || snap.Preview != nil || snap.Previewing {
		t.Fatalf("unexpected snapshot after cancel: %+v", snap)
	}
}

func TestStalePreviewIsDropped(t *testing.T) {
	s := newTestSession(t, &stubRefiner{result: refined()}, &stubPreviewer{})
	if _, err := s.Refine(context.Background()); err != nil {
		t.Fatalf("Refine returned error: %v", err)
	}
	old, err := s.BeginPreview()
	if err != nil {
		t.Fatalf("BeginPreview returned error: %v", err)
	}
	if _, err := s.BeginPreview(); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("second BeginPreview error = %v, want ErrBusy", err)
	}
	if !s.AbandonPreview() {
		t.Fatal("AbandonPreview returned false")
	}
	current, err := s.BeginPreview()
	if err != nil {
		t.Fatalf("BeginPreview returned error: %v", err)
	}
	if current.Generation <= old.Generation {
		t.Fatalf("generation did not advance: %d -> %d", old.Generation, current.Generation)
	}

	late := preview.Outcome{Handle: domain.MediaHandle{URL: "http://old"}}
	if s.CompletePreview(old, late, nil) {
		t.Fatal("stale outcome was applied")
	}
	if !s.Snapshot().Previewing {
		t.Fatal("stale completion cleared the busy flag of the newer preview")
	}
	fresh := preview.Outcome{Handle: domain.MediaHandle{URL: "http://new"}}
	if !s.CompletePreview(current, fresh, nil) {
		t.Fatal("current outcome was dropped")
	}
	if got := s.Snapshot().Preview; got == nil || got.URL != "http://new" {
		t.Fatalf("preview = %+v", got)
	}
}

func TestRefineBusyWhilePreviewing(t *testing.T) {
	s := newTestSession(t, &stubRefiner{result: refined()}, &stubPreviewer{})
	if _, err := s.Refine(context.Background()); err != nil {
		t.Fatalf("Refine returned error: %v", err)
	}
	if _, err := s.BeginPreview(); err != nil {
		t.Fatalf("BeginPreview returned error: %v", err)
	}
	if _, err := s.Refine(context.Background()); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("Refine error = %v, want ErrBusy", err)
	}
}

func TestSetStyleResetsSubStyle(t *testing.T) {
	s := newTestSession(t, &stubRefiner{}, &stubPreviewer{})
	got := s.SetStyle(domain.StyleAnime)
	if got.SubStyle != "Studio Ghibli" {
		t.Fatalf("SubStyle = %q, want Studio Ghibli", got.SubStyle)
	}
}

func TestPreviewMessageQuota(t *testing.T) {
	got := PreviewMessage(i18n.LocaleEnglish, domain.ErrQuotaExceeded)
	if !strings.HasPrefix(got, "Could not create the preview.") || !strings.Contains(got, "busy") {
		t.Fatalf("PreviewMessage = %q", got)
	}
}

func TestManagerLifecycle(t *testing.T) {
	m, err := NewManager(ManagerOptions{Refiner: &stubRefiner{}, Previewer: &stubPreviewer{}, DefaultLocale: "en"})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	s := m.Create(domain.DefaultSettings(), "")
	if s.Locale() != i18n.LocaleEnglish {
		t.Fatalf("Locale = %q, want en", s.Locale())
	}
	got, err := m.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get = %p, %v", got, err)
	}
	if _, err := m.Get("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if removed := m.Prune(time.Now().Add(time.Minute)); removed != 1 || m.Len() != 0 {
		t.Fatalf("Prune removed %d, Len %d", removed, m.Len())
	}
	if _, err := NewManager(ManagerOptions{Previewer: &stubPreviewer{}}); err == nil {
		t.Fatal("NewManager without refiner returned nil error")
	}
}
