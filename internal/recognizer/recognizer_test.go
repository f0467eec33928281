package recognizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"acrscan/internal/acrcloud"
	"acrscan/internal/match"
	"acrscan/internal/probecache"
	"acrscan/internal/retry"
	"acrscan/internal/services"
)

type fakeExtractor struct {
	windows int
	err     error
}

func (f *fakeExtractor) DurationMs(context.Context, string) (int64, error) { return 30000, nil }

func (f *fakeExtractor) Window(context.Context, string, int64, int64) ([]byte, error) {
	f.windows++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("RIFF....WAVE"), nil
}

type fakeIdentifier struct {
	replies []string
	errs    []error
	calls   int
}

func (f *fakeIdentifier) Identify(context.Context, []byte) (acrcloud.Response, []byte, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return acrcloud.Response{}, nil, f.errs[i]
	}
	raw := []byte(f.replies[min(i, len(f.replies)-1)])
	resp, err := acrcloud.Decode(raw)
	return resp, raw, err
}

const hit = `{"status":{"msg":"Success","code":0},"metadata":{
  "music":[{"acrid":"m1","title":"Hello","score":95}],
  "custom_files":[{"acrid":"c1","title":"Jingle","score":80}]}}`

func fastPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func sourceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mix.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestProbeBuildsEventPerKind(t *testing.T) {
	r := NewACRCloud(&fakeIdentifier{replies: []string{hit}}, &fakeExtractor{}, fastPolicy())
	probe, err := r.Probe(context.Background(), "mix.mp3", 10000, 10000)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	music, custom := probe.Events[match.KindMusic], probe.Events[match.KindCustom]
	if music.Primary == nil || music.Primary.CanonicalID != "m1" || music.OffsetMs != 10000 {
		t.Fatalf("music event = %+v", music)
	}
	if custom.Primary == nil || custom.Primary.CanonicalID != "c1" {
		t.Fatalf("custom event = %+v", custom)
	}
}

func TestProbeHonoursKinds(t *testing.T) {
	r := NewACRCloud(&fakeIdentifier{replies: []string{hit}}, &fakeExtractor{}, fastPolicy(), WithKinds(KindsFor("music")...))
	probe, err := r.Probe(context.Background(), "mix.mp3", 0, 10000)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(probe.Events) != 1 {
		t.Fatalf("events = %+v", probe.Events)
	}
	if _, ok := probe.Events[match.KindMusic]; !ok {
		t.Fatal("music event missing")
	}
}

func TestProbeRetriesTransientCodes(t *testing.T) {
	busy := `{"status":{"msg":"QPS limit","code":3015}}`
	ident := &fakeIdentifier{replies: []string{busy, hit}}
	r := NewACRCloud(ident, &fakeExtractor{}, fastPolicy())
	if _, err := r.Probe(context.Background(), "mix.mp3", 0, 10000); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if ident.calls != 2 {
		t.Fatalf("calls = %d, want 2", ident.calls)
	}
}

func TestProbeReportsExhaustedRetries(t *testing.T) {
	transient := services.Wrap(services.ErrTransient, "acrcloud", "identify", "http 503", nil)
	ident := &fakeIdentifier{replies: []string{hit}, errs: []error{transient, transient, transient}}
	r := NewACRCloud(ident, &fakeExtractor{}, fastPolicy())
	_, err := r.Probe(context.Background(), "mix.mp3", 0, 10000)
	if !services.Retryable(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if ident.calls != 3 {
		t.Fatalf("calls = %d, want 3", ident.calls)
	}
}

func TestProbePropagatesDecodeFailure(t *testing.T) {
	decodeErr := services.Wrap(services.ErrDecode, "media", "extract window", "bad frame", nil)
	ident := &fakeIdentifier{replies: []string{hit}}
	r := NewACRCloud(ident, &fakeExtractor{err: decodeErr}, fastPolicy())
	_, err := r.Probe(context.Background(), "mix.mp3", 0, 10000)
	if !services.AbortsFile(err) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if ident.calls != 0 {
		t.Fatal("identify called for undecodable window")
	}
}

func TestProbeStopsOnRejectedCredentials(t *testing.T) {
	ident := &fakeIdentifier{replies: []string{`{"status":{"msg":"invalid signature","code":3014}}`}}
	r := NewACRCloud(ident, &fakeExtractor{}, fastPolicy())
	_, err := r.Probe(context.Background(), "mix.mp3", 0, 10000)
	if !services.AbortsRun(err) || ident.calls != 1 {
		t.Fatalf("expected one configuration failure, got %v after %d calls", err, ident.calls)
	}
}

func TestProbeUsesCache(t *testing.T) {
	cache, err := probecache.OpenInMemory(nil)
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer cache.Close()
	source := sourceFile(t)

	ident := &fakeIdentifier{replies: []string{hit}}
	extractor := &fakeExtractor{}
	r := NewACRCloud(ident, extractor, fastPolicy(), WithCache(cache))

	first, err := r.Probe(context.Background(), source, 0, 10000)
	if err != nil || first.Cached {
		t.Fatalf("first probe cached=%v err=%v", first.Cached, err)
	}
	second, err := r.Probe(context.Background(), source, 0, 10000)
	if err != nil || !second.Cached {
		t.Fatalf("second probe cached=%v err=%v", second.Cached, err)
	}
	if ident.calls != 1 || extractor.windows != 1 {
		t.Fatalf("calls=%d windows=%d, want 1 each", ident.calls, extractor.windows)
	}
	if second.Events[match.KindMusic].Primary.CanonicalID != "m1" {
		t.Fatalf("cached event = %+v", second.Events[match.KindMusic])
	}
}

func TestCachedRepliesAreScopedToAccount(t *testing.T) {
	cache, err := probecache.OpenInMemory(nil)
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer cache.Close()
	source := sourceFile(t)

	ident := &fakeIdentifier{replies: []string{hit}}
	first := NewACRCloud(ident, &fakeExtractor{}, fastPolicy(), WithCache(cache),
		WithCacheNamespace(CacheNamespace("identify-eu-west-1.acrcloud.com", "key-a")))
	if _, err := first.Probe(context.Background(), source, 0, 10000); err != nil {
		t.Fatalf("first account: %v", err)
	}

	second := NewACRCloud(ident, &fakeExtractor{}, fastPolicy(), WithCache(cache),
		WithCacheNamespace(CacheNamespace("identify-eu-west-1.acrcloud.com", "key-b")))
	got, err := second.Probe(context.Background(), source, 0, 10000)
	if err != nil {
		t.Fatalf("second account: %v", err)
	}
	if got.Cached || ident.calls != 2 {
		t.Fatalf("cached=%v calls=%d, want a fresh identify for another account", got.Cached, ident.calls)
	}

	again := NewACRCloud(ident, &fakeExtractor{}, fastPolicy(), WithCache(cache),
		WithCacheNamespace(CacheNamespace(" Identify-EU-West-1.acrcloud.com", "key-a")))
	got, err = again.Probe(context.Background(), source, 0, 10000)
	if err != nil || !got.Cached {
		t.Fatalf("same account cached=%v err=%v", got.Cached, err)
	}
}

func TestProbeSkipsCachingServiceErrors(t *testing.T) {
	cache, err := probecache.OpenInMemory(nil)
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer cache.Close()
	source := sourceFile(t)

	ident := &fakeIdentifier{replies: []string{`{"status":{"msg":"Can't generate fingerprint","code":2004}}`}}
	r := NewACRCloud(ident, &fakeExtractor{}, fastPolicy(), WithCache(cache))
	probe, err := r.Probe(context.Background(), source, 0, 10000)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if probe.Events[match.KindMusic].Status != match.StatusOther {
		t.Fatalf("status = %v", probe.Events[match.KindMusic].Status)
	}
	if n, _ := cache.Count(); n != 0 {
		t.Fatalf("cache holds %d entries, want 0", n)
	}
}

func TestKindsFor(t *testing.T) {
	if got := KindsFor("custom"); len(got) != 1 || got[0] != match.KindCustom {
		t.Fatalf("KindsFor(custom) = %v", got)
	}
	if got := KindsFor("both"); len(got) != 2 {
		t.Fatalf("KindsFor(both) = %v", got)
	}
}

func TestProbeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewACRCloud(&fakeIdentifier{replies: []string{hit}}, &fakeExtractor{}, fastPolicy())
	if _, err := r.Probe(ctx, "mix.mp3", 0, 10000); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
