// Package recognizer turns one window of a media file into window events.
//
// The Recognizer interface is what the scanner consumes; ACRCloud is the
// production implementation built from the ffmpeg window extractor, the
// identify client, the retry policy and an optional probe cache.
package recognizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"acrscan/internal/acrcloud"
	"acrscan/internal/config"
	"acrscan/internal/logging"
	"acrscan/internal/match"
	"acrscan/internal/media"
	"acrscan/internal/probecache"
	"acrscan/internal/retry"
	"acrscan/internal/services"
)

// Probe is the result of recognizing one window: one event per requested kind.
type Probe struct {
	Events map[match.Kind]match.WindowEvent
	Cached bool
}

// Recognizer probes windows of a source file.
type Recognizer interface {
	Probe(ctx context.Context, source string, startMs, lengthMs int64) (Probe, error)
	TotalDurationMs(ctx context.Context, source string) (int64, error)
}

// Identifier submits an audio sample for identification.
type Identifier interface {
	Identify(ctx context.Context, sample []byte) (acrcloud.Response, []byte, error)
}

// Extractor reads durations and cuts windows out of media files.
type Extractor interface {
	DurationMs(ctx context.Context, path string) (int64, error)
	Window(ctx context.Context, source string, startMs, lengthMs int64) ([]byte, error)
}

// Cache stores raw identify replies.
type Cache interface {
	Get(key probecache.Key) ([]byte, bool, error)
	Put(key probecache.Key, value []byte) error
}

// ACRCloud recognizes windows through the ACRCloud identify API.
type ACRCloud struct {
	identifier Identifier
	extractor  Extractor
	policy     retry.Policy
	cache      Cache
	namespace  string
	kinds      []match.Kind
	logger     *slog.Logger
}

// Option customizes the recognizer.
type Option func(*ACRCloud)

// WithCache enables the probe cache.
func WithCache(cache Cache) Option {
	return func(r *ACRCloud) {
		r.cache = cache
	}
}

// WithCacheNamespace scopes cached replies to one ACRCloud account.
func WithCacheNamespace(namespace string) Option {
	return func(r *ACRCloud) {
		r.namespace = namespace
	}
}

// WithKinds restricts the result kinds produced per window.
func WithKinds(kinds ...match.Kind) Option {
	return func(r *ACRCloud) {
		if len(kinds) > 0 {
			r.kinds = append([]match.Kind(nil), kinds...)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *ACRCloud) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewACRCloud wires a recognizer from its collaborators.
func NewACRCloud(identifier Identifier, extractor Extractor, policy retry.Policy, opts ...Option) *ACRCloud {
	r := &ACRCloud{
		identifier: identifier,
		extractor:  extractor,
		policy:     policy,
		kinds:      match.Kinds(),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "recognizer")
	return r
}

// FromConfig builds the production recognizer. cache may be nil.
func FromConfig(cfg *config.Config, cache Cache, logger *slog.Logger) *ACRCloud {
	client := acrcloud.NewClient(acrcloud.Config{
		Host:         cfg.ACRCloud.Host,
		AccessKey:    cfg.ACRCloud.AccessKey,
		AccessSecret: cfg.ACRCloud.AccessSecret,
		Timeout:      cfg.ACRCloudTimeout(),
	})
	opts := []Option{WithKinds(KindsFor(cfg.Scan.ScanType)...), WithLogger(logger)}
	if cache != nil {
		opts = append(opts, WithCache(cache), WithCacheNamespace(CacheNamespace(cfg.ACRCloud.Host, cfg.ACRCloud.AccessKey)))
	}
	return NewACRCloud(client, media.NewTools(cfg.FFmpegBinary(), cfg.FFprobeBinary()), retry.FromConfig(cfg.Retry), opts...)
}

// CacheNamespace identifies the ACRCloud project whose replies are cached.
func CacheNamespace(host, accessKey string) string {
	return strings.ToLower(strings.TrimSpace(host)) + "|" + strings.TrimSpace(accessKey)
}

// KindsFor maps the scan_type setting onto result kinds.
func KindsFor(scanType string) []match.Kind {
	switch scanType {
	case "music":
		return []match.Kind{match.KindMusic}
	case "custom":
		return []match.Kind{match.KindCustom}
	default:
		return match.Kinds()
	}
}

// Kinds returns the result kinds this recognizer produces.
func (r *ACRCloud) Kinds() []match.Kind {
	return append([]match.Kind(nil), r.kinds...)
}

// TotalDurationMs returns the media duration of source.
func (r *ACRCloud) TotalDurationMs(ctx context.Context, source string) (int64, error) {
	return r.extractor.DurationMs(ctx, source)
}

// Probe recognizes [startMs, startMs+lengthMs) of source. Decode failures are
// returned marked services.ErrDecode; exhausted retries keep the
// services.ErrTransient marker of the last attempt.
func (r *ACRCloud) Probe(ctx context.Context, source string, startMs, lengthMs int64) (Probe, error) {
	ctx = services.WithSource(ctx, source)
	logger := logging.WithContext(ctx, r.logger)

	key, cacheable := r.cacheKey(source, startMs, lengthMs)
	if cacheable {
		if resp, ok := r.lookup(key, logger); ok {
			return r.project(ctx, resp, source, startMs, lengthMs, true), nil
		}
	}

	sample, err := r.extractor.Window(ctx, source, startMs, lengthMs)
	if err != nil {
		return Probe{}, err
	}

	outcome := retry.Run(ctx, r.policy, func(ctx context.Context, attempt int) (identified, error) {
		resp, raw, err := r.identifier.Identify(ctx, sample)
		if err != nil {
			if services.Retryable(err) {
				logger.Debug("identify attempt failed",
					logging.Int("attempt", attempt),
					logging.Error(err),
				)
			}
			return identified{}, err
		}
		if err := acrcloud.CodeError(resp.Status.Code, resp.Status.Msg); services.Retryable(err) || services.AbortsRun(err) {
			return identified{}, err
		}
		return identified{resp: resp, raw: raw}, nil
	})
	if !outcome.OK() {
		return Probe{}, fmt.Errorf("window at %dms after %d attempt(s) (%s): %w", startMs, outcome.Attempts, outcome.Kind, outcome.Err)
	}

	if cacheable && cacheableCode(outcome.Value.resp.Status.Code) {
		if err := r.cache.Put(key, outcome.Value.raw); err != nil {
			logging.WarnWithContext(logger, "probe cache write failed", "probe_cache_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "window will be re-identified on the next scan"),
			)
		}
	}
	return r.project(ctx, outcome.Value.resp, source, startMs, lengthMs, false), nil
}

type identified struct {
	resp acrcloud.Response
	raw  []byte
}

func (r *ACRCloud) cacheKey(source string, startMs, lengthMs int64) (probecache.Key, bool) {
	if r.cache == nil {
		return 0, false
	}
	key, err := probecache.KeyForFile(r.namespace, source, startMs, lengthMs)
	if err != nil {
		return 0, false
	}
	return key, true
}

func (r *ACRCloud) lookup(key probecache.Key, logger *slog.Logger) (acrcloud.Response, bool) {
	raw, ok, err := r.cache.Get(key)
	if err != nil {
		logging.WarnWithContext(logger, "probe cache read failed", "probe_cache_read_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "window is identified again"),
		)
		return acrcloud.Response{}, false
	}
	if !ok {
		return acrcloud.Response{}, false
	}
	resp, err := acrcloud.Decode(raw)
	if err != nil {
		logging.WarnWithContext(logger, "cached reply is unreadable", "probe_cache_corrupt",
			logging.Error(err),
			logging.String(logging.FieldImpact, "window is identified again"),
		)
		return acrcloud.Response{}, false
	}
	return resp, true
}

// cacheableCode reports whether a reply describes the audio rather than the
// state of the service at the time.
func cacheableCode(code int) bool {
	return code == acrcloud.CodeOK || code == acrcloud.CodeNoResult
}

func (r *ACRCloud) project(ctx context.Context, resp acrcloud.Response, source string, startMs, lengthMs int64, cached bool) Probe {
	probe := Probe{Events: make(map[match.Kind]match.WindowEvent, len(r.kinds)), Cached: cached}
	for _, kind := range r.kinds {
		event, problems := resp.Event(kind, source, startMs, lengthMs)
		for _, problem := range problems {
			logging.WarnWithContext(logging.WithContext(services.WithKind(ctx, string(kind)), r.logger),
				"malformed recognition field ignored", "malformed_candidate",
				logging.Int64(logging.FieldWindowMs, startMs),
				logging.Error(problem),
				logging.String(logging.FieldErrorHint, "the backend returned an offset or id that cannot be used"),
				logging.String(logging.FieldImpact, "field left unset for this window"),
			)
		}
		probe.Events[kind] = event
	}
	return probe
}
