package revalcache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// FetchCacheMode is the caching directive of an outbound call.
type FetchCacheMode string

const (
	FetchDefault    FetchCacheMode = ""
	FetchNoStore    FetchCacheMode = "no-store"
	FetchForceCache FetchCacheMode = "force-cache"
)

// FetchOptions are the per-call caching directives. They travel on the
// request context (see WithFetchOptions).
//
// Revalidate nil means "not given". A non-nil zero (or negative) value
// disables caching for the call, like no-store. Tags without Revalidate
// cache the call until one of the tags is invalidated.
type FetchOptions struct {
	Cache      FetchCacheMode
	Revalidate *time.Duration
	Tags       []string
}

// RevalidateAfter is a helper for FetchOptions.Revalidate.
func RevalidateAfter(d time.Duration) *time.Duration { return &d }

type fetchOptionsKey struct{}

// WithFetchOptions attaches caching directives to ctx. Use the returned
// context for the outgoing request.
func WithFetchOptions(ctx context.Context, opts FetchOptions) context.Context {
	return context.WithValue(ctx, fetchOptionsKey{}, &opts)
}

func fetchOptionsFrom(ctx context.Context) (*FetchOptions, bool) {
	o, ok := ctx.Value(fetchOptionsKey{}).(*FetchOptions)
	return o, ok && o != nil
}

// stripFetchOptions hides any directives from the next transport.
func stripFetchOptions(req *http.Request) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), fetchOptionsKey{}, (*FetchOptions)(nil)))
}

type fetchPlan struct {
	ttl  time.Duration
	tags []string
}

// plan resolves directives into a TTL. ok=false means "do not cache".
func (o *FetchOptions) plan() (fetchPlan, bool) {
	if o.Cache == FetchNoStore {
		return fetchPlan{}, false
	}
	if o.Revalidate != nil {
		if *o.Revalidate <= 0 {
			return fetchPlan{}, false
		}
		return fetchPlan{ttl: *o.Revalidate, tags: o.Tags}, true
	}
	if o.Cache == FetchForceCache || len(o.Tags) > 0 {
		return fetchPlan{ttl: IndefiniteTTL, tags: o.Tags}, true
	}
	return fetchPlan{}, false
}

// Transport caches outbound HTTP calls made during a render in the cache's
// backend, keyed by method, URL and replayable body.
type Transport struct {
	c    *Cache
	base http.RoundTripper
	// concurrent misses for the same key share one network call
	misses singleflight.Group
}

var _ http.RoundTripper = (*Transport)(nil)

// Transport wraps base (http.DefaultTransport if nil).
func (c *Cache) Transport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{c: c, base: base}
}

// Client is a convenience http.Client over c.Transport(base).
func (c *Cache) Client(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: c.Transport(base)}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	opts, ok := fetchOptionsFrom(ctx)
	if !ok {
		return t.base.RoundTrip(req)
	}
	t.c.tags.Add(ctx, opts.Tags...)

	p, cacheable := opts.plan()
	if !cacheable || !t.c.enabled {
		return t.base.RoundTrip(stripFetchOptions(req))
	}

	body, err := replayableBody(req)
	if err != nil {
		closeBody(req)
		return nil, err
	}
	key := CallKey(req.Method, req.URL.String(), body)

	e, err := t.c.backend.Get(ctx, key, Hint{Kind: KindCall, Tags: p.tags})
	if err != nil {
		closeBody(req)
		return nil, &BackendError{Op: "get", Key: key, Err: err}
	}
	if e != nil {
		if cr, ok := e.Value.(*CallResult); ok && !IsEmpty(cr) {
			status := StatusHit
			if e.Freshness == Stale {
				status = StatusStale
				t.refetch(req, key, p)
			}
			closeBody(req)
			t.c.hooks.Lookup(KindCall, key, status)
			return responseFrom(req, cr), nil
		}
	}

	t.c.hooks.Lookup(KindCall, key, StatusMiss)
	return t.miss(req, key, p)
}

// miss performs the real call. A 2xx body is buffered so one copy goes back
// to the caller while the other is written to the backend asynchronously.
//
// Concurrent misses for one key share a single call. It runs detached from
// every caller's cancellation, with the request, TTL and tags of the caller
// that started it; each caller still returns early when its own context ends.
func (t *Transport) miss(req *http.Request, key string, p fetchPlan) (*http.Response, error) {
	if req.GetBody == nil && req.Body != nil && req.Body != http.NoBody {
		// a streaming body cannot be shared across callers
		return t.fetchAndStore(req, key, p)
	}
	shared, err := detachedRequest(req)
	closeBody(req)
	if err != nil {
		return nil, err
	}
	ch := t.misses.DoChan(key, func() (any, error) {
		resp, err := t.fetchAndStore(shared, key, p)
		if err != nil {
			return nil, err
		}
		return bufferResponse(resp)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*bufferedResponse).clone(req), nil
	case <-req.Context().Done():
		return nil, req.Context().Err()
	}
}

// detachedRequest copies req onto a context without its cancellation. The
// body is replayed through GetBody; the original body is never read.
func detachedRequest(req *http.Request) (*http.Request, error) {
	r := req.Clone(context.WithoutCancel(req.Context()))
	r.Body, r.ContentLength = http.NoBody, 0
	if req.GetBody != nil && req.Body != nil && req.Body != http.NoBody {
		b, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("revalcache: replay request body: %w", err)
		}
		r.Body, r.ContentLength = b, req.ContentLength
	}
	return r, nil
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}

func (t *Transport) fetchAndStore(req *http.Request, key string, p fetchPlan) (*http.Response, error) {
	resp, err := t.base.RoundTrip(stripFetchOptions(req))
	if err != nil {
		return nil, err
	}
	if !is2xx(resp.StatusCode) {
		return resp, nil
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("revalcache: read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	resp.ContentLength = int64(len(raw))

	cr := callResultFrom(req, resp, raw)
	bg := context.WithoutCancel(req.Context())
	t.c.writes.Add(1)
	go func() {
		defer t.c.writes.Done()
		t.store(bg, key, cr, p)
	}()
	return resp, nil
}

// refetch refreshes a stale call result in the background. Refetches of the
// same key are single-flight through the coordinator. The request is copied
// before RoundTrip returns; a streaming body is not part of the key and is
// not replayed, so the refetch is sent without it.
func (t *Transport) refetch(req *http.Request, key string, p fetchPlan) {
	r := req.Clone(req.Context())
	r.Body, r.ContentLength = http.NoBody, 0
	getBody, size := req.GetBody, req.ContentLength
	t.c.coord.Trigger(req.Context(), key, func(ctx context.Context) error {
		if getBody != nil && size != 0 {
			b, err := getBody()
			if err != nil {
				return err
			}
			r.Body, r.ContentLength = b, size
		}
		ctx, span := t.c.tracer.Start(ctx, "revalcache.refetch",
			trace.WithAttributes(attribute.String("http.url", r.URL.String())))
		defer span.End()

		resp, err := t.base.RoundTrip(stripFetchOptions(r.WithContext(ctx)))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		defer resp.Body.Close()
		if !is2xx(resp.StatusCode) {
			return fmt.Errorf("refetch %s: status %d", r.URL, resp.StatusCode)
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return t.c.backend.Set(ctx, key, callResultFrom(r, resp, raw), SetOptions{TTL: p.ttl, Tags: dedupTags(p.tags)})
	})
}

func (t *Transport) store(ctx context.Context, key string, cr *CallResult, p fetchPlan) {
	err := t.c.backend.Set(ctx, key, cr, SetOptions{TTL: p.ttl, Tags: dedupTags(p.tags)})
	if err != nil {
		t.c.log.Warn("call result write failed", keyFields(key, err))
		t.c.hooks.BackgroundWriteFailed(key, err)
	}
}

// replayableBody returns the request body when it can be read again
// (GetBody set, as for strings, bytes and bytes.Buffer readers). Streaming
// bodies are left out of the key.
func replayableBody(req *http.Request) (string, error) {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody == nil {
		return "", nil
	}
	rc, err := req.GetBody()
	if err != nil {
		return "", fmt.Errorf("revalcache: replay request body: %w", err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("revalcache: replay request body: %w", err)
	}
	return string(b), nil
}

func is2xx(code int) bool { return code >= 200 && code < 300 }

func callResultFrom(req *http.Request, resp *http.Response, body []byte) *CallResult {
	h := make(map[string]string, len(resp.Header))
	for k, vs := range resp.Header {
		h[k] = strings.Join(vs, ", ")
	}
	return &CallResult{
		Headers:    h,
		Body:       string(body),
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
	}
}

func responseFrom(req *http.Request, cr *CallResult) *http.Response {
	h := make(http.Header, len(cr.Headers))
	for k, v := range cr.Headers {
		h.Set(k, v)
	}
	h.Set("Content-Length", strconv.Itoa(len(cr.Body)))
	return &http.Response{
		Status:        strconv.Itoa(cr.StatusCode) + " " + http.StatusText(cr.StatusCode),
		StatusCode:    cr.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(strings.NewReader(cr.Body)),
		ContentLength: int64(len(cr.Body)),
		Request:       req,
	}
}

// bufferedResponse is a fully read response that can be handed to several
// callers of a shared miss.
type bufferedResponse struct {
	resp *http.Response
	body []byte
}

func bufferResponse(resp *http.Response) (*bufferedResponse, error) {
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("revalcache: read response body: %w", err)
	}
	return &bufferedResponse{resp: resp, body: raw}, nil
}

func (b *bufferedResponse) clone(req *http.Request) *http.Response {
	r := *b.resp
	r.Header = b.resp.Header.Clone()
	r.Body = io.NopCloser(bytes.NewReader(b.body))
	r.ContentLength = int64(len(b.body))
	r.Request = req
	return &r
}
