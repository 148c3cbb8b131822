package worker

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dev-Codn/notificationfeb/internal/logger"
	"github.com/Dev-Codn/notificationfeb/internal/metrics"
)

// offlineResponse is the structured envelope synthesized for API calls that
// fail while offline, instead of letting the request fail raw.
type offlineResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Offline bool   `json:"offline"`
}

// Interceptor routes requests the way the worker's fetch policy dictates:
// API paths are network-first with a structured offline fallback; everything
// else is cache-first with network fallback, then the cached app shell.
//
// It implements http.RoundTripper so the host can install it on any client.
type Interceptor struct {
	base      http.RoundTripper
	cache     *AssetCache
	apiPrefix string
	shellPath string
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewInterceptor wraps base with the worker's fetch policy. A nil base means
// http.DefaultTransport.
func NewInterceptor(base http.RoundTripper, cache *AssetCache, apiPrefix, shellPath string, m *metrics.Metrics, log *logger.Logger) *Interceptor {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Interceptor{
		base:      base,
		cache:     cache,
		apiPrefix: apiPrefix,
		shellPath: shellPath,
		metrics:   m,
		logger:    log.WithComponent("fetch"),
	}
}

// RoundTrip applies the fetch policy to one request.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.HasPrefix(req.URL.Path, i.apiPrefix) {
		return i.networkFirst(req)
	}
	return i.cacheFirst(req)
}

func (i *Interceptor) networkFirst(req *http.Request) (*http.Response, error) {
	resp, err := i.base.RoundTrip(req)
	if err == nil {
		return resp, nil
	}

	i.metrics.OfflineResponses.Inc()
	i.logger.Warn("api request failed, serving offline envelope",
		slog.String("path", req.URL.Path),
		slog.String("error", err.Error()))

	body, _ := json.Marshal(offlineResponse{
		Success: false,
		Message: "You appear to be offline. Changes will sync when connection is restored.",
		Offline: true,
	})
	return synthesize(req, http.StatusServiceUnavailable, "application/json", body), nil
}

func (i *Interceptor) cacheFirst(req *http.Request) (*http.Response, error) {
	if asset, ok := i.cache.Get(req.URL.Path); ok {
		i.metrics.CacheHits.Inc()
		return synthesize(req, http.StatusOK, asset.ContentType, asset.Body), nil
	}
	i.metrics.CacheMisses.Inc()

	resp, err := i.base.RoundTrip(req)
	if err == nil {
		if req.Method == http.MethodGet && resp.StatusCode == http.StatusOK {
			i.stash(req.URL.Path, resp)
		}
		return resp, nil
	}

	// Both cache and network missed: serve the cached app shell so
	// client-side routing still renders offline.
	if shell, ok := i.cache.Get(i.shellPath); ok {
		i.logger.Debug("serving app shell fallback", slog.String("path", req.URL.Path))
		return synthesize(req, http.StatusOK, shell.ContentType, shell.Body), nil
	}
	return nil, err
}

// stash buffers the response body into the cache, replacing the consumed body
// so the caller still reads the full response.
func (i *Interceptor) stash(path string, resp *http.Response) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		resp.Body = io.NopCloser(bytes.NewReader(nil))
		return
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	i.cache.Put(path, CachedAsset{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	})
}

func synthesize(req *http.Request, status int, contentType string, body []byte) *http.Response {
	header := make(http.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode:    status,
		Status:        http.StatusText(status),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
