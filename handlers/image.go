package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/ratelimit"
)

const imageCacheControl = "public, max-age=86400"

// maxImageRedirects bounds redirect chains; each hop is host-checked too.
const maxImageRedirects = 3

// BurstLimiter is the per-IP limiter in front of the proxy.
type BurstLimiter interface {
	Allow(key string) bool
	CooldownSeconds(key string) int
}

// ImageHandler proxies remote listing photos so pages never hotlink the
// listing storage directly.
type ImageHandler struct {
	client   *http.Client
	allowed  map[string]struct{}
	maxBytes int64
	limiter  BurstLimiter
	log      *zap.Logger
}

// NewImageHandler is the constructor. allowedHosts are bare host names;
// the client is copied so redirects can be host-checked.
func NewImageHandler(client *http.Client, allowedHosts []string, maxBytes int64, limiter BurstLimiter, log *zap.Logger) *ImageHandler {
	h := &ImageHandler{
		allowed:  make(map[string]struct{}, len(allowedHosts)),
		maxBytes: maxBytes,
		limiter:  limiter,
		log:      log,
	}
	for _, host := range allowedHosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			h.allowed[host] = struct{}{}
		}
	}

	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxImageRedirects {
			return errors.New("too many redirects")
		}
		if !h.hostAllowed(req.URL) {
			return fmt.Errorf("redirect to disallowed host %q", req.URL.Host)
		}
		return nil
	}
	h.client = &c
	return h
}

// Proxy godoc
// GET /api/image?src=<absolute image URL>
// 400 bad src, 403 host not allowed, 429 over the limit, 502 upstream
// failure or non-image response.
func (h *ImageHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ExtractIP(r)
	if h.limiter != nil && !h.limiter.Allow(ip) {
		w.Header().Set("Retry-After", strconv.Itoa(h.limiter.CooldownSeconds(ip)))
		pkg.ErrorWithMessage(w, http.StatusTooManyRequests, "too many image requests")
		return
	}

	src, err := parseImageSource(r.URL.Query().Get("src"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	if !h.hostAllowed(src) {
		pkg.Error(w, fmt.Errorf("%w: image host %q is not allowed", pkg.ErrForbidden, src.Hostname()))
		return
	}

	body, contentType, err := h.fetch(r, src)
	if err != nil {
		h.log.Warn("image fetch failed", zap.String("src", src.String()), zap.Error(err))
		pkg.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Cache-Control", imageCacheControl)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	// SVG can carry script; keep it inert when opened directly.
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

func (h *ImageHandler) fetch(r *http.Request, src *url.URL) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, src.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", pkg.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: image responded %d", pkg.ErrUpstream, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, "", fmt.Errorf("%w: not an image (%q)", pkg.ErrUpstream, contentType)
	}
	if resp.ContentLength > h.maxBytes {
		return nil, "", fmt.Errorf("%w: image too large (%d bytes)", pkg.ErrUpstream, resp.ContentLength)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", pkg.ErrUpstream, err)
	}
	if n > h.maxBytes {
		return nil, "", fmt.Errorf("%w: image exceeds %d bytes", pkg.ErrUpstream, h.maxBytes)
	}
	return buf.Bytes(), contentType, nil
}

func (h *ImageHandler) hostAllowed(u *url.URL) bool {
	_, ok := h.allowed[strings.ToLower(u.Hostname())]
	return ok
}

func parseImageSource(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: src is required", pkg.ErrBadRequest)
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: src must be an absolute http(s) URL", pkg.ErrBadRequest)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: src must not carry credentials", pkg.ErrBadRequest)
	}
	return u, nil
}
