package imagery

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/ecolens/internal/resilience"
)

// FetcherOptions configures the WMS imagery fetcher.
type FetcherOptions struct {
	// BaseURL is the WMS endpoint (GetMap capable).
	BaseURL string

	// Width/Height are the requested raster dimensions in pixels.
	Width, Height int

	// Timeout bounds each individual GetMap attempt.
	Timeout time.Duration

	// Retry controls per-date retry of transient failures.
	Retry resilience.RetryConfig

	// RatePerSec throttles requests to the upstream host.
	RatePerSec float64

	UserAgent string
}

// Fetcher retrieves rasters from a WMS endpoint with date fallback,
// populating a DiskCache. The upstream is treated as unreliable and
// rate-limited: every attempt is throttled, timed out, and transient
// failures are retried with backoff before a date is given up on.
type Fetcher struct {
	opts    FetcherOptions
	client  *http.Client
	limiter *rate.Limiter
	cache   *DiskCache
}

// NewFetcher creates a Fetcher backed by the given cache.
func NewFetcher(opts FetcherOptions, cache *DiskCache) *Fetcher {
	if opts.Width <= 0 {
		opts.Width = 1024
	}
	if opts.Height <= 0 {
		opts.Height = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "ecolens/1.0"
	}

	return &Fetcher{
		opts: opts,
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), int(opts.RatePerSec)+1),
		cache:   cache,
	}
}

// CacheStats reports the backing cache's hit/miss counters.
func (f *Fetcher) CacheStats() CacheStats {
	return f.cache.Stats()
}

// Fetch returns the artifact for the request, consulting the cache first.
// On a miss it requests the exact date, then walks outward through the
// fallback window (closest date first, earlier date on ties) until a
// genuine raster is served. Exhausting the window yields
// *UnavailableError listing the dates attempted.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Artifact, error) {
	if art, ok, err := f.cache.Lookup(req); err != nil {
		return nil, err
	} else if ok {
		zap.L().Debug("imagery: cache hit",
			zap.String("layer", string(req.Layer)),
			zap.String("date", req.Date.Format("2006-01-02")),
		)
		return art, nil
	}

	var tried []time.Time
	for _, date := range fallbackDates(req.Date, req.FallbackDays) {
		tried = append(tried, date)

		raster, err := resilience.DoVal(ctx, f.opts.Retry, "wms getmap",
			func(ctx context.Context) (fetchedRaster, error) {
				data, contentType, err := f.getMap(ctx, req, date)
				return fetchedRaster{data: data, contentType: contentType}, err
			})
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "imagery: fetch cancelled")
			}
			zap.L().Info("imagery: no usable raster for date",
				zap.String("layer", string(req.Layer)),
				zap.String("date", date.Format("2006-01-02")),
				zap.Error(err),
			)
			continue
		}

		prov := Provenance{
			Layer:         req.Layer,
			BBox:          req.BBox,
			RequestedDate: req.Date,
			ServedDate:    date,
			ContentType:   raster.contentType,
		}
		art, err := f.cache.Store(req, prov, raster.data)
		if err != nil {
			return nil, err
		}
		if prov.DateFellBack() {
			zap.L().Warn("imagery: served date fell back",
				zap.String("requested", req.Date.Format("2006-01-02")),
				zap.String("served", date.Format("2006-01-02")),
			)
		}
		return art, nil
	}

	return nil, &UnavailableError{Request: req, DatesTried: tried}
}

type fetchedRaster struct {
	data        []byte
	contentType string
}

// getMap issues a single rate-limited GetMap attempt and validates that the
// body is a genuine raster by content inspection, not HTTP status alone.
func (f *Fetcher) getMap(ctx context.Context, req Request, date time.Time) ([]byte, string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, "", eris.Wrap(err, "imagery: rate limiter wait")
	}

	u, err := f.getMapURL(req, date)
	if err != nil {
		return nil, "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", eris.Wrap(err, "imagery: create request")
	}
	httpReq.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, "", resilience.NewTransientError(eris.Wrap(err, "imagery: wms request"), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", resilience.NewTransientError(eris.Wrap(err, "imagery: read wms body"), resp.StatusCode)
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, "", resilience.NewTransientError(
			eris.Errorf("imagery: wms returned %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", eris.Wrapf(errNoData, "wms returned %d", resp.StatusCode)
	}

	contentType, ok := sniffRaster(body)
	if !ok {
		if msg := parseServiceException(body, resp.Header.Get("Content-Type")); msg != "" {
			return nil, "", eris.Wrapf(errNoData, "wms exception: %s", msg)
		}
		return nil, "", eris.Wrap(errNoData, "response body is not a raster")
	}

	return body, contentType, nil
}

func (f *Fetcher) getMapURL(req Request, date time.Time) (string, error) {
	base, err := url.Parse(f.opts.BaseURL)
	if err != nil {
		return "", eris.Wrapf(err, "imagery: parse base url %q", f.opts.BaseURL)
	}

	q := base.Query()
	q.Set("SERVICE", "WMS")
	q.Set("REQUEST", "GetMap")
	q.Set("VERSION", "1.3.0")
	q.Set("LAYERS", req.Layer.Product())
	q.Set("FORMAT", "image/png")
	q.Set("CRS", "EPSG:4326")
	// WMS 1.3.0 with EPSG:4326 uses lat/lon axis order.
	q.Set("BBOX", strings.Join([]string{
		formatCoord(req.BBox.MinLat),
		formatCoord(req.BBox.MinLon),
		formatCoord(req.BBox.MaxLat),
		formatCoord(req.BBox.MaxLon),
	}, ","))
	q.Set("WIDTH", strconv.Itoa(f.opts.Width))
	q.Set("HEIGHT", strconv.Itoa(f.opts.Height))
	q.Set("TIME", date.Format("2006-01-02"))
	base.RawQuery = q.Encode()

	return base.String(), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// fallbackDates orders candidate dates closest-first, preferring the
// earlier date on ties: d, d-1, d+1, d-2, d+2, ...
func fallbackDates(requested time.Time, window int) []time.Time {
	dates := []time.Time{requested}
	for offset := 1; offset <= window; offset++ {
		dates = append(dates,
			requested.AddDate(0, 0, -offset),
			requested.AddDate(0, 0, offset),
		)
	}
	return dates
}

// sniffRaster recognizes PNG and JPEG payloads by magic bytes.
func sniffRaster(body []byte) (contentType string, ok bool) {
	switch {
	case bytes.HasPrefix(body, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png", true
	case bytes.HasPrefix(body, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg", true
	case bytes.HasPrefix(body, []byte("II*\x00")) || bytes.HasPrefix(body, []byte("MM\x00*")):
		return "image/tiff", true
	default:
		return "", false
	}
}

// serviceException mirrors the OGC WMS error payload shape.
type serviceException struct {
	XMLName    xml.Name `xml:"ServiceExceptionReport"`
	Exceptions []string `xml:"ServiceException"`
}

// parseServiceException extracts the message from a WMS XML error body.
// Returns "" when the body is not a recognizable exception report.
func parseServiceException(body []byte, declaredType string) string {
	trimmed := bytes.TrimSpace(body)
	if !bytes.HasPrefix(trimmed, []byte("<")) && !strings.Contains(declaredType, "xml") {
		return ""
	}

	dec := xml.NewDecoder(bytes.NewReader(trimmed))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "imagery: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var report serviceException
	if err := dec.Decode(&report); err != nil {
		return ""
	}
	if len(report.Exceptions) == 0 {
		return "service exception"
	}
	return strings.TrimSpace(report.Exceptions[0])
}
