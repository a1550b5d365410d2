// Package fetch performs the outbound request of a proxy call and classifies
// what came back into a Result.
package fetch

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andesco/allorigins/pkg/version"
	"github.com/valyala/fasthttp"
)

// ErrDomainNotAllowed is returned for targets outside the configured allow-list.
var ErrDomainNotAllowed = errors.New("domain not allowed")

// DefaultMaxRedirects matches the redirect budget of common browser-like clients.
const DefaultMaxRedirects = 10

// fasthttp rejects responses whose headers do not fit its read buffer.
const headerBufferSize = 64 * 1024

// Options configures a Fetcher. The zero value is usable.
type Options struct {
	// Timeout bounds reading and writing each outbound connection. Zero disables it.
	Timeout time.Duration
	// MaxRedirects is the number of redirect hops followed. Zero means DefaultMaxRedirects.
	MaxRedirects int
	// AllowedDomains restricts targets to hosts starting with one of the entries.
	AllowedDomains []string
	// UserAgent overrides version.UserAgent().
	UserAgent string
}

// Fetcher sends exactly one outbound request per call. It never retries and
// accepts any TLS certificate. It is safe for concurrent use.
type Fetcher struct {
	client         *fasthttp.Client
	userAgent      string
	maxRedirects   int
	allowedDomains []string
}

// New builds a Fetcher from opts.
func New(opts Options) *Fetcher {
	f := &Fetcher{
		client: &fasthttp.Client{
			ConfigureClient: func(hc *fasthttp.HostClient) error {
				hc.Dial = lenientDial(hc.IsTLS, hc.TLSConfig, opts.Timeout)
				return nil
			},
			Name:                      version.Name,
			ReadTimeout:               opts.Timeout,
			WriteTimeout:              opts.Timeout,
			MaxIdemponentCallAttempts: 1,
			ReadBufferSize:            headerBufferSize,
			DisablePathNormalizing:    true,
			TLSConfig: &tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // origins with self-signed certificates are proxied on purpose
			},
		},
		userAgent:    opts.UserAgent,
		maxRedirects: opts.MaxRedirects,
	}
	if f.userAgent == "" {
		f.userAgent = version.UserAgent()
	}
	if f.maxRedirects <= 0 {
		f.maxRedirects = DefaultMaxRedirects
	}
	for _, d := range opts.AllowedDomains {
		if d = strings.TrimSpace(d); d != "" {
			f.allowedDomains = append(f.allowedDomains, d)
		}
	}
	return f
}

// Fetch requests target with method and returns the outcome. A remote that
// answered, whatever its status, yields an Outcome with a nil Err.
func (f *Fetcher) Fetch(target, method string) *Outcome {
	if err := f.checkDomain(target); err != nil {
		return Failed(target, 0, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(target)
	req.Header.SetMethod(method)
	req.Header.SetUserAgent(f.userAgent)
	req.SetConnectionClose()

	if err := f.doRedirects(req, resp); err != nil {
		status := 0
		if errors.Is(err, fasthttp.ErrTooManyRedirects) || errors.Is(err, fasthttp.ErrMissingLocation) {
			status = resp.StatusCode()
		}
		return Failed(target, status, fmt.Errorf("error fetching %s: %w", target, err))
	}

	// An absent Content-Type must stay absent instead of fasthttp's default.
	resp.Header.SetNoDefaultContentType(true)
	header := make(http.Header)
	resp.Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})

	body, bodyErr := uncompressedBody(resp)
	return &Outcome{
		URL:        req.URI().String(),
		StatusCode: resp.StatusCode(),
		Header:     header,
		body:       body,
		bodyErr:    bodyErr,
	}
}

// doRedirects sends req and follows at most maxRedirects hops. POST turns
// into GET on 301 and 302, and every method but HEAD turns into GET on 303.
func (f *Fetcher) doRedirects(req *fasthttp.Request, resp *fasthttp.Response) error {
	for hops := 0; ; hops++ {
		if err := f.client.Do(req, resp); err != nil {
			return err
		}
		status := resp.StatusCode()
		if !fasthttp.StatusCodeIsRedirect(status) {
			return nil
		}
		if hops >= f.maxRedirects {
			return fasthttp.ErrTooManyRedirects
		}
		location := resp.Header.Peek(fasthttp.HeaderLocation)
		if len(location) == 0 {
			return fasthttp.ErrMissingLocation
		}

		req.URI().UpdateBytes(location)
		method := string(req.Header.Method())
		if next := redirectMethod(method, status); next != method {
			req.Header.SetMethod(next)
			req.ResetBody()
		}
	}
}

func redirectMethod(method string, status int) string {
	switch status {
	case fasthttp.StatusMovedPermanently, fasthttp.StatusFound:
		if method == fasthttp.MethodPost {
			return fasthttp.MethodGet
		}
	case fasthttp.StatusSeeOther:
		if method != fasthttp.MethodHead {
			return fasthttp.MethodGet
		}
	}
	return method
}

func (f *Fetcher) checkDomain(target string) error {
	if len(f.allowedDomains) == 0 {
		return nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("error parsing target URL: %w", err)
	}
	for _, d := range f.allowedDomains {
		if strings.HasPrefix(u.Host, d) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrDomainNotAllowed, u.Host)
}

// uncompressedBody copies the body out of the pooled response, undoing any
// Content-Encoding first.
func uncompressedBody(resp *fasthttp.Response) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	switch strings.ToLower(string(resp.Header.ContentEncoding())) {
	case "", "identity":
		body = resp.Body()
	default:
		body, err = resp.BodyUncompressed()
		if err != nil {
			return nil, fmt.Errorf("error decompressing body: %w", err)
		}
	}
	return append([]byte(nil), body...), nil
}
