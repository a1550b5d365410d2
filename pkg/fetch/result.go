package fetch

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Result is the normalized record of one proxy call. Its JSON form is the
// envelope returned by the info and get modes.
type Result struct {
	ContentLength *uint64 `json:"content_length,omitempty"`
	ContentType   *string `json:"content_type,omitempty"`
	HTTPCode      *int    `json:"http_code,omitempty"`
	ResponseTime  int64   `json:"response_time"`
	URL           string  `json:"url"`
	Contents      *string `json:"contents,omitempty"`
	Error         *string `json:"error,omitempty"`
}

// Failed reports whether the remote status was not 2xx or the transport failed.
func (r *Result) Failed() bool {
	return r.Error != nil
}

// ClassifyInfo builds the metadata-only Result. The body is never read and
// Content-Length is taken from the header, absent when it does not parse.
func ClassifyInfo(o *Outcome, accepted time.Time) *Result {
	if o.Err != nil {
		return failure(o, accepted)
	}
	r := &Result{
		URL:         o.URL,
		ContentType: headerValue(o, "Content-Type"),
		HTTPCode:    ptr(o.StatusCode),
		Error:       statusError(o.StatusCode),
	}
	if cl := o.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseUint(strings.TrimSpace(cl), 10, 64); err == nil {
			r.ContentLength = &n
		}
	}
	r.ResponseTime = elapsedMillis(accepted)
	return r
}

// ClassifyData builds the Result of the body-returning modes. The content
// length is the byte length of the decoded text. An empty or undecodable body
// leaves both Contents and ContentLength absent, so an empty payload cannot be
// told apart from a missing one.
func ClassifyData(o *Outcome, accepted time.Time) *Result {
	if o.Err != nil {
		return failure(o, accepted)
	}
	r := &Result{
		URL:         o.URL,
		ContentType: headerValue(o, "Content-Type"),
		HTTPCode:    ptr(o.StatusCode),
		Error:       statusError(o.StatusCode),
	}
	if text, err := o.Text(); err == nil && text != "" {
		n := uint64(len(text))
		r.Contents = &text
		r.ContentLength = &n
	}
	r.ResponseTime = elapsedMillis(accepted)
	return r
}

func failure(o *Outcome, accepted time.Time) *Result {
	msg := o.Err.Error()
	r := &Result{
		URL:   o.URL,
		Error: &msg,
	}
	if o.StatusCode != 0 {
		r.HTTPCode = ptr(o.StatusCode)
	}
	r.ResponseTime = elapsedMillis(accepted)
	return r
}

// unknownReason stands in for codes without a registered reason phrase.
const unknownReason = "<unknown status code>"

// statusError renders a non-2xx status the way status lines read, e.g. "404 Not Found".
func statusError(code int) *string {
	if code >= 200 && code < 300 {
		return nil
	}
	reason := fasthttp.StatusMessage(code)
	// StatusMessage answers every unregistered code with the same placeholder.
	if reason == fasthttp.StatusMessage(0) {
		reason = unknownReason
	}
	msg := fmt.Sprintf("%d %s", code, reason)
	return &msg
}

func headerValue(o *Outcome, key string) *string {
	if values := o.Header.Values(key); len(values) > 0 {
		return &values[0]
	}
	return nil
}

func elapsedMillis(since time.Time) int64 {
	return max(time.Since(since).Milliseconds(), 0)
}

func ptr[T any](v T) *T {
	return &v
}
