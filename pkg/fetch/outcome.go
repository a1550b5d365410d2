package fetch

import (
	"fmt"
	"mime"
	"net/http"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Outcome is what one outbound fetch produced: either a remote response
// (Err == nil) or a transport failure.
type Outcome struct {
	// URL is the final URL after redirects, or the requested URL on failure.
	URL string
	// StatusCode is zero when no status is known.
	StatusCode int
	Header     http.Header
	Err        error

	body    []byte
	bodyErr error
}

// NewOutcome describes a remote that answered with status, header and body.
func NewOutcome(url string, status int, header http.Header, body []byte) *Outcome {
	if header == nil {
		header = make(http.Header)
	}
	return &Outcome{URL: url, StatusCode: status, Header: header, body: body}
}

// Failed describes a fetch that never produced a usable response. status is
// kept when the failure still carried one, zero otherwise.
func Failed(url string, status int, err error) *Outcome {
	return &Outcome{URL: url, StatusCode: status, Err: err}
}

// Text decodes the body using the charset of the remote Content-Type,
// UTF-8 when none is declared. Invalid sequences become U+FFFD.
func (o *Outcome) Text() (string, error) {
	if o.bodyErr != nil {
		return "", o.bodyErr
	}
	text, err := encodingFor(o.Header.Get("Content-Type")).NewDecoder().Bytes(o.body)
	if err != nil {
		return "", fmt.Errorf("error decoding body: %w", err)
	}
	return string(text), nil
}

func encodingFor(contentType string) encoding.Encoding {
	if contentType == "" {
		return unicode.UTF8
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return unicode.UTF8
	}
	if enc, _ := charset.Lookup(params["charset"]); enc != nil {
		return enc
	}
	return unicode.UTF8
}
