package fetch

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/valyala/fasthttp"
)

// Origins sometimes send a Content-Length that is not a number. fasthttp
// refuses such a response outright, so connections are dialed through a
// reader that removes those lines from the response head before the client
// parses it. Every outbound request asks for Connection: close, which keeps
// each connection to a single response head.

// lenientDial returns a DialFunc for one host client.
func lenientDial(isTLS bool, tlsConfig *tls.Config, timeout time.Duration) fasthttp.DialFunc {
	return func(addr string) (net.Conn, error) {
		var (
			conn net.Conn
			err  error
		)
		if timeout > 0 {
			conn, err = fasthttp.DialTimeout(addr, timeout)
		} else {
			conn, err = fasthttp.Dial(addr)
		}
		if err != nil {
			return nil, err
		}
		if !isTLS {
			return &lenientConn{Conn: conn}, nil
		}

		cfg := &tls.Config{}
		if tlsConfig != nil {
			cfg = tlsConfig.Clone()
		}
		if cfg.ServerName == "" {
			if host, _, err := net.SplitHostPort(addr); err == nil {
				cfg.ServerName = host
			} else {
				cfg.ServerName = addr
			}
		}
		tc := tls.Client(conn, cfg)
		return &lenientTLSConn{lenientConn: &lenientConn{Conn: tc}, tls: tc}, nil
	}
}

type lenientConn struct {
	net.Conn
	r io.Reader
}

func (c *lenientConn) Read(p []byte) (int, error) {
	if c.r == nil {
		br := bufio.NewReader(c.Conn)
		head, err := readHead(br)
		if err != nil {
			c.r = io.MultiReader(bytes.NewReader(sanitizeHead(head)), errReader{err})
		} else {
			c.r = io.MultiReader(bytes.NewReader(sanitizeHead(head)), br)
		}
	}
	return c.r.Read(p)
}

// lenientTLSConn exposes Handshake so fasthttp does not wrap it in TLS again.
type lenientTLSConn struct {
	*lenientConn
	tls *tls.Conn
}

func (c *lenientTLSConn) Handshake() error {
	return c.tls.Handshake()
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// readHead reads up to and including the blank line ending a response head.
// Heads larger than headerBufferSize are returned as read so far.
func readHead(br *bufio.Reader) ([]byte, error) {
	var head []byte
	for len(head) < headerBufferSize {
		line, err := br.ReadSlice('\n')
		head = append(head, line...)
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			return head, err
		}
		if isBlankLine(line) {
			break
		}
	}
	return head, nil
}

var contentLengthKey = []byte("content-length")

// sanitizeHead drops Content-Length header lines whose value is not a
// non-negative decimal number. The status line is kept untouched.
func sanitizeHead(head []byte) []byte {
	first := bytes.IndexByte(head, '\n')
	if first < 0 {
		return head
	}
	out := make([]byte, 0, len(head))
	out = append(out, head[:first+1]...)
	rest := head[first+1:]
	for len(rest) > 0 {
		end := bytes.IndexByte(rest, '\n')
		var line []byte
		if end < 0 {
			line, rest = rest, nil
		} else {
			line, rest = rest[:end+1], rest[end+1:]
		}
		if !invalidContentLength(line) {
			out = append(out, line...)
		}
	}
	return out
}

func invalidContentLength(line []byte) bool {
	colon := bytes.IndexByte(line, ':')
	if colon < 0 {
		return false
	}
	key := bytes.TrimSpace(line[:colon])
	if !bytes.EqualFold(key, contentLengthKey) {
		return false
	}
	value := bytes.TrimSpace(line[colon+1:])
	if len(value) == 0 {
		return true
	}
	for _, b := range value {
		if b < '0' || b > '9' {
			return true
		}
	}
	return false
}

func isBlankLine(line []byte) bool {
	return len(bytes.TrimRight(line, "\r\n")) == 0
}
