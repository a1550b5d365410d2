package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/andesco/allorigins/pkg/fetch"
	"github.com/gofiber/fiber/v2"
)

const missingURLMessage = "No 'url' query parameter"

// Reply is a response that has been decided on but not yet written. Handlers
// build one, pass it through Enrich and only then write it out.
type Reply struct {
	Status int
	Header http.Header
	Body   []byte
}

func newReply(status int, contentType string, body []byte) *Reply {
	r := &Reply{Status: status, Header: make(http.Header), Body: body}
	if contentType != "" {
		r.Header.Set(fiber.HeaderContentType, contentType)
	}
	return r
}

// envelopeReply is the JSON shape of info, get and failed raw calls. The
// outer status is 200 whatever happened to the remote.
func envelopeReply(res *fetch.Result) (*Reply, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		return nil, fmt.Errorf("error encoding envelope: %w", err)
	}
	return newReply(fiber.StatusOK, fiber.MIMEApplicationJSON, bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// rawReply passes the decoded body through with the remote type and length,
// falling back to the envelope when the call failed.
func rawReply(res *fetch.Result) (*Reply, error) {
	if res.Failed() {
		return envelopeReply(res)
	}
	r := newReply(fiber.StatusOK, "", nil)
	if res.Contents != nil {
		r.Body = []byte(*res.Contents)
	}
	if res.ContentLength != nil {
		r.Header.Set(fiber.HeaderContentLength, strconv.FormatUint(*res.ContentLength, 10))
	}
	if res.ContentType != nil {
		r.Header.Set(fiber.HeaderContentType, *res.ContentType)
	}
	return r, nil
}

// missingURLReply is written as is; it never goes through Enrich.
func missingURLReply() *Reply {
	return newReply(fiber.StatusBadRequest, fiber.MIMETextPlain, []byte(missingURLMessage))
}

func (r *Reply) write(c *fiber.Ctx) error {
	// Only headers the reply carries are sent, fasthttp's default type included.
	c.Response().Header.SetNoDefaultContentType(true)
	c.Status(r.Status)
	for key, values := range r.Header {
		for i, v := range values {
			if i == 0 {
				c.Set(key, v)
			} else {
				c.Append(key, v)
			}
		}
	}
	return c.Send(r.Body)
}
