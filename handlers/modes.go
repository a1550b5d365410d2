package handlers

import (
	"github.com/andesco/allorigins/pkg/fetch"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"
)

type shapeFunc func(*fetch.Result) (*Reply, error)

// Info probes the target with HEAD, whatever the inbound method, and answers
// with the metadata envelope.
func (h *Handlers) Info(c *fiber.Ctx) error {
	target, ok := targetURL(c)
	if !ok {
		return missingURLReply().write(c)
	}
	h.logMode(c, "info", target)

	res := fetch.ClassifyInfo(h.fetcher.Fetch(target, fiber.MethodHead), acceptedAt(c))
	return h.respond(c, res, envelopeReply)
}

// Get fetches the target with the inbound method and answers with the
// envelope, body included.
func (h *Handlers) Get(c *fiber.Ctx) error {
	target, ok := targetURL(c)
	if !ok {
		return missingURLReply().write(c)
	}
	h.logMode(c, "get", target)

	res := fetch.ClassifyData(h.fetcher.Fetch(target, inboundMethod(c)), acceptedAt(c))
	return h.respond(c, res, envelopeReply)
}

// Raw fetches the target with the inbound method and answers with the body
// itself, or with the envelope when the call failed.
func (h *Handlers) Raw(c *fiber.Ctx) error {
	target, ok := targetURL(c)
	if !ok {
		return missingURLReply().write(c)
	}
	h.logMode(c, "raw", target)

	res := fetch.ClassifyData(h.fetcher.Fetch(target, inboundMethod(c)), acceptedAt(c))
	return h.respond(c, res, rawReply)
}

func (h *Handlers) respond(c *fiber.Ctx, res *fetch.Result, shape shapeFunc) error {
	if res.Failed() {
		h.logger(c).Warn().Str("url", res.URL).Str("error", *res.Error).Msg("remote call failed")
	}
	reply, err := shape(res)
	if err != nil {
		return err
	}
	return Enrich(reply, inboundOf(c)).write(c)
}

// targetURL reports the url query parameter. A present but empty value still
// counts as given. The value is copied out of the request buffer, which
// fasthttp reuses once the handler returns.
func targetURL(c *fiber.Ctx) (string, bool) {
	if !c.Context().QueryArgs().Has("url") {
		return "", false
	}
	return utils.CopyString(c.Query("url")), true
}

func inboundMethod(c *fiber.Ctx) string {
	return utils.CopyString(c.Method())
}

func (h *Handlers) logMode(c *fiber.Ctx, mode, target string) {
	var evt *zerolog.Event
	if h.logURLs {
		evt = h.logger(c).Info()
	} else {
		evt = h.logger(c).Debug()
	}
	evt.Str("mode", mode).Str("method", c.Method()).Str("url", target).Msg("proxying")
}
