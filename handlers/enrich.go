package handlers

import (
	"github.com/andesco/allorigins/pkg/version"
	"github.com/gofiber/fiber/v2"
)

const (
	allowHeaders = "Origin, X-Requested-With, Content-Type, Accept, Cache-Control"
	allowMethods = "OPTIONS, GET, POST, PATCH, PUT, DELETE"
)

// Inbound carries the parts of the proxy request that shape outgoing headers.
type Inbound struct {
	Origin       string
	CacheControl string
	Charset      string
}

func inboundOf(c *fiber.Ctx) Inbound {
	return Inbound{
		Origin:       c.Get(fiber.HeaderOrigin),
		CacheControl: c.Get(fiber.HeaderCacheControl),
		Charset:      c.Query("charset"),
	}
}

// Enrich adds the cross-origin headers to r, copies the caller's
// Cache-Control and appends the requested charset to an existing
// Content-Type. It runs once per reply, after the body is final.
func Enrich(r *Reply, in Inbound) *Reply {
	h := r.Header
	if in.CacheControl != "" {
		h.Set(fiber.HeaderCacheControl, in.CacheControl)
	}
	if in.Origin != "" {
		h.Set(fiber.HeaderAccessControlAllowOrigin, in.Origin)
	} else {
		h.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	}
	h.Set(fiber.HeaderAccessControlAllowCredentials, "true")
	h.Set(fiber.HeaderAccessControlAllowHeaders, allowHeaders)
	h.Set(fiber.HeaderAccessControlAllowMethods, allowMethods)
	h.Set(fiber.HeaderVia, version.Via())

	if in.Charset != "" {
		if ct := h.Get(fiber.HeaderContentType); ct != "" {
			h.Set(fiber.HeaderContentType, ct+"; charset="+in.Charset)
		}
	}
	return r
}
