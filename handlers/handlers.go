// Package handlers serves the three proxy modes over fiber.
package handlers

import (
	"time"

	"github.com/andesco/allorigins/pkg/fetch"
	"github.com/andesco/allorigins/pkg/version"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// Fetcher performs the outbound request of a proxy call. The strings it is
// given are owned by the callee and may be kept.
type Fetcher interface {
	Fetch(target, method string) *fetch.Outcome
}

// Handlers is the handler set shared by every listener. It holds no
// per-request state.
type Handlers struct {
	fetcher Fetcher
	log     zerolog.Logger
	logURLs bool
}

// New returns the handler set. With logURLs every proxied target is logged
// at info level instead of debug.
func New(fetcher Fetcher, log zerolog.Logger, logURLs bool) *Handlers {
	return &Handlers{fetcher: fetcher, log: log, logURLs: logURLs}
}

// readBufferSize bounds inbound request heads, long target URLs included.
const readBufferSize = 16 * 1024

// App returns a fiber app serving the proxy routes. Routing is case-sensitive,
// so /INFO is not /info.
func (h *Handlers) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               version.Name,
		CaseSensitive:         true,
		DisableStartupMessage: true,
		ReadBufferSize:        readBufferSize,
	})
	h.Register(app)
	return app
}

// Register mounts the proxy routes on app. Paths other than /info, /get and
// /raw answer 404 with an empty body.
func (h *Handlers) Register(app *fiber.App) {
	app.Use(recover.New())
	app.Use(h.accept)

	app.All("/info", h.Info)
	app.All("/get", h.Get)
	app.All("/raw", h.Raw)

	app.Use(NotFound)
}

// NotFound answers with a bare 404.
func NotFound(c *fiber.Ctx) error {
	c.Response().Header.SetNoDefaultContentType(true)
	c.Status(fiber.StatusNotFound)
	return nil
}

type localKey int

const acceptedKey localKey = iota

// accept stamps the acceptance time, tags the request logger with an id and
// writes one access line once the chain returns.
func (h *Handlers) accept(c *fiber.Ctx) error {
	start := time.Now()
	c.Locals(acceptedKey, start)

	log := h.log.With().Str("request_id", xid.New().String()).Logger()
	c.SetUserContext(log.WithContext(c.UserContext()))

	err := c.Next()

	evt := log.Info()
	if err != nil {
		evt = log.Error().Err(err)
	}
	evt.Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("latency", time.Since(start)).
		Msg("request")
	return err
}

func acceptedAt(c *fiber.Ctx) time.Time {
	if t, ok := c.Locals(acceptedKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

func (h *Handlers) logger(c *fiber.Ctx) *zerolog.Logger {
	if l := zerolog.Ctx(c.UserContext()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &h.log
}
