package bot

import (
	"strings"
	"time"

	"foodbot/internal/bot/helpers"
	"foodbot/internal/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// CommandRoutes prepares the registered command handlers as routes.
func CommandRoutes(reg *Registry) []Route {
	if reg == nil {
		return nil
	}
	routes := make([]Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		name := "command." + normalizeHandlerName(cmd)
		handler := def.Handler
		routes = append(routes, Route{
			Endpoint: cmd,
			Handler: func(c tele.Context) error {
				start := time.Now()
				return handleWithSummary(c, name, start, handler)
			},
		})
	}

	logger.Component("tg.wire").Info("routes prepared",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

// CallbackRoute returns the single tele.OnCallback route that dispatches by
// button unique. The press is acknowledged before dispatch so the client
// spinner clears even when the key is unknown.
func CallbackRoute(reg *Registry) Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key, _ := callbackKey(c)
		name := "callback." + normalizeHandlerName(key)

		_ = c.Respond()

		cbHandler, ok := reg.GetCallback(key)
		if !ok || cbHandler == nil {
			return handleWithSummary(c, name, start, reg.CallbackNotFound(),
				slog.String("reason", "not_found"))
		}
		return handleWithSummary(c, name, start, cbHandler,
			slog.String("cb_key", key))
	}
	return Route{Endpoint: tele.OnCallback, Handler: handler}
}

// LocationRoute binds shared locations to the location handler.
func LocationRoute(h *Handlers) Route {
	return Route{
		Endpoint: tele.OnLocation,
		Handler: func(c tele.Context) error {
			start := time.Now()
			return handleWithSummary(c, "message.location", start, h.OnLocation)
		},
	}
}

func handleWithSummary(c tele.Context, handlerName string, start time.Time, fn tele.HandlerFunc, extras ...slog.Attr) error {
	err := fn(c)

	ctx := helpers.BuildContext(c)
	status := "ok"
	if err != nil {
		status = "fail"
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", handlerName),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
	}
	attrs = append(attrs, extras...)
	logger.Info(ctx, "tg", "handler.handled", attrs...)
	return err
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

// callbackKey extracts the button unique and payload from the current
// callback, handling both telebot-native and raw \f-encoded data.
func callbackKey(c tele.Context) (string, string) {
	return parseCallback(c.Callback())
}

func parseCallback(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	raw = strings.TrimPrefix(raw, "\\f")
	parts := strings.SplitN(raw, "|", 2)
	key := strings.TrimSpace(parts[0])
	payload := ""
	if len(parts) == 2 {
		payload = parts[1]
	}
	return key, payload
}
