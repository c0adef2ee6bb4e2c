package bot

import (
	"context"
	"strings"
	"time"

	"foodbot/internal/config"
	"foodbot/internal/logger"
	"foodbot/internal/web"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Listen                 string
	PublicURL              string
}

// BuildPoller returns a Telebot poller based on provided options. Webhook
// mode runs the HTTP ingress in-process so /webhook and /health share one
// listener.
func BuildPoller(opts PollerOptions) tele.Poller {
	runMode := strings.ToLower(strings.TrimSpace(opts.RunMode))
	if runMode == config.RunModeWebhook {
		return &webhookPoller{
			listen:    opts.Listen,
			publicURL: opts.PublicURL,
			log:       logger.Component("tg"),
		}
	}

	timeoutSec := opts.LongPollTimeoutSeconds
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &tele.LongPoller{Timeout: time.Duration(timeoutSec) * time.Second}
}

// webhookPoller registers the webhook with Telegram, serves the ingress, and
// forwards decoded updates into the bot's update channel.
type webhookPoller struct {
	listen    string
	publicURL string
	log       *slog.Logger
}

func (p *webhookPoller) Poll(b *tele.Bot, dest chan tele.Update, stop chan struct{}) {
	updates := make(chan tele.Update, 64)
	srv := web.NewServer(p.listen, updates)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	// Only message and callback_query updates drive the conversation;
	// everything else is filtered at the Telegram side.
	if _, err := b.Raw("setWebhook", map[string]any{
		"url":             p.publicURL,
		"allowed_updates": []string{"message", "callback_query"},
	}); err != nil {
		p.log.Error("webhook registration failed",
			slog.String("event", "tg.set_webhook"),
			slog.String("url", p.publicURL),
			slog.String("err", err.Error()),
		)
		p.shutdown(srv)
		return
	}
	p.log.Info("webhook registered",
		slog.String("event", "tg.set_webhook"),
		slog.String("url", p.publicURL),
	)

	for {
		select {
		case <-stop:
			p.shutdown(srv)
			return
		case err := <-serveErr:
			if err != nil {
				p.log.Error("ingress server failed",
					slog.String("event", "web.serve"),
					slog.String("err", err.Error()),
				)
			}
			return
		case upd := <-updates:
			select {
			case dest <- upd:
			case <-stop:
				p.shutdown(srv)
				return
			}
		}
	}
}

func (p *webhookPoller) shutdown(srv *web.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		p.log.Warn("ingress shutdown failed",
			slog.String("event", "web.shutdown"),
			slog.String("err", err.Error()),
		)
	}
}
