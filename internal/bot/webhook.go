package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-modbot/internal/config"
	"tg-modbot/internal/events"
	"tg-modbot/internal/logger"
)

// update kinds the router consumes
var allowedUpdates = []string{"message", "poll", "my_chat_member"}

// WebhookServer represents a webhook HTTP server
type WebhookServer struct {
	server   *http.Server
	certFile string
	keyFile  string
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a clean shutdown.
func (ws *WebhookServer) Start() error {
	logger.Infof("Starting HTTP server on %s", ws.server.Addr)

	if ws.certFile != "" && ws.keyFile != "" {
		logger.Infof("Using TLS with cert: %s, key: %s", ws.certFile, ws.keyFile)
		return ws.server.ListenAndServeTLS(ws.certFile, ws.keyFile)
	}

	logger.Warning("Running without TLS. Make sure you have a HTTPS proxy in front of this server")
	return ws.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ws *WebhookServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

type WebhookOptions struct {
	Config      config.WebhookConfig
	SecretToken string
	Identity    events.BotIdentity
	// Status renders the body of the debug page
	Status  func() string
	Metrics http.Handler
}

// SetupWebhook registers the webhook with Telegram and builds the server
// receiving it, together with the debug and metrics endpoints.
func SetupWebhook(ctx context.Context, bot *telego.Bot, opts WebhookOptions) (*th.BotHandler, *WebhookServer, error) {
	cfg := opts.Config
	if cfg.Endpoint == "" {
		return nil, nil, fmt.Errorf("webhook endpoint is required")
	}

	listenPort := cfg.ListenPort
	if listenPort == "" {
		listenPort = "8443"
		logger.Infof("Using default listen port: %s", listenPort)
	}

	if (cfg.CertFile == "" || cfg.KeyFile == "") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return nil, nil, fmt.Errorf("HTTPS configuration required: set cert_file and key_file in config or use a HTTPS proxy")
	}

	parsedURL, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}

	webhookPath := parsedURL.Path
	if webhookPath == "" {
		webhookPath = "/webhook"
		logger.Infof("No path specified in webhook endpoint, using default path: %s", webhookPath)
	}

	logger.Infof("Setting webhook to: %s", cfg.Endpoint)
	err = bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:            cfg.Endpoint,
		AllowedUpdates: allowedUpdates,
		SecretToken:    opts.SecretToken,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set webhook: %w", err)
	}

	webhookInfo, err := bot.GetWebhookInfo(ctx)
	if err != nil {
		logger.Warningf("Failed to get webhook info: %v", err)
	} else {
		logger.Infof("Webhook info: URL=%s, HasCustomCert=%v, PendingUpdateCount=%d",
			webhookInfo.URL, webhookInfo.HasCustomCertificate, webhookInfo.PendingUpdateCount)
		if webhookInfo.LastErrorDate > 0 {
			logger.Infof("Webhook last error: [%d] %s", webhookInfo.LastErrorDate, webhookInfo.LastErrorMessage)
		}
		logger.Infof("Allowed updates: %v", webhookInfo.AllowedUpdates)
	}

	mux := http.NewServeMux()

	if cfg.DebugPath != "" {
		mux.HandleFunc(cfg.DebugPath, debugHandler(ctx, bot, opts, webhookPath))
	}
	if cfg.MetricsPath != "" && opts.Metrics != nil {
		mux.Handle(cfg.MetricsPath, opts.Metrics)
		logger.Infof("Serving metrics on %s", cfg.MetricsPath)
	}

	server := &http.Server{
		Addr:              "0.0.0.0:" + listenPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	updates, err := bot.UpdatesViaWebhook(ctx,
		telego.WebhookHTTPServeMux(mux, webhookPath, opts.SecretToken),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get updates channel: %w", err)
	}

	bh, err := th.NewBotHandler(bot, updates)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bot handler: %w", err)
	}

	return bh, &WebhookServer{
		server:   server,
		certFile: cfg.CertFile,
		keyFile:  cfg.KeyFile,
	}, nil
}

func debugHandler(ctx context.Context, bot *telego.Bot, opts WebhookOptions, webhookPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Debugf("Debug endpoint accessed: %s %s", r.Method, r.URL.Path)

		var b strings.Builder
		b.WriteString("Bot webhook server is running\n\n")
		fmt.Fprintf(&b, "Bot username: %s\n", opts.Identity.Username)
		fmt.Fprintf(&b, "Webhook path: %s\n", webhookPath)

		webhookInfo, err := bot.GetWebhookInfo(ctx)
		if err == nil {
			b.WriteString("\nWebhook Info:\n")
			fmt.Fprintf(&b, "URL: %s\n", webhookInfo.URL)
			fmt.Fprintf(&b, "Custom Certificate: %v\n", webhookInfo.HasCustomCertificate)
			fmt.Fprintf(&b, "Pending Updates: %d\n", webhookInfo.PendingUpdateCount)

			if webhookInfo.LastErrorDate > 0 {
				errorTime := time.Unix(int64(webhookInfo.LastErrorDate), 0)
				fmt.Fprintf(&b, "Last Error: [%s] %s\n",
					errorTime.Format("2006-01-02 15:04:05"),
					webhookInfo.LastErrorMessage)
			}
		} else {
			fmt.Fprintf(&b, "\nError getting webhook info: %v\n", err)
		}

		if opts.Status != nil {
			b.WriteString(opts.Status())
			b.WriteString("\n")
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(b.String()))
	}
}
