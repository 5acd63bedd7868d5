package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"telecalc/internal/chat"
	"telecalc/internal/docstore"
	"telecalc/internal/logger"
	"telecalc/internal/metrics"
	"telecalc/internal/proration"
	"telecalc/internal/ratelimit"
	"telecalc/internal/server"
)

const limiterSweepInterval = time.Minute

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calculators, chat assistant and document list over HTTP",
		Long: `Start the HTTP API:

  GET    /api/cycle            billing cycle containing ?date= for ?anchor=
  POST   /api/prorate          proration with formatted text
  POST   /api/pricing          plan quote
  POST   /api/chat             chat assistant, streamed as server-sent events
  GET    /api/documents        reference documents
  POST   /api/documents        add or update documents
  DELETE /api/documents/{id}   remove a document
  GET    /healthz, /metrics

The chat endpoint answers 503 unless OPENAI_API_KEY is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.HTTPAddr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default: $HTTP_ADDR or :8080)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	log := logger.WithComponent("serve")
	cfg := a.cfg

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	docs, err := docstore.Open(cfg.DocumentsPath, cfg.Documents, a.clock, docstore.WithObserver(m.ObserveDocumentWrite))
	if err != nil {
		return err
	}
	go func() {
		if err := docs.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("Document store watch stopped; external edits need a restart")
		}
	}()

	limiter := ratelimit.New(cfg.ChatRatePerMinute, cfg.ChatRateBurst, a.clock)
	go limiter.Run(ctx, limiterSweepInterval)

	var streamer chat.Streamer
	if cfg.ChatEnabled() {
		openAI, err := chat.NewOpenAIStreamer(chat.OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.OpenAIModel,
			MaxTokens: cfg.ChatMaxTokens,
		})
		if err != nil {
			return err
		}
		streamer = openAI
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, chat is disabled")
	}

	assistant := chat.NewService(streamer, chat.Config{
		AnchorDay: cfg.AnchorDay,
		VATRate:   cfg.VATRate,
		DateStyle: proration.DateStyle(cfg.DateStyle),
	}, a.clock)

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Int("anchor_day", cfg.AnchorDay).
		Float64("vat_rate", cfg.VATRate).
		Bool("chat", cfg.ChatEnabled()).
		Int("documents", len(docs.List())).
		Msg("Starting telecalc server")

	return server.New(server.Deps{
		Config:    cfg,
		Chat:      assistant,
		Limiter:   limiter,
		Documents: docs,
		Metrics:   m,
		Gatherer:  reg,
	}).Run(ctx)
}
