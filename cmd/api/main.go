package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"slack-mock/internal/adapters/completion"
	"slack-mock/internal/adapters/configstore"
	"slack-mock/internal/adapters/embeds"
	"slack-mock/internal/adapters/httpapi"
	"slack-mock/internal/adapters/remote"
	"slack-mock/internal/domain"
	"slack-mock/internal/infra/bus"
	"slack-mock/internal/infra/cache"
	"slack-mock/internal/infra/config"
	httpinfra "slack-mock/internal/infra/http"
	logpkg "slack-mock/internal/infra/log"
	"slack-mock/internal/infra/metrics"
	"slack-mock/internal/infra/openai"
	"slack-mock/internal/infra/ws"
	"slack-mock/internal/usecase/scheduler"
	"slack-mock/internal/usecase/synthesis"
	"slack-mock/internal/usecase/workspace"
)

func main() {
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Warn().Err(err).Str("tz", cfg.TZ).Msg("api: unknown time zone, using UTC")
		loc = time.UTC
	}

	dir, err := configstore.Load(cfg.DataDir, logpkg.Component(logger, "configstore"))
	if err != nil {
		logger.Fatal().Err(err).Msg("api: invalid workspace configuration")
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	calendar, err := synthesis.NewCalendar(cfg.Backlog.WorkdaysCron)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: invalid workdays cron")
	}
	catalog := synthesis.NewCatalog(dir, synthesis.Scenarios, logpkg.Component(logger, "catalog"))
	gen := synthesis.NewGenerator(dir, catalog, synthesis.Scenarios, synthesis.NewRandom(seed), nil, synthesis.Options{
		Max:      cfg.Backlog.Max,
		Calendar: calendar,
	})

	hub := ws.NewHub(logpkg.Component(logger, "ws"))
	local := bus.NewMemory()
	fanout := bus.NewMulti(logpkg.Component(logger, "bus"),
		bus.Sink{Name: "ws", Publisher: hub},
		bus.Sink{Name: "memory", Publisher: local},
	)
	redisClient, closers := attachBrokers(ctx, cfg, fanout, logger)
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	clock := func() time.Time { return time.Now().In(loc) }
	engine := synthesis.NewEngine(dir, catalog, gen, fanout, synthesis.Config{
		UnreadClearDelay: cfg.Live.UnreadClearDelay,
		Clock:            clock,
		Completer:        newCompleter(ctx, cfg, dir, logger),
		Fallback:         completion.NewScripted(synthesis.NewRandom(seed+2), clock),
	}, logpkg.Component(logger, "engine"))
	engine.Init()

	if !cfg.Live.Disabled {
		policy := scheduler.Policy{
			LowThreshold:  cfg.Live.LowThreshold,
			HighThreshold: cfg.Live.HighThreshold,
			Low:           scheduler.Band{Min: cfg.Live.LowDelayMin, Max: cfg.Live.LowDelayMax},
			Mid:           scheduler.Band{Min: cfg.Live.MidDelayMin, Max: cfg.Live.MidDelayMax},
			High:          scheduler.Band{Min: cfg.Live.HighDelayMin, Max: cfg.Live.HighDelayMax},
			HighSkip:      cfg.Live.HighSkip,
		}
		if err := policy.Validate(); err != nil {
			logger.Fatal().Err(err).Msg("api: invalid live policy")
		}
		injector := scheduler.NewInjector(engine, policy, synthesis.NewRandom(seed+1), domain.RealAfterFunc, logpkg.Component(logger, "injector"))
		partner := scheduler.NewPartner(engine, cfg.Live.PartnerInterval, domain.RealAfterFunc, logpkg.Component(logger, "partner"))
		selected, unsubscribe := local.Subscribe(16)
		defer unsubscribe()
		injector.Start(ctx)
		partner.Start(ctx)
		go partner.Follow(ctx, selected)
		defer injector.Stop()
		defer partner.Stop()
	}

	server := httpinfra.NewServer(logpkg.Component(logger, "http"))
	server.Router.Handle("/ws", hub)
	faces := http.StripPrefix(workspace.FacesURLPrefix, http.FileServer(http.Dir(filepath.Join(cfg.DataDir, "assets", "faces"))))
	server.Router.Handle(workspace.FacesURLPrefix+"*", faces)
	httpapi.NewHandler(engine, embeds.NewDetector(dir), dir, logpkg.Component(logger, "api")).Register(server.Router, cfg.RequestTimeout)

	if cfg.Telegram.Token != "" {
		var dedup remote.Deduper = cache.NewMemory()
		if redisClient != nil {
			dedup = cache.NewRedis(redisClient, "slack-mock:remote:")
		}
		if err := mountRemote(server, cfg, engine, dedup, logpkg.Component(logger, "remote")); err != nil {
			logger.Error().Err(err).Msg("api: presenter remote disabled")
		}
	}

	if cfg.MetricsAddr != "" {
		metrics.StartServer(ctx, logpkg.Component(logger, "metrics"), cfg.MetricsAddr)
	}

	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: server stopped")
			stop()
		}
	}()
	logger.Info().
		Str("company", dir.Company().Name).
		Int("chats", len(catalog.Chats())).
		Uint64("seed", seed).
		Msg("api: started")

	<-ctx.Done()
	logger.Info().Msg("api: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: graceful shutdown failed")
	}
	engine.Wait()
}

// attachBrokers подключает необязательные Redis и RabbitMQ. Недоступный брокер не мешает старту.
// Возвращает живой клиент Redis или nil.
func attachBrokers(ctx context.Context, cfg config.AppConfig, fanout *bus.Multi, logger zerolog.Logger) (*redis.Client, []func()) {
	var (
		closers []func()
		live    *redis.Client
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		pub := bus.NewRedis(client, cfg.Redis.Channel)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := pub.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("api: redis unavailable, events not mirrored")
			_ = client.Close()
		} else {
			fanout.Add(bus.Sink{Name: "redis", Publisher: pub})
			closers = append(closers, func() { _ = client.Close() })
			live = client
		}
	}
	if cfg.Rabbit.URL != "" {
		pub, err := bus.NewRabbit(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			logger.Warn().Err(err).Msg("api: rabbitmq unavailable, events not mirrored")
		} else {
			fanout.Add(bus.Sink{Name: "rabbitmq", Publisher: pub})
			closers = append(closers, func() { _ = pub.Close() })
		}
	}
	return live, closers
}

// newCompleter выбирает модель ассистента. Без ключа возвращает nil, и движок отвечает заготовками.
func newCompleter(ctx context.Context, cfg config.AppConfig, dir domain.Directory, logger zerolog.Logger) domain.Completer {
	limiter := rate.NewLimiter(rate.Limit(cfg.AI.RPS), cfg.AI.Burst)
	system := completion.SystemPrompt(dir.Company(), dir.Assistant().Name, dir.Viewer().Name)
	switch cfg.AI.Provider {
	case "gemini":
		if cfg.AI.GeminiKey == "" {
			break
		}
		g, err := completion.NewGemini(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiModel, system, limiter)
		if err != nil {
			logger.Warn().Err(err).Msg("api: gemini unavailable, using scripted replies")
			return nil
		}
		logger.Info().Str("model", cfg.AI.GeminiModel).Msg("api: assistant uses gemini")
		return g
	default:
		if cfg.AI.OpenAIKey == "" {
			break
		}
		client := openai.NewClient(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.Timeout)
		logger.Info().Str("model", cfg.AI.OpenAIModel).Msg("api: assistant uses openai")
		return completion.NewOpenAI(client, cfg.AI.OpenAIModel, system, limiter)
	}
	logger.Info().Str("provider", cfg.AI.Provider).Msg("api: no api key, using scripted replies")
	return nil
}

func mountRemote(server *httpinfra.Server, cfg config.AppConfig, engine *synthesis.Engine, dedup remote.Deduper, logger zerolog.Logger) error {
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("telegram bot: %w", err)
	}
	if cfg.Telegram.PresenterChatID == 0 {
		logger.Warn().Msg("remote: TG_PRESENTER_CHAT_ID is empty, all commands will be ignored")
	}
	handler := remote.NewHandler(bot, engine, cfg.Telegram.PresenterChatID, logger).WithDeduper(dedup)
	server.Router.With(httpinfra.WebhookSecretMiddleware(cfg.Telegram.WebhookSecret)).Post("/bot/webhook", handler.ServeHTTP)
	if cfg.Telegram.WebhookURL != "" {
		if err := remote.RegisterWebhook(bot, cfg.Telegram.WebhookURL); err != nil {
			return err
		}
	}
	logger.Info().Str("bot", bot.Self.UserName).Msg("remote: webhook mounted")
	return nil
}
