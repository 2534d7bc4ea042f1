package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	MessagesGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "synthesis_messages_generated_total",
		Help: "Сгенерированные сообщения по источнику",
	}, []string{"source"})
	GenerationFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "synthesis_generation_fallbacks_total",
		Help: "Сколько раз стратегия чата уступила общему генератору",
	})
	BacklogBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "synthesis_backlog_build_seconds",
		Help:    "Время построения истории всех чатов",
		Buckets: prometheus.DefBuckets,
	})
	LiveTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "live_ticks_total",
		Help: "Тики планировщика живых сообщений по результату",
	}, []string{"result"})
	UnreadRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "live_unread_ratio",
		Help: "Доля чатов с непрочитанными сообщениями",
	})
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_published_total",
		Help: "Опубликованные события по получателю и статусу",
	}, []string{"sink", "status"})
	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_clients",
		Help: "Подключённые WebSocket клиенты",
	})
	RemoteCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remote_commands_total",
		Help: "Команды пульта презентующего",
	}, []string{"command"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		MessagesGenerated,
		GenerationFallbacks,
		BacklogBuildSeconds,
		LiveTicks,
		UnreadRatio,
		EventsPublished,
		WSClients,
		RemoteCommands,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// IncGenerated увеличивает счётчик сообщений для источника.
func IncGenerated(source string) {
	MessagesGenerated.WithLabelValues(source).Inc()
}

// IncTick учитывает результат тика планировщика: injected, skipped или idle.
func IncTick(result string) {
	LiveTicks.WithLabelValues(result).Inc()
}

// ObservePublish учитывает доставку события получателю.
func ObservePublish(sink string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EventsPublished.WithLabelValues(sink, status).Inc()
}
