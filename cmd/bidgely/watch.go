package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jgoulah/bidgely/internal/apierrors"
	"github.com/jgoulah/bidgely/internal/bidgely"
	"github.com/jgoulah/bidgely/internal/config"
	"github.com/jgoulah/bidgely/internal/database"
	"github.com/jgoulah/bidgely/internal/jobs"
	"github.com/jgoulah/bidgely/internal/metrics"
	"github.com/jgoulah/bidgely/internal/publisher"
	"github.com/jgoulah/bidgely/pkg/models"
)

const refreshJob = "refresh"

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Periodically refresh forecast and reads",
	Long: `Runs until interrupted. On every tick of the configured schedule it refreshes the
billing forecast and recent daily and hourly reads, stores them, and publishes
them to MQTT when enabled. Prometheus metrics are served on metrics_addr.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// refresher is one watch tick's work
type refresher struct {
	cfg         *config.Config
	client      *bidgely.Client
	db          *database.DB
	pub         *publisher.Publisher
	metrics     *metrics.Collector
	measurement models.MeasurementType
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	measurement, err := cfg.GetMeasurement()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegistry(reg)

	client, err := newClient(cfg, m)
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	r := &refresher{cfg: cfg, client: client, db: db, metrics: m, measurement: measurement}
	if cfg.MQTT.Enabled {
		if r.pub, err = publisher.New(cfg.MQTT, logger); err != nil {
			return fmt.Errorf("creating publisher: %w", err)
		}
		defer r.pub.Close()
	}

	ctx := cmd.Context()
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
	}

	scheduler := jobs.NewScheduler(logger, 10*time.Minute)
	if err := scheduler.Register(refreshJob, cfg.GetSchedule(), r.tick); err != nil {
		return err
	}

	// first refresh before waiting for the schedule
	if err := scheduler.RunNow(ctx, refreshJob); err != nil && errors.Is(err, context.Canceled) {
		return nil
	}

	scheduler.Start(ctx)
	defer scheduler.Stop()
	for _, job := range scheduler.ListJobs() {
		logger.Info().
			Str("job", job.Name).
			Str("schedule", job.Schedule).
			Str("next", humanize.Time(scheduler.Next(job.Name))).
			Msg("waiting for next run")
	}

	<-ctx.Done()
	return nil
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// tick runs one refresh and says whether the failure will clear on its own
func (r *refresher) tick(ctx context.Context) error {
	err := r.run(ctx)
	if err != nil {
		logRefreshFailure(zerolog.Ctx(ctx), err)
	}
	return err
}

func logRefreshFailure(log *zerolog.Logger, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		log.Info().Msg("refresh interrupted")
	case apierrors.IsRetryable(err):
		log.Warn().Int("status", apierrors.StatusCode(err)).Msg("usage service unavailable, retrying on next tick")
	case errors.Is(err, apierrors.ErrInvalidAuth):
		log.Error().Msg("login rejected, check username, password and account_id")
	default:
		log.Error().Msg("refresh failed and will not clear without intervention")
	}
}

func (r *refresher) run(ctx context.Context) error {
	log := zerolog.Ctx(ctx)

	forecast, err := withReauth(ctx, r.client, func() (*models.Forecast, error) {
		return r.client.GetForecast(ctx, r.measurement, r.cfg.GetHome())
	})
	if err != nil {
		return fmt.Errorf("refreshing forecast: %w", err)
	}
	log.Info().
		Float64("usage_to_date", forecast.UsageToDate).
		Float64("forecasted_usage", forecast.ForecastedUsage).
		Float64("forecasted_cost", forecast.ForecastedCost).
		Msg("forecast refreshed")

	if r.pub != nil {
		if err := r.pub.PublishForecast(r.client.Utility().ID(), r.measurement, forecast); err != nil {
			log.Warn().Err(err).Msg("publishing forecast failed")
		}
	}

	for _, agg := range []models.AggregateType{models.Day, models.Hour} {
		series := seriesFor(r.client, r.measurement, agg)
		n, err := fetchAndStore(ctx, r.client, r.db, series, refreshDays(agg, r.cfg.GetDaysToFetch()))
		if err != nil {
			return err
		}
		log.Info().Str("aggregate", string(agg)).Int("reads", n).Msg("reads stored")

		if r.pub != nil {
			published, total, err := publishStored(r.db, r.pub, series, false, 0)
			if err != nil {
				return err
			}
			log.Info().Str("aggregate", string(agg)).Msgf("published %d/%d reads", published, total)
		}
	}
	return nil
}

// refreshDays bounds each watch tick's lookback. Hourly data is only
// refreshed for the last few days.
func refreshDays(agg models.AggregateType, configured int) int {
	if agg == models.Hour && configured > 3 {
		return 3
	}
	if agg == models.Day && configured < 30 {
		return 30
	}
	return configured
}
