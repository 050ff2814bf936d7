package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/djlord-it/easy-alarm/internal/alarm"
	"github.com/djlord-it/easy-alarm/internal/analytics"
	"github.com/djlord-it/easy-alarm/internal/api"
	"github.com/djlord-it/easy-alarm/internal/circuitbreaker"
	"github.com/djlord-it/easy-alarm/internal/config"
	"github.com/djlord-it/easy-alarm/internal/domain"
	"github.com/djlord-it/easy-alarm/internal/leaderelection"
	"github.com/djlord-it/easy-alarm/internal/metrics"
	"github.com/djlord-it/easy-alarm/internal/notify"
	"github.com/djlord-it/easy-alarm/internal/reconciler"
	"github.com/djlord-it/easy-alarm/internal/resolve"
	redisstore "github.com/djlord-it/easy-alarm/internal/store/redis"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`easyalarm - durable one-shot alarm service

Usage:
  easyalarm <command>

Commands:
  serve      Start the alarm manager and HTTP API
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  REDIS_ADDR                  Redis address (required)
  HTTP_ADDR                   HTTP server address (default: ":8080")
  KEY_PREFIX                  Alarm record key prefix (default: "alarm:clock:")
  TIMEZONE                    Timezone for phrase resolution (default: "Asia/Shanghai")
  GRACE_WINDOW                Record TTL slack past the fire time (default: "5m")

  STORE_OP_TIMEOUT            Redis operation timeout (default: "5s")
  SCAN_COUNT                  Redis SCAN page size (default: "100")

  WEBHOOK_URL                 Delivery webhook endpoint (required)
  WEBHOOK_SECRET              HMAC signing secret for deliveries (optional)
  WEBHOOK_TIMEOUT             Delivery request timeout (default: "30s")

  CIRCUIT_BREAKER_THRESHOLD   Failures before the breaker opens; 0 disables (default: "5")
  CIRCUIT_BREAKER_COOLDOWN    Open-state cooldown before a probe (default: "2m")

  HTTP_SHUTDOWN_TIMEOUT       Graceful HTTP shutdown timeout (default: "10s")

  METRICS_ENABLED             Enable Prometheus metrics (default: "false")
  METRICS_PATH                Metrics endpoint path (default: "/metrics")

  RECONCILE_ENABLED           Enable timer/store reconciler (default: "false")
  RECONCILE_INTERVAL          How often to resync timers (default: "5m")

  ANALYTICS_ENABLED           Enable fired-alarm counters in Redis (default: "false")
  ANALYTICS_WINDOW            Counter bucket size (default: "1m")
  ANALYTICS_RETENTION         Counter TTL (default: "24h")

  LEADER_ENABLED              Enable leader election (default: "false")
  LEADER_KEY                  Election lease key (default: "alarm:leader")
  LEADER_LEASE_TTL            Lease duration (default: "15s")
  LEADER_RETRY_INTERVAL       Retry gap after losing an election (default: "5s")
  LEADER_HEARTBEAT_INTERVAL   Lease renewal interval (default: "2s")`)
}

// logConfigWarnings flags configuration combinations that work but
// degrade the durability or observability story.
func logConfigWarnings(cfg *config.Config) {
	if !cfg.ReconcileEnabled {
		log.Println("easyalarm: WARNING [P0]: RECONCILE_ENABLED=false - timers lost to transient store faults are never re-armed; affected alarms silently miss their fire time until restart")
	}
	if !cfg.MetricsEnabled {
		log.Println("easyalarm: WARNING [P1]: METRICS_ENABLED=false - no visibility into fire drift, delivery failures, or pending alarm counts")
	}
	if cfg.WebhookSecret == "" {
		log.Println("easyalarm: WARNING [P1]: WEBHOOK_SECRET not set - deliveries are unsigned and the receiver cannot verify them")
	}
	if cfg.CircuitBreakerThreshold == 0 {
		log.Println("easyalarm: WARNING [P1]: CIRCUIT_BREAKER_THRESHOLD=0 - circuit breaker disabled; a failing webhook endpoint receives every delivery attempt")
	}
	if !cfg.LeaderEnabled {
		log.Println("easyalarm: INFO: LEADER_ENABLED=false - single-instance mode; running multiple replicas against the same store will double-deliver alarms")
	}
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(&cfg)

	redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.StoreOpTimeout)
	err := redisClient.Ping(pingCtx).Err()
	pingCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to redis: %v\n", err)
		return exitRuntimeError
	}

	store := redisstore.New(redisClient, cfg.KeyPrefix, cfg.StoreOpTimeout)
	if cfg.ScanCount > 0 {
		store = store.WithScanCount(int64(cfg.ScanCount))
	}

	// Validated, cannot fail here.
	loc, _ := time.LoadLocation(cfg.Timezone)
	resolver := resolve.New(loc)
	log.Printf("easyalarm: phrase resolution timezone=%s", cfg.Timezone)

	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("easyalarm: metrics enabled (path=%s)", cfg.MetricsPath)
	}

	notifier := notify.New(notify.Config{
		URL:     cfg.WebhookURL,
		Secret:  cfg.WebhookSecret,
		Timeout: cfg.WebhookTimeout,
	}, notify.NewHTTPWebhookSender(), metrics.ClassifyStatus)

	if cfg.CircuitBreakerThreshold > 0 {
		breaker := circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
		if metricsSink != nil {
			breaker = breaker.WithStateListener(metricsSink.BreakerStateChanged)
		}
		notifier = notifier.WithBreaker(breaker)
		log.Printf("easyalarm: circuit breaker enabled (threshold=%d, cooldown=%s)",
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	}

	if cfg.AnalyticsEnabled {
		notifier = notifier.WithAnalytics(analytics.NewRedisSink(redisClient), domain.AnalyticsConfig{
			Enabled:   true,
			Window:    cfg.AnalyticsWindow,
			Retention: cfg.AnalyticsRetention,
		})
		log.Printf("easyalarm: analytics enabled (window=%s, retention=%s)",
			cfg.AnalyticsWindow, cfg.AnalyticsRetention)
	}

	if metricsSink != nil {
		notifier = notifier.WithMetrics(metricsSink)
	}

	manager := alarm.New(alarm.Config{GraceWindow: cfg.GraceWindow}, store, notifier)
	if metricsSink != nil {
		manager = manager.WithMetrics(metricsSink)
	}

	mux := http.NewServeMux()
	if cfg.MetricsEnabled {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}
	mux.Handle("/", api.NewHandler(manager, resolver, cfg.KeyPrefix).WithHealthChecker(store))

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("easyalarm: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("easyalarm: http server error: %v", err)
		}
	}()

	var electorWg sync.WaitGroup
	var cancelElector context.CancelFunc
	var reconcilerWg sync.WaitGroup
	var cancelReconciler context.CancelFunc

	startReconciler := func(ctx context.Context) {
		if !cfg.ReconcileEnabled {
			return
		}
		recon := reconciler.New(reconciler.Config{Interval: cfg.ReconcileInterval}, manager)
		reconcilerWg.Add(1)
		go func() {
			defer reconcilerWg.Done()
			recon.Run(ctx)
		}()
	}

	if cfg.LeaderEnabled {
		// Followers serve the API (returning 503 on lifecycle calls until
		// recovered) and take over alarm duty when the lease is won.
		onElected := func(ctx context.Context) {
			if err := manager.Recover(ctx); err != nil {
				if errors.Is(err, alarm.ErrAlreadyRecovered) {
					// Re-elected after a demotion: the store may have moved
					// on while this instance held no timers.
					if _, _, err := manager.Resync(ctx); err != nil {
						log.Printf("easyalarm: resync after re-election failed: %v", err)
					}
				} else {
					log.Printf("easyalarm: recovery failed: %v", err)
					return
				}
			}
			startReconciler(ctx)
		}
		onDemoted := func() {
			reconcilerWg.Wait()
		}

		elector := leaderelection.New(redisClient, cfg.LeaderKey,
			cfg.LeaderLeaseTTL, cfg.LeaderRetryInterval, cfg.LeaderHeartbeatInterval,
			onElected, onDemoted)
		if metricsSink != nil {
			elector = elector.WithMetrics(metricsSink)
		}

		var electorCtx context.Context
		electorCtx, cancelElector = context.WithCancel(context.Background())
		electorWg.Add(1)
		go func() {
			defer electorWg.Done()
			elector.Run(electorCtx)
		}()
	} else {
		recoverCtx, recoverCancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := manager.Recover(recoverCtx)
		recoverCancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "recovery failed: %v\n", err)
			return exitRuntimeError
		}

		var reconcilerCtx context.Context
		reconcilerCtx, cancelReconciler = context.WithCancel(context.Background())
		startReconciler(reconcilerCtx)
	}

	log.Printf("easyalarm: started (http=%s, key_prefix=%s, grace=%s)",
		cfg.HTTPAddr, cfg.KeyPrefix, cfg.GraceWindow)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("easyalarm: received signal %v, shutting down", received)

	// Phase 1: resign leadership (stops the reconciler through demotion)
	// or stop the reconciler directly.
	if cancelElector != nil {
		log.Println("easyalarm: resigning leadership...")
		cancelElector()
		electorWg.Wait()
	}
	if cancelReconciler != nil {
		log.Println("easyalarm: stopping reconciler...")
		cancelReconciler()
		reconcilerWg.Wait()
	}

	// Phase 2: stop accepting new alarms.
	log.Println("easyalarm: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("easyalarm: http server shutdown error: %v", err)
	}

	// Armed timers die with the process; records persist in Redis and the
	// next instance restores them during recovery.
	if pending := manager.Pending(); pending > 0 {
		log.Printf("easyalarm: %d pending alarm(s) left in the store for the next instance", pending)
	}

	log.Println("easyalarm: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("easyalarm version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
