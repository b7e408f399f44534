package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"gidrec/internal/auth"
	"gidrec/internal/classifier"
	"gidrec/internal/db"
	"gidrec/internal/domain/storage"
	"gidrec/internal/idcodec"
	"gidrec/internal/moderation"
	"gidrec/internal/notifications"
	"gidrec/internal/ratelimiter"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	// Default values
	defaultRequests := 20
	defaultEnabled := true

	requestsPerTimeFrame := defaultRequests
	if val, exists := os.LookupEnv("RATELIMITER_REQUESTS_COUNT"); exists {
		if parsedVal, err := strconv.Atoi(val); err == nil && parsedVal > 0 {
			requestsPerTimeFrame = parsedVal
		} else {
			fmt.Println("Invalid RATELIMITER_REQUESTS_COUNT, defaulting to", defaultRequests)
		}
	}

	enabled := defaultEnabled
	if val, exists := os.LookupEnv("RATE_LIMITER_ENABLED"); exists {
		if parsedVal, err := strconv.ParseBool(val); err == nil {
			enabled = parsedVal
		} else {
			fmt.Println("Invalid RATE_LIMITER_ENABLED, defaulting to", defaultEnabled)
		}
	}

	return ratelimiter.Config{
		RequestsPerTimeFrame: requestsPerTimeFrame,
		TimeFrame:            time.Minute,
		Enabled:              enabled,
	}
}

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	level := zapcore.InfoLevel

	core := zapcore.NewCore(consoleEncoder, zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout)), level)

	logger := zap.New(core)

	return logger.Sugar(), nil
}

func envInt(key string, def int) int {
	if val, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("Invalid value for %s: %v", key, err)
		}
		return n
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Fatalf("Invalid value for %s: %v", key, err)
		}
		return d
	}
	return def
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

var version = "0.3.0"

//	@title			Gidrec Reviews API
//	@description	Review submission, moderation and place ratings.

//	@BasePath					/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization
//	@description

func main() {
	// .env is optional in containers where the environment is injected
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg := config{
		addr: envString("ADDR", ":8080"),
		env:  envString("ENV", "development"),
		db: dbConfig{
			addr:        os.Getenv("DB_ADDR"),
			maxConns:    int32(envInt("DB_MAX_CONNS", 30)),
			maxIdleTime: envString("DB_MAX_IDLE_TIME", "15m"),
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
			token: tokenConfig{
				secret: os.Getenv("AUTH_TOKEN_SECRET"),
				iss:    envString("AUTH_TOKEN_ISS", "gidrec"),
				aud:    envString("AUTH_TOKEN_AUD", "gidrec"),
			},
		},
		review: reviewConfig{
			maxTextLen: envInt("REVIEW_MAX_TEXT_LEN", moderation.DefaultMaxLen),
			cursorSalt: envString("REVIEW_CURSOR_SALT", "gidrec-queue"),
		},
		classifier: classifierConfig{
			url:        envString("CLASSIFIER_URL", "http://localhost:11434"),
			model:      envString("CLASSIFIER_MODEL", "llama3.1"),
			apiKey:     os.Getenv("CLASSIFIER_API_KEY"),
			timeout:    envDuration("CLASSIFIER_TIMEOUT", 15*time.Second),
			maxRetries: envInt("CLASSIFIER_MAX_RETRIES", 2),
		},
		notify: notifyConfig{
			redisAddr:       os.Getenv("REDIS_ADDR"),
			redisChannel:    envString("REDIS_CHANNEL", "reviews.moderation"),
			expoAccessToken: os.Getenv("EXPO_ACCESS_TOKEN"),
		},
		rateLimiter: LoadRateLimiterConfig(),
		reconcile:   envDuration("RATING_RECONCILE_INTERVAL", time.Hour),
	}
	if cfg.auth.token.secret == "" {
		log.Fatal("AUTH_TOKEN_SECRET is required")
	}

	// Logger
	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Database
	pool, err := db.New(ctx, cfg.db.addr, cfg.db.maxConns, cfg.db.maxIdleTime)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	// storage
	container := storage.NewContainer(pool)

	// notifications: push to the author, broadcast on redis when configured
	notifiers := notifications.Multi{
		notifications.NewPushNotifier(notifications.NewExpoAdapter(cfg.notify.expoAccessToken), container.PushTokens),
	}
	if cfg.notify.redisAddr != "" {
		rp, err := notifications.NewRedisPublisher(ctx, cfg.notify.redisAddr, cfg.notify.redisChannel)
		if err != nil {
			logger.Fatal(err)
		}
		defer rp.Close()
		notifiers = append(notifiers, rp)
		logger.Infow("moderation events published to redis", "channel", cfg.notify.redisChannel)
	}
	dispatcher := notifications.NewDispatcher(notifiers, logger, notifications.DispatcherConfig{})

	cursors, err := idcodec.New(cfg.review.cursorSalt, 8)
	if err != nil {
		logger.Fatal(err)
	}

	gateway := classifier.NewOllamaClient(classifier.Config{
		BaseURL:     cfg.classifier.url,
		Model:       cfg.classifier.model,
		APIKey:      cfg.classifier.apiKey,
		MaxRetries:  cfg.classifier.maxRetries,
		HTTPTimeout: cfg.classifier.timeout,
	}, logger)

	engine := moderation.NewEngine(moderation.Deps{
		UoW:        container,
		Reviews:    container.Reviews,
		Places:     container.Places,
		Roles:      container.AccessControl,
		Classifier: gateway,
		Events:     dispatcher,
		Cursors:    cursors,
		Logger:     logger,
	}, moderation.Config{
		MaxTextLen:        cfg.review.maxTextLen,
		ClassifierTimeout: cfg.classifier.timeout,
	})

	// Rate limiter
	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)
	defer rateLimiter.Stop()

	// Authenticator
	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.aud,
		cfg.auth.token.iss,
	)

	app := &application{
		config:        cfg,
		logger:        logger,
		engine:        engine,
		users:         container.Users,
		roles:         container.AccessControl,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
		shutdownHooks: []func(context.Context) error{
			func(context.Context) error { stop(); return nil },
			dispatcher.Close,
		},
	}

	if cfg.reconcile > 0 {
		app.reconcileRatingsEvery(ctx, cfg.reconcile)
	}

	//Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(func() any {
		s := pool.Stat()
		return map[string]any{
			"total_conns":    s.TotalConns(),
			"idle_conns":     s.IdleConns(),
			"acquired_conns": s.AcquiredConns(),
			"max_conns":      s.MaxConns(),
		}
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
