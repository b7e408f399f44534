package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gidrec/internal/auth"
	"gidrec/internal/domain/accesscontrol"
	"gidrec/internal/domain/users"
	"gidrec/internal/moderation"
	"gidrec/internal/ratelimiter"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type application struct {
	config        config
	logger        *zap.SugaredLogger
	engine        *moderation.Engine
	users         users.Store
	roles         accesscontrol.Store
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
	// shutdownHooks run after the HTTP server stopped, in order.
	shutdownHooks []func(ctx context.Context) error
}

type config struct {
	addr        string
	env         string
	db          dbConfig
	auth        authConfig
	review      reviewConfig
	classifier  classifierConfig
	notify      notifyConfig
	rateLimiter ratelimiter.Config
	reconcile   time.Duration
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret string
	iss    string
	aud    string
}

type basicConfig struct {
	user string
	pass string
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

type reviewConfig struct {
	maxTextLen int
	cursorSalt string
}

type classifierConfig struct {
	url        string
	model      string
	apiKey     string
	timeout    time.Duration
	maxRetries int
}

type notifyConfig struct {
	redisAddr       string
	redisChannel    string
	expoAccessToken string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// Submissions wait on the classifier, so leave room above its timeout.
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)
		r.With(app.BasicAuthMiddleware()).Handle("/metrics", promhttp.Handler())

		r.Route("/reviews", func(r chi.Router) {
			r.With(app.AuthTokenMiddleware, app.RateLimiterMiddleware).Post("/", app.createReviewHandler)
			r.Get("/{reviewID}", app.getReviewHandler)
			r.With(app.AuthTokenMiddleware).Delete("/{reviewID}", app.deleteReviewHandler)
		})

		r.Route("/places/{placeID}", func(r chi.Router) {
			r.Get("/reviews", app.listPlaceReviewsHandler)
			r.Get("/rating", app.getPlaceRatingHandler)
			r.With(app.AuthTokenMiddleware).Get("/reviews/mine", app.myPlaceReviewsHandler)
		})

		r.Route("/moderation", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Use(app.RequireRole(accesscontrol.ModerationRoles...))

			r.Get("/queue", app.moderationQueueHandler)
			r.Post("/reviews/{reviewID}/approve", app.approveReviewHandler)
			r.Post("/reviews/{reviewID}/reject", app.rejectReviewHandler)

			r.Group(func(r chi.Router) {
				r.Use(app.RequireRole(accesscontrol.RoleAdmin))
				r.Post("/places/recompute", app.recomputeAllHandler)
				r.Post("/places/{placeID}/recompute", app.recomputePlaceHandler)
			})
			r.Get("/places/{placeID}/reviews", app.moderationPlaceReviewsHandler)
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 90,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	// Implementing graceful shutdown
	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		err := srv.Shutdown(ctx)
		for _, hook := range app.shutdownHooks {
			if hookErr := hook(ctx); hookErr != nil {
				app.logger.Warnw("shutdown hook failed", "error", hookErr)
			}
		}
		shutdown <- err
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
