// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"embed"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"app/modules/appconfig"
	"app/modules/clock"
	"app/modules/db/redis"
	"app/modules/db/redis/counter"
	"app/modules/middleware"
	"app/modules/middleware/problem"
	"app/modules/middleware/ratelimit"
	rl "app/modules/ratelimit"
	"app/modules/server"
	"app/modules/services"
	"app/modules/telemetry"

	proxy_rest "app/core/onekey/adapters/rest"
	"app/core/onekey/client"
	"app/core/onekey/crypto"
)

// OpenAPI specs for request validation at runtime
//
//go:embed modules/oapi/*.yaml
var validationSpecFS embed.FS

func main() {
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	// cancel the context when these signals occur
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGKILL, syscall.SIGTERM, os.Interrupt)
	defer cancel()

	// manual dependency injections, imo there's no need to over-engineer with DI frameworks like Fx or Wire
	slog.SetLogLoggerLevel(slog.LevelDebug)

	clock := clock.RealClock{}

	// --- application config ----
	appConfig, err := appconfig.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// --- infrastructure ---

	otelShutdown, err := telemetry.Init(ctx, appConfig.Otel)
	if err != nil {
		slog.ErrorContext(ctx, "telemetry not properly configured", slog.Any("error", err))
		exitCode = 1
		return
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.ErrorContext(ctx, "telemetry shutdown error", slog.Any("error", err))
		}
	}()

	limiterFactory, limiterCleanup, err := limiterFactoryFor(ctx, clock, appConfig)
	if err != nil {
		slog.ErrorContext(ctx, "redis not properly setup", slog.Any("error", err))
		exitCode = 1
		return
	}
	defer limiterCleanup()

	keyStrategies := map[ratelimit.KeyStrategyId]ratelimit.KeyFunc{
		"remote_ip": ratelimit.RemoteIpKeyFunc,
	}

	slog.Debug("app rate limit config", slog.Any("rate_limit_config", appConfig.RateLimit))

	rtp, err := ratelimit.ParsePolicy(
		limiterFactory,
		&appConfig.RateLimit,
		func(r *http.Request) ratelimit.RouteInfo {
			id := ratelimit.Pattern(r.Pattern)
			// pattern is empty if request is not matched again a pattern
			if r.Pattern == "" {
				id = ratelimit.Pattern(r.URL.Path)
			}
			return ratelimit.RouteInfo{
				ID:     id,
				Method: r.Method,
				Path:   r.URL.Path,
			}
		},
		keyStrategies,
	)
	if err != nil {
		slog.ErrorContext(ctx, "ratelimit config not properly parsed", slog.Any("error", err))
		exitCode = 1
		return
	}

	rateLimitMiddleware := ratelimit.NewRateLimitMiddleware(rtp)

	// --- the exchange client ---

	keys, err := crypto.LoadPublicKeyRegistry(appConfig.OneKey.PublicKeysFile)
	if err != nil {
		slog.ErrorContext(ctx, "public key registry error", slog.Any("error", err))
		exitCode = 1
		return
	}

	operatorClient, err := client.New(client.Config{
		Protocol:     appConfig.OneKey.OperatorProtocol,
		OperatorHost: appConfig.OneKey.OperatorHost,
		Sender:       appConfig.OneKey.ClientDomain,
		PrivateKey:   appConfig.OneKey.PrivateKeyPEM(),
		Keys:         keys,
		Clock:        clock,
	})
	if err != nil {
		slog.ErrorContext(ctx, "operator client setup error", slog.Any("error", err))
		exitCode = 1
		return
	}

	backendClient, err := client.NewBackendClient(
		operatorClient,
		client.RedirectMode(appConfig.OneKey.RedirectMode),
		appConfig.OneKey.CookieTTL,
	)
	if err != nil {
		slog.ErrorContext(ctx, "backend client setup error", slog.Any("error", err))
		exitCode = 1
		return
	}

	// --- application layer ---

	proxyApi := proxy_rest.NewProxyAPI(operatorClient, backendClient)

	// Initialize HTTP metrics for middleware-based instrumentation
	httpMetrics, err := telemetry.NewHTTPMetrics("onekey-proxy")
	if err != nil {
		slog.WarnContext(ctx, "failed to initialize HTTP metrics, continuing without metrics", slog.Any("error", err))
		httpMetrics = nil
	}

	proxySvc := services.NewOneKeyProxyService(
		proxyApi,
		appConfig.OneKey.AllowedOrigins,
		validationSpecFS,
		"modules/oapi/openapi-onekey.yaml",
	)

	server, err := server.New(
		"0.0.0.0", 8080,
		server.WithWriteTimeout(10*time.Second),
		server.WithServices(proxySvc),
		server.WithGlobalMiddlewares(
			middleware.Telemetry(httpMetrics),
			middleware.RequestID(),
			rateLimitMiddleware,
			middleware.Recovery(func(w http.ResponseWriter, r *http.Request, _ any) {
				problem.Write(w, problem.Internal("unexpected server error"))
			}),
		),
	)
	if err != nil {
		slog.ErrorContext(ctx, "init server error", slog.Any("error", err))
		exitCode = 1
		return
	}

	if err := server.Run(ctx); err != nil {
		slog.ErrorContext(ctx, "running server error", slog.Any("error", err))
		exitCode = 1
		return
	}
}

// limiterFactoryFor picks the rate limiting backend: a shared redis sliding
// window when a redis URL is configured, otherwise the per-instance token
// bucket. The returned cleanup closes the redis client if one was opened.
func limiterFactoryFor(ctx context.Context, clk clock.Clock, cfg *appconfig.Config) (rl.LimiterFactory, func(), error) {
	if cfg.Redis.URL == "" {
		slog.InfoContext(ctx, "redis url not set, rate limiting with in-process token buckets")
		return rl.TokenBucketFactory(), func() {}, nil
	}

	redisClient, err := redis.NewRueidisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	redisCounter := counter.NewRedisCounterStore(redisClient, cfg.Env)
	return rl.SlidingWindowFactory(clk, redisCounter, cfg.Env), redisClient.Close, nil
}
