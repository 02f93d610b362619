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

package appconfig

import (
	"fmt"

	"app/core/onekey/client"
	"app/modules/db/redis"
	"app/modules/middleware/ratelimit"
	"app/modules/telemetry"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env string `env:"ENV" envDefault:"dev"`

	// --- the exchange itself ---
	OneKey OneKeyConfig `envPrefix:"ONEKEY_"`

	// --- core infra ----
	Redis redis.RedisConfig `envPrefix:"REDIS_"`

	// --- middlewares ----
	RateLimit ratelimit.RestHTTPConfig `envPrefix:"RATE_LIMIT_"`

	// --- otel ----
	// since it has special naming conventions, we do not use prefix here
	Otel telemetry.Config
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Central validation: a bad exchange value must stop the process at startup,
// never surface per request.
func validate(c *Config) error {
	if c.OneKey.PrivateKeyPEM() == "" {
		return fmt.Errorf("appconfig: one of ONEKEY_PRIVATE_KEY or ONEKEY_PRIVATE_KEY_FILE is required")
	}
	if mode := client.RedirectMode(c.OneKey.RedirectMode); !mode.Valid() {
		return fmt.Errorf("appconfig: unsupported redirect mode %q", c.OneKey.RedirectMode)
	}
	if c.OneKey.CookieTTL <= 0 {
		return fmt.Errorf("appconfig: ONEKEY_COOKIE_TTL must be positive")
	}
	return nil
}
