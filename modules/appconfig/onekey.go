package appconfig

import "time"

// OneKeyConfig is everything the operator client needs. All of it is fixed
// at startup and read-only afterwards.
type OneKeyConfig struct {
	// OperatorProtocol is https in any real deployment; http exists for
	// local operator stubs.
	OperatorProtocol string `env:"OPERATOR_PROTOCOL" envDefault:"https"`
	OperatorHost     string `env:"OPERATOR_HOST,notEmpty"`

	// ClientDomain is this publisher's declared sender domain.
	ClientDomain string `env:"CLIENT_DOMAIN,notEmpty"`

	// PrivateKey is the PEM-encoded ECDSA signing key, inline or read from
	// a file. The file wins when both are set.
	PrivateKey     string `env:"PRIVATE_KEY,unset"`
	PrivateKeyFile string `env:"PRIVATE_KEY_FILE,file"`

	// PublicKeysFile is a JSON file mapping sender domains to PEM public
	// keys: the verification registry.
	PublicKeysFile string `env:"PUBLIC_KEYS_FILE,notEmpty"`

	// AllowedOrigins is the cross-origin caller allow-list of the proxy.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// RedirectMode selects http (3xx) or meta (meta-refresh page) redirects.
	RedirectMode string `env:"REDIRECT_MODE" envDefault:"http"`

	// CookieTTL is the cache lifetime of the exchange cookies.
	CookieTTL time.Duration `env:"COOKIE_TTL" envDefault:"720h"`
}

// PrivateKeyPEM returns the effective signing key material.
func (c OneKeyConfig) PrivateKeyPEM() string {
	if c.PrivateKeyFile != "" {
		return c.PrivateKeyFile
	}
	return c.PrivateKey
}
