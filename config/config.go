package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"contractorium/crypto"
	"contractorium/native/bounty"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ChainID        uint64 `toml:"ChainID"`
	RPCAddress     string `toml:"RPCAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	// KeystorePath holds the operator key. Its address is the default
	// deployer and manager at genesis.
	KeystorePath string `toml:"KeystorePath"`

	Bounty    BountyConfig    `toml:"Bounty"`
	RPC       RPCConfig       `toml:"RPC"`
	Logging   LoggingConfig   `toml:"Logging"`
	Telemetry TelemetryConfig `toml:"Telemetry"`
	Indexer   IndexerConfig   `toml:"Indexer"`
}

// BountyConfig seeds the platform on first start. Later edits have no effect
// once the ledger holds a config.
type BountyConfig struct {
	Manager         string            `toml:"Manager"`
	Deployer        string            `toml:"Deployer"`
	CutBps          *uint32           `toml:"CutBps,omitempty"`
	InitialBalances map[string]uint64 `toml:"InitialBalances"`
}

type RPCConfig struct {
	// JWTSecretEnv names the environment variable holding the HMAC secret.
	// Write methods require a bearer token when it is set.
	JWTSecretEnv       string   `toml:"JWTSecretEnv"`
	JWTIssuer          string   `toml:"JWTIssuer"`
	JWTAudience        []string `toml:"JWTAudience"`
	RateLimitPerSecond float64  `toml:"RateLimitPerSecond"`
	RateLimitBurst     int      `toml:"RateLimitBurst"`
	MaxBodyBytes       int64    `toml:"MaxBodyBytes"`
	EventHistory       int      `toml:"EventHistory"`
	// MaxConnections caps concurrent RPC connections. Zero means unlimited.
	MaxConnections int `toml:"MaxConnections"`
}

type LoggingConfig struct {
	Env        string `toml:"Env"`
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}

// IndexerConfig points the settlement indexer at a SQL database. DSNs starting
// with postgres:// use Postgres; anything else is a SQLite path.
type IndexerConfig struct {
	Enabled bool   `toml:"Enabled"`
	DSN     string `toml:"DSN"`
	// WebhookURL receives signed settlement and refund notifications. The
	// HMAC secret is read from the variable named by WebhookSecretEnv.
	WebhookURL       string `toml:"WebhookURL"`
	WebhookSecretEnv string `toml:"WebhookSecretEnv"`
}

// Cut returns the configured finder share, or the platform default when the
// field is omitted.
func (b BountyConfig) Cut() uint32 {
	if b.CutBps == nil {
		return bounty.DefaultCutBps
	}
	return *b.CutBps
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	passphrase func() (string, error)
}

// WithKeystorePassphraseSource sets how the operator keystore passphrase is
// obtained when a new keystore has to be written. Without it the passphrase
// is empty, which only suits tests and local runs.
func WithKeystorePassphraseSource(source func() (string, error)) LoadOption {
	return func(o *loadOptions) {
		if source != nil {
			o.passphrase = source
		}
	}
}

func resolveLoadOptions(opts []LoadOption) loadOptions {
	o := loadOptions{passphrase: func() (string, error) { return "", nil }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Load loads the configuration from the given path, creating a default file
// and operator keystore when none exists.
func Load(path string, opts ...LoadOption) (*Config, error) {
	options := resolveLoadOptions(opts)
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path, options)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if err := ensureKeystore(path, cfg, options); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ChainID == 0 {
		cfg.ChainID = 1
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./contractorium-data"
	}
	if cfg.Bounty.InitialBalances == nil {
		cfg.Bounty.InitialBalances = map[string]uint64{}
	}
	if cfg.RPC.RateLimitPerSecond == 0 {
		cfg.RPC.RateLimitPerSecond = 20
	}
	if cfg.RPC.RateLimitBurst == 0 {
		cfg.RPC.RateLimitBurst = 40
	}
	if cfg.RPC.MaxBodyBytes == 0 {
		cfg.RPC.MaxBodyBytes = 1 << 20
	}
	if cfg.RPC.EventHistory == 0 {
		cfg.RPC.EventHistory = 1024
	}
}

func ensureKeystore(configPath string, cfg *Config, options loadOptions) error {
	keystorePath := cfg.KeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		pass, passErr := options.passphrase()
		if passErr != nil {
			return passErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, pass); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.KeystorePath != keystorePath {
		cfg.KeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file. The freshly
// generated operator becomes deployer and manager.
func createDefault(path string, options loadOptions) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	pass, err := options.passphrase()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, pass); err != nil {
		return nil, err
	}

	operator := key.PubKey().Address().String()
	defaultCut := bounty.DefaultCutBps
	cfg := &Config{
		ChainID:        1,
		RPCAddress:     ":8080",
		MetricsAddress: ":9100",
		DataDir:        "./contractorium-data",
		KeystorePath:   keystorePath,
		Bounty: BountyConfig{
			Manager:         operator,
			Deployer:        operator,
			CutBps:          &defaultCut,
			InitialBalances: map[string]uint64{},
		},
		Logging: LoggingConfig{Env: "local", Level: "info"},
		Indexer: IndexerConfig{DSN: "indexer.db"},
	}
	applyDefaults(cfg)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
