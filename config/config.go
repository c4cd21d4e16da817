package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Trading   TradingConfig   `yaml:"trading"`
	Feed      FeedConfig      `yaml:"feed"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

// TradingConfig controla el sizing, los límites de riesgo y las salidas.
type TradingConfig struct {
	BasePositionSize         float64 `yaml:"base_position_size"`  // USDC por posición antes de multiplicadores
	MaxPositionSize          float64 `yaml:"max_position_size"`   // tope absoluto por posición
	MaxTotalExposure         float64 `yaml:"max_total_exposure"`  // suma de cost basis de posiciones abiertas
	MaxSimultaneousPositions int     `yaml:"max_simultaneous_positions"`
	MaxHoldTimeSeconds       int     `yaml:"max_hold_time_seconds"`
	ProfitTargetPct          float64 `yaml:"profit_target_pct"` // fracción, ej. 0.20 = +20%
	StopLossPct              float64 `yaml:"stop_loss_pct"`     // fracción, ej. 0.15 = -15%
	CooldownMinutes          int     `yaml:"cooldown_minutes"`
	DailyLossLimit           float64 `yaml:"daily_loss_limit"` // USDC, positivo
	MaxDailyTrades           int     `yaml:"max_daily_trades"`
	MinGapPercent            float64 `yaml:"min_gap_percent"` // fracción mínima de gap para generar oportunidad
	ExitSweepSeconds         int     `yaml:"exit_sweep_seconds"`
}

// FeedConfig controla el stream de precios y la reconexión.
type FeedConfig struct {
	StreamURL            string   `yaml:"stream_url"`
	Assets               []string `yaml:"assets"`               // ej. [BTC, ETH, SOL]
	SignificantMovePct   float64  `yaml:"significant_move_pct"` // |change1m| que dispara scan inmediato
	ReconnectInitialMs   int      `yaml:"reconnect_initial_ms"`
	ReconnectMaxMs       int      `yaml:"reconnect_max_ms"`
	ReconnectMaxAttempts int      `yaml:"reconnect_max_attempts"`
}

// DiscoveryConfig controla el descubrimiento de mercados y el refresco de precios.
type DiscoveryConfig struct {
	MinVolume                float64 `yaml:"min_volume"`           // volumen 24h mínimo en USDC
	MinResolutionHours       float64 `yaml:"min_resolution_hours"` // horas mínimas hasta resolución
	DiscoveryIntervalMinutes int     `yaml:"discovery_interval_minutes"`
	PriceRefreshSeconds      int     `yaml:"price_refresh_seconds"` // intervalo mínimo entre refrescos del cache
	ScanThrottleSeconds      int     `yaml:"scan_throttle_seconds"` // mínimo entre scans por asset
}

// APIConfig contiene los base URLs de las APIs de Polymarket.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// MaxHoldTime devuelve el tiempo máximo de hold como time.Duration.
func (c *Config) MaxHoldTime() time.Duration {
	return time.Duration(c.Trading.MaxHoldTimeSeconds) * time.Second
}

// Cooldown devuelve la duración del cooldown por mercado.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Trading.CooldownMinutes) * time.Minute
}

// ExitSweepInterval devuelve el periodo del barrido de salidas.
func (c *Config) ExitSweepInterval() time.Duration {
	return time.Duration(c.Trading.ExitSweepSeconds) * time.Second
}

// DiscoveryInterval devuelve el periodo de re-descubrimiento de mercados.
func (c *Config) DiscoveryInterval() time.Duration {
	return time.Duration(c.Discovery.DiscoveryIntervalMinutes) * time.Minute
}

// PriceRefreshInterval devuelve el intervalo mínimo entre refrescos del price cache.
func (c *Config) PriceRefreshInterval() time.Duration {
	return time.Duration(c.Discovery.PriceRefreshSeconds) * time.Second
}

// ScanThrottle devuelve el intervalo mínimo entre scans del mismo asset.
func (c *Config) ScanThrottle() time.Duration {
	return time.Duration(c.Discovery.ScanThrottleSeconds) * time.Second
}

// ReconnectInitialDelay devuelve el delay inicial del backoff de reconexión.
func (c *Config) ReconnectInitialDelay() time.Duration {
	return time.Duration(c.Feed.ReconnectInitialMs) * time.Millisecond
}

// ReconnectMaxDelay devuelve el delay máximo del backoff de reconexión.
func (c *Config) ReconnectMaxDelay() time.Duration {
	return time.Duration(c.Feed.ReconnectMaxMs) * time.Millisecond
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("GAPBOT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("GAPBOT_STREAM_URL"); v != "" {
		cfg.Feed.StreamURL = v
	}
	if v := os.Getenv("GAPBOT_ASSETS"); v != "" {
		cfg.Feed.Assets = splitAssets(v)
	}
}

// splitAssets parsea una lista separada por comas ("BTC,ETH") a símbolos en mayúsculas.
func splitAssets(v string) []string {
	parts := strings.Split(v, ",")
	assets := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.ToUpper(strings.TrimSpace(p)); s != "" {
			assets = append(assets, s)
		}
	}
	return assets
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Trading.BasePositionSize <= 0 {
		cfg.Trading.BasePositionSize = 100
	}
	if cfg.Trading.MaxPositionSize <= 0 {
		cfg.Trading.MaxPositionSize = 500
	}
	if cfg.Trading.MaxTotalExposure <= 0 {
		cfg.Trading.MaxTotalExposure = 2000
	}
	if cfg.Trading.MaxSimultaneousPositions <= 0 {
		cfg.Trading.MaxSimultaneousPositions = 5
	}
	if cfg.Trading.MaxHoldTimeSeconds <= 0 {
		cfg.Trading.MaxHoldTimeSeconds = 3600
	}
	if cfg.Trading.ProfitTargetPct <= 0 {
		cfg.Trading.ProfitTargetPct = 0.20
	}
	if cfg.Trading.StopLossPct <= 0 {
		cfg.Trading.StopLossPct = 0.15
	}
	if cfg.Trading.CooldownMinutes <= 0 {
		cfg.Trading.CooldownMinutes = 30
	}
	if cfg.Trading.DailyLossLimit <= 0 {
		cfg.Trading.DailyLossLimit = 200
	}
	if cfg.Trading.MaxDailyTrades <= 0 {
		cfg.Trading.MaxDailyTrades = 20
	}
	if cfg.Trading.MinGapPercent <= 0 {
		cfg.Trading.MinGapPercent = 0.20
	}
	if cfg.Trading.ExitSweepSeconds <= 0 {
		cfg.Trading.ExitSweepSeconds = 1
	}
	if cfg.Feed.StreamURL == "" {
		cfg.Feed.StreamURL = "wss://stream.binance.com:9443/stream"
	}
	if len(cfg.Feed.Assets) == 0 {
		cfg.Feed.Assets = []string{"BTC", "ETH", "SOL"}
	}
	if cfg.Feed.SignificantMovePct <= 0 {
		cfg.Feed.SignificantMovePct = 0.01
	}
	if cfg.Feed.ReconnectInitialMs <= 0 {
		cfg.Feed.ReconnectInitialMs = 1000
	}
	if cfg.Feed.ReconnectMaxMs <= 0 {
		cfg.Feed.ReconnectMaxMs = 60000
	}
	if cfg.Feed.ReconnectMaxAttempts <= 0 {
		cfg.Feed.ReconnectMaxAttempts = 10
	}
	if cfg.Discovery.MinVolume <= 0 {
		cfg.Discovery.MinVolume = 10000
	}
	if cfg.Discovery.MinResolutionHours <= 0 {
		cfg.Discovery.MinResolutionHours = 1
	}
	if cfg.Discovery.DiscoveryIntervalMinutes <= 0 {
		cfg.Discovery.DiscoveryIntervalMinutes = 30
	}
	if cfg.Discovery.PriceRefreshSeconds <= 0 {
		cfg.Discovery.PriceRefreshSeconds = 15
	}
	if cfg.Discovery.ScanThrottleSeconds <= 0 {
		cfg.Discovery.ScanThrottleSeconds = 3
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "gapbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
