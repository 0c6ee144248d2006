// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. Every threshold the
// decision engine consults lives here; the rule functions themselves carry
// no defaults.
type Config struct {
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Screening     ScreeningConfig     `yaml:"screening" mapstructure:"screening"`
	Scoring       ScoringConfig       `yaml:"scoring" mapstructure:"scoring"`
	RedFlags      RedFlagConfig       `yaml:"red_flags" mapstructure:"red_flags"`
	Portfolio     PortfolioConfig     `yaml:"portfolio" mapstructure:"portfolio"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	ProPublica    ProPublicaConfig    `yaml:"propublica" mapstructure:"propublica"`
	CourtListener CourtListenerConfig `yaml:"courtlistener" mapstructure:"courtlistener"`
	Ingest        IngestConfig        `yaml:"ingest" mapstructure:"ingest"`
	Fetch         FetchConfig         `yaml:"fetch" mapstructure:"fetch"`
	Batch         BatchConfig         `yaml:"batch" mapstructure:"batch"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ScreeningConfig configures the hard eligibility gates.
type ScreeningConfig struct {
	// CharitySubsection is the 501(c) subsection code treated as a public
	// charity, zero-padded the way the IRS publishes it.
	CharitySubsection string `yaml:"charity_subsection" mapstructure:"charity_subsection"`
}

// TenureThresholds grade years of operation.
type TenureThresholds struct {
	PassYears   float64 `yaml:"pass_years" mapstructure:"pass_years"`
	ReviewYears float64 `yaml:"review_years" mapstructure:"review_years"`
}

// RevenueThresholds grade annual revenue. Floor is an absolute minimum
// below which the check fails outright.
type RevenueThresholds struct {
	Floor       float64 `yaml:"floor" mapstructure:"floor"`
	ReviewFloor float64 `yaml:"review_floor" mapstructure:"review_floor"`
	PassMin     float64 `yaml:"pass_min" mapstructure:"pass_min"`
	PassMax     float64 `yaml:"pass_max" mapstructure:"pass_max"`
	ReviewMax   float64 `yaml:"review_max" mapstructure:"review_max"`
}

// RatioThresholds grade the overhead ratio (expenses / revenue).
type RatioThresholds struct {
	PassMin   float64 `yaml:"pass_min" mapstructure:"pass_min"`
	PassMax   float64 `yaml:"pass_max" mapstructure:"pass_max"`
	ReviewMin float64 `yaml:"review_min" mapstructure:"review_min"`
	ReviewMax float64 `yaml:"review_max" mapstructure:"review_max"`
}

// RecencyThresholds grade the age of the latest filing in tax years.
type RecencyThresholds struct {
	PassMaxYears   int `yaml:"pass_max_years" mapstructure:"pass_max_years"`
	ReviewMaxYears int `yaml:"review_max_years" mapstructure:"review_max_years"`
}

// CheckWeights allocate points across the four weighted checks. They are
// expected to sum to 100.
type CheckWeights struct {
	Tenure  float64 `yaml:"tenure" mapstructure:"tenure"`
	Revenue float64 `yaml:"revenue" mapstructure:"revenue"`
	Ratio   float64 `yaml:"ratio" mapstructure:"ratio"`
	Recency float64 `yaml:"recency" mapstructure:"recency"`
}

// Sum returns the total available points.
func (w CheckWeights) Sum() float64 {
	return w.Tenure + w.Revenue + w.Ratio + w.Recency
}

// ScoringConfig configures the weighted scoring layer.
type ScoringConfig struct {
	Tenure       TenureThresholds  `yaml:"tenure" mapstructure:"tenure"`
	Revenue      RevenueThresholds `yaml:"revenue" mapstructure:"revenue"`
	Ratio        RatioThresholds   `yaml:"ratio" mapstructure:"ratio"`
	Recency      RecencyThresholds `yaml:"recency" mapstructure:"recency"`
	Weights      CheckWeights      `yaml:"weights" mapstructure:"weights"`
	PassCutoff   float64           `yaml:"pass_cutoff" mapstructure:"pass_cutoff"`
	ReviewCutoff float64           `yaml:"review_cutoff" mapstructure:"review_cutoff"`
}

// RedFlagConfig configures the advisory red-flag rules.
type RedFlagConfig struct {
	StaleFilingYears    int     `yaml:"stale_filing_years" mapstructure:"stale_filing_years"`
	OverheadCeiling     float64 `yaml:"overhead_ceiling" mapstructure:"overhead_ceiling"`
	DeploymentFloor     float64 `yaml:"deployment_floor" mapstructure:"deployment_floor"`
	RevenueFloor        float64 `yaml:"revenue_floor" mapstructure:"revenue_floor"`
	DeclineThreshold    float64 `yaml:"decline_threshold" mapstructure:"decline_threshold"`
	MinAgeYears         float64 `yaml:"min_age_years" mapstructure:"min_age_years"`
	OfficerCompHigh     float64 `yaml:"officer_comp_high" mapstructure:"officer_comp_high"`
	OfficerCompModerate float64 `yaml:"officer_comp_moderate" mapstructure:"officer_comp_moderate"`
	FuzzyMatchThreshold float64 `yaml:"fuzzy_match_threshold" mapstructure:"fuzzy_match_threshold"`
}

// PortfolioConfig configures the portfolio-fit policy gate.
type PortfolioConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	PolicyPath string `yaml:"policy_path" mapstructure:"policy_path"`
}

// CacheConfig configures result-cache behavior.
type CacheConfig struct {
	// MaxAgeDays turns cache hits older than this into fresh evaluations.
	// Zero disables the staleness override.
	MaxAgeDays  int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Attribution string `yaml:"attribution" mapstructure:"attribution"`
}

// ProPublicaConfig holds the nonprofit API settings.
type ProPublicaConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CourtListenerConfig holds the court-records search settings. The lookup
// is optional: an empty token disables the court-records rule.
type CourtListenerConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Token   string `yaml:"token" mapstructure:"token"`
}

// IngestConfig configures government list ingestion.
type IngestConfig struct {
	DataDir       string `yaml:"data_dir" mapstructure:"data_dir"`
	RevocationURL string `yaml:"revocation_url" mapstructure:"revocation_url"`
	SDNURL        string `yaml:"sdn_url" mapstructure:"sdn_url"`
	AltURL        string `yaml:"alt_url" mapstructure:"alt_url"`
}

// FetchConfig configures the rate-limited HTTP downloader.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// BatchConfig configures batch vetting.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VETTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "vetting.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent", 5)
	v.SetDefault("screening.charity_subsection", "03")
	v.SetDefault("scoring.tenure.pass_years", 3)
	v.SetDefault("scoring.tenure.review_years", 1)
	v.SetDefault("scoring.revenue.floor", 25000)
	v.SetDefault("scoring.revenue.review_floor", 50000)
	v.SetDefault("scoring.revenue.pass_min", 100000)
	v.SetDefault("scoring.revenue.pass_max", 10000000)
	v.SetDefault("scoring.revenue.review_max", 50000000)
	v.SetDefault("scoring.ratio.pass_min", 0.65)
	v.SetDefault("scoring.ratio.pass_max", 1.1)
	v.SetDefault("scoring.ratio.review_min", 0.4)
	v.SetDefault("scoring.ratio.review_max", 1.5)
	v.SetDefault("scoring.recency.pass_max_years", 2)
	v.SetDefault("scoring.recency.review_max_years", 4)
	v.SetDefault("scoring.weights.tenure", 20)
	v.SetDefault("scoring.weights.revenue", 30)
	v.SetDefault("scoring.weights.ratio", 25)
	v.SetDefault("scoring.weights.recency", 25)
	v.SetDefault("scoring.pass_cutoff", 75)
	v.SetDefault("scoring.review_cutoff", 50)
	v.SetDefault("red_flags.stale_filing_years", 3)
	v.SetDefault("red_flags.overhead_ceiling", 1.5)
	v.SetDefault("red_flags.deployment_floor", 0.5)
	v.SetDefault("red_flags.revenue_floor", 50000)
	v.SetDefault("red_flags.decline_threshold", 0.20)
	v.SetDefault("red_flags.min_age_years", 2)
	v.SetDefault("red_flags.officer_comp_high", 0.30)
	v.SetDefault("red_flags.officer_comp_moderate", 0.15)
	v.SetDefault("red_flags.fuzzy_match_threshold", 0.85)
	v.SetDefault("cache.max_age_days", 90)
	v.SetDefault("cache.attribution", "vetting-cli")
	v.SetDefault("propublica.base_url", "https://projects.propublica.org/nonprofits/api/v2")
	v.SetDefault("courtlistener.base_url", "https://www.courtlistener.com/api/rest/v4")
	v.SetDefault("ingest.data_dir", "data")
	v.SetDefault("ingest.revocation_url", "https://apps.irs.gov/pub/epostcard/data-download-revocation.zip")
	v.SetDefault("ingest.sdn_url", "https://www.treasury.gov/ofac/downloads/sdn.csv")
	v.SetDefault("ingest.alt_url", "https://www.treasury.gov/ofac/downloads/alt.csv")
	v.SetDefault("fetch.user_agent", "vetting-cli/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that configured thresholds are internally consistent.
// It runs before any I/O so a bad config fails fast.
func (c *Config) Validate() error {
	var problems []string

	if c.Scoring.Weights.Sum() != 100 {
		problems = append(problems, "scoring.weights must sum to 100")
	}
	if c.Scoring.PassCutoff < c.Scoring.ReviewCutoff {
		problems = append(problems, "scoring.pass_cutoff must be >= scoring.review_cutoff")
	}
	if c.Scoring.Revenue.PassMin > c.Scoring.Revenue.PassMax {
		problems = append(problems, "scoring.revenue.pass_min must be <= pass_max")
	}
	if t := c.RedFlags.FuzzyMatchThreshold; t < 0 || t >= 1 {
		problems = append(problems, "red_flags.fuzzy_match_threshold must be in [0,1)")
	}
	if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 50 {
		problems = append(problems, "batch.max_concurrent must be between 1 and 50")
	}
	if c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
