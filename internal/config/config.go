// Package config loads and validates the sync engine's typed
// configuration tree, following internal/config/config.go's
// koanf-based loading idiom (TOML file provider, one Config struct
// tree, nested section structs with koanf tags) generalized from the
// teacher's player settings to this project's sync-domain settings.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/waves-sync/waves-sync/internal/albumtype"
	"github.com/waves-sync/waves-sync/internal/api"
	"github.com/waves-sync/waves-sync/internal/year"
)

// Config is the root of the sync engine's configuration tree. Every
// recognised option is a named field; nothing is re-parsed from a
// dynamic dict elsewhere in the code.
type Config struct {
	CacheDir       string   `koanf:"cache_dir"` // empty means use the XDG cache home
	LibrarySources []string `koanf:"library_sources"`

	Snapshot    SnapshotConfig    `koanf:"snapshot"`
	RateLimit   RateLimitConfig   `koanf:"rate_limit"`
	MusicBrainz MusicBrainzConfig `koanf:"musicbrainz"`
	Discogs     DiscogsConfig     `koanf:"discogs"`
	Scoring     ScoringConfig     `koanf:"scoring"`
	Cache       CacheConfig       `koanf:"cache"`
	CSV         CSVConfig         `koanf:"csv"`
	Pending     PendingConfig     `koanf:"pending"`
	Genre       GenreConfig       `koanf:"genre"`
	Rename      RenameConfig      `koanf:"rename"`
	Year        YearConfig        `koanf:"year"`
	Verify      VerifyConfig      `koanf:"verify"`
}

// SnapshotConfig controls the library-snapshot/delta engine (spec.md
// §4.9/§4.10).
type SnapshotConfig struct {
	Compress      bool  `koanf:"compress"`
	MaxAgeHours   int   `koanf:"max_age_hours"`    // delta cache validity window
	ForceEveryDay int   `koanf:"force_every_days"` // weekly auto-force cadence, default 7
}

func (c SnapshotConfig) MaxAge() time.Duration {
	if c.MaxAgeHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// RateLimitConfig carries one (requests_per_window, window, max_concurrent)
// triple per external API (spec.md §4.5).
type RateLimitConfig struct {
	MusicBrainz APILimit `koanf:"musicbrainz"`
	Discogs     APILimit `koanf:"discogs"`
	Agent       APILimit `koanf:"agent"` // submitter of library-agent scripts (C7)
}

// APILimit is a single rate-limiter's tunables.
type APILimit struct {
	RequestsPerWindow int `koanf:"requests_per_window"`
	WindowSeconds     int `koanf:"window_seconds"`
	MaxConcurrent     int `koanf:"max_concurrent"`
}

func (l APILimit) Window() time.Duration {
	return time.Duration(l.WindowSeconds) * time.Second
}

// DefaultAPILimit mirrors MusicBrainz's documented 1 request/second
// courtesy limit.
func DefaultAPILimit() APILimit {
	return APILimit{RequestsPerWindow: 1, WindowSeconds: 1, MaxConcurrent: 1}
}

// MusicBrainzConfig holds MusicBrainz client settings.
type MusicBrainzConfig struct {
	BaseURL string `koanf:"base_url"`
}

// DiscogsConfig holds Discogs client settings. Token may be supplied via
// the DISCOGS_TOKEN environment variable (or a .env file) instead of the
// TOML file, so the secret never needs to sit in committed config.
type DiscogsConfig struct {
	Token   string `koanf:"token"`
	BaseURL string `koanf:"base_url"`
}

// ScoringConfig wraps the per-source candidate-scoring weights and
// orchestrator thresholds (spec.md §4.8).
type ScoringConfig struct {
	Weights                      api.ScoringWeights `koanf:"weights"`
	PreferredAPI                 []string           `koanf:"preferred_api"`
	DefinitiveScoreThreshold     int                `koanf:"definitive_score_threshold"`
	DefinitiveScoreDiff          int                `koanf:"definitive_score_diff"`
	PrereleaseFutureYearMinCount int                `koanf:"prerelease_future_year_min_count"`
	PrereleaseFutureYearRatio    float64             `koanf:"prerelease_future_year_ratio"`
}

// ToOrchestratorConfig converts to api.Config, applying defaults for
// zero-valued fields. patterns is threaded in from YearConfig.PatternSet
// so the C8 orchestrator's alternative-search trigger (albumtype.
// IsSpecialPattern's replacement, albumtype.MatchesPatternSet) honors
// the same configured special/compilation/reissue patterns as C11's
// resolver, instead of always falling back to the hardcoded default set.
func (c ScoringConfig) ToOrchestratorConfig(patterns albumtype.PatternSet) api.Config {
	cfg := api.DefaultConfig()
	cfg.Patterns = patterns
	if c.Weights.ArtistExactMatch != 0 || c.Weights.AlbumExactMatch != 0 {
		cfg.Weights = c.Weights
	}
	if len(c.PreferredAPI) > 0 {
		cfg.PreferredAPI = c.PreferredAPI
	}
	if c.DefinitiveScoreThreshold != 0 {
		cfg.DefinitiveScoreThreshold = c.DefinitiveScoreThreshold
	}
	if c.DefinitiveScoreDiff != 0 {
		cfg.DefinitiveScoreDiff = c.DefinitiveScoreDiff
	}
	if c.PrereleaseFutureYearMinCount != 0 {
		cfg.PrereleaseFutureYearMinCount = c.PrereleaseFutureYearMinCount
	}
	if c.PrereleaseFutureYearRatio != 0 {
		cfg.PrereleaseFutureYearRatio = c.PrereleaseFutureYearRatio
	}
	return cfg
}

// CacheConfig controls the multi-tier cache's on-disk layout (C1-C4).
type CacheConfig struct {
	Dir string `koanf:"dir"` // overrides the resolved XDG cache dir, testing/CI use
}

// CSVConfig controls the CSV projection (C15).
type CSVConfig struct {
	Path string `koanf:"path"`
}

// PendingConfig controls the pending-verification queue (C6).
type PendingConfig struct {
	Path             string `koanf:"path"`
	DefaultRecheckDays int  `koanf:"default_recheck_days"`
}

// GenreConfig controls the out-of-scope dominant-genre pass-through.
type GenreConfig struct {
	Enabled bool `koanf:"enabled"`
}

// RenameConfig controls the out-of-scope artist/name-cleaning
// pass-through plus its alias table.
type RenameConfig struct {
	Enabled bool              `koanf:"enabled"`
	Aliases map[string]string `koanf:"aliases"`
}

// YearConfig carries the year-resolution thresholds (C11) and the
// prerelease batch policy (C12).
type YearConfig struct {
	CacheTrustThreshold     int      `koanf:"cache_trust_threshold"`
	ConsensusConfidence     int      `koanf:"consensus_confidence"`
	AbsurdYearThreshold     int      `koanf:"absurd_year_threshold"`
	YearDifferenceThreshold int      `koanf:"year_difference_threshold"`
	TrustAPIScoreThreshold  int      `koanf:"trust_api_score_threshold"`
	PrereleaseHandling      string   `koanf:"prerelease_handling"` // process_editable, skip_all, mark_only
	SpecialPatterns         []string `koanf:"special_patterns"`
	CompilationPatterns     []string `koanf:"compilation_patterns"`
	ReissuePatterns         []string `koanf:"reissue_patterns"`
}

// ToResolverConfig converts to year.Config, applying defaults for
// zero-valued fields.
func (c YearConfig) ToResolverConfig() year.Config {
	cfg := year.DefaultConfig()
	if c.CacheTrustThreshold != 0 {
		cfg.CacheTrustThreshold = c.CacheTrustThreshold
	}
	if c.ConsensusConfidence != 0 {
		cfg.ConsensusConfidence = c.ConsensusConfidence
	}
	if c.AbsurdYearThreshold != 0 {
		cfg.AbsurdYearThreshold = c.AbsurdYearThreshold
	}
	if c.YearDifferenceThreshold != 0 {
		cfg.YearDifferenceThreshold = c.YearDifferenceThreshold
	}
	if c.TrustAPIScoreThreshold != 0 {
		cfg.TrustAPIScoreThreshold = c.TrustAPIScoreThreshold
	}
	cfg.Patterns = c.PatternSet()
	return cfg
}

// PatternSet builds the special/compilation/reissue pattern set from
// this config's overrides, falling back to albumtype.DefaultPatternSet
// per-category. Shared by ToResolverConfig (C11) and the caller of
// ScoringConfig.ToOrchestratorConfig (C8), so both components classify
// an album title against the same configured patterns.
func (c YearConfig) PatternSet() albumtype.PatternSet {
	ps := albumtype.DefaultPatternSet()
	if len(c.SpecialPatterns) > 0 {
		ps.Special = c.SpecialPatterns
	}
	if len(c.CompilationPatterns) > 0 {
		ps.Compilation = c.CompilationPatterns
	}
	if len(c.ReissuePatterns) > 0 {
		ps.Reissue = c.ReissuePatterns
	}
	return ps
}

// PrereleaseHandlingValue converts the configured string into the
// internal/year enum without validating it; an unset or unrecognised
// value is normalized to ProcessEditable, with a warning, by
// internal/year.NewBatchProcessor.
func (c YearConfig) PrereleaseHandlingValue() year.PrereleaseHandling {
	return year.PrereleaseHandling(c.PrereleaseHandling)
}

// VerifyConfig controls the batched existence sweep (C13).
type VerifyConfig struct {
	BatchSize       int `koanf:"batch_size"`
	BatchPauseMillis int `koanf:"batch_pause_millis"`
}

func (c VerifyConfig) ToVerifierConfig() (batchSize int, batchPause time.Duration) {
	batchSize = c.BatchSize
	batchPause = time.Duration(c.BatchPauseMillis) * time.Millisecond
	return batchSize, batchPause
}

// Load reads config.toml (./config.toml takes priority over
// ~/.config/waves-sync/config.toml), applies an optional .env overlay
// for secrets, and unmarshals into a validated Config.
func Load() (*Config, error) {
	// Secrets (DISCOGS_TOKEN, ...) may arrive via a .env file instead of
	// sitting in the committed TOML config. Missing .env is not an error.
	_ = godotenv.Load()

	k := koanf.New(".")

	for _, path := range configPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if cfg.CacheDir != "" {
		cfg.CacheDir = expandPath(cfg.CacheDir)
	}
	for i, src := range cfg.LibrarySources {
		cfg.LibrarySources[i] = expandPath(src)
	}

	if token := os.Getenv("DISCOGS_TOKEN"); token != "" {
		cfg.Discogs.Token = token
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RateLimit.MusicBrainz == (APILimit{}) {
		cfg.RateLimit.MusicBrainz = DefaultAPILimit()
	}
	if cfg.RateLimit.Discogs == (APILimit{}) {
		cfg.RateLimit.Discogs = APILimit{RequestsPerWindow: 60, WindowSeconds: 60, MaxConcurrent: 2}
	}
	if cfg.RateLimit.Agent == (APILimit{}) {
		cfg.RateLimit.Agent = APILimit{RequestsPerWindow: 10, WindowSeconds: 1, MaxConcurrent: 4}
	}
	if cfg.MusicBrainz.BaseURL == "" {
		cfg.MusicBrainz.BaseURL = "https://musicbrainz.org/ws/2"
	}
	if cfg.Discogs.BaseURL == "" {
		cfg.Discogs.BaseURL = "https://api.discogs.com"
	}
	if cfg.Pending.DefaultRecheckDays <= 0 {
		cfg.Pending.DefaultRecheckDays = 30
	}
	if cfg.Verify.BatchSize <= 0 {
		cfg.Verify.BatchSize = 20
	}
	if cfg.Verify.BatchPauseMillis <= 0 {
		cfg.Verify.BatchPauseMillis = 200
	}
	if cfg.Snapshot.ForceEveryDay <= 0 {
		cfg.Snapshot.ForceEveryDay = 7
	}
	if cfg.Year.PrereleaseHandling == "" {
		cfg.Year.PrereleaseHandling = string(year.ProcessEditable)
	}
}

func configPaths() []string {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "waves-sync", "config.toml"))
	}
	paths = append(paths, "config.toml")
	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
