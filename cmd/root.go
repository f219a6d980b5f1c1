package cmd

import (
	"errors"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/skillmatch/internal/postings"
	"github.com/spigell/skillmatch/internal/queue"
)

const (
	app       = "skillmatch"
	envPrefix = "SKILLMATCH"
)

type Config struct {
	Candidate   CandidateConfig `mapstructure:"candidate"`
	Jobs        []any           `mapstructure:"jobs"`
	JobsFile    string          `mapstructure:"jobs-file"`
	CatalogFile string          `mapstructure:"catalog-file"`
	Embedding   EmbeddingConfig `mapstructure:"embedding"`
	Ranking     RankingConfig   `mapstructure:"ranking"`
	Store       StoreConfig     `mapstructure:"store"`
	Worker      WorkerConfig    `mapstructure:"worker"`
}

type CandidateConfig struct {
	// Skills accepts a list or a single comma separated string.
	Skills []string `mapstructure:"skills"`
}

type EmbeddingConfig struct {
	Backend      string       `mapstructure:"backend" validate:"oneof=hashing gemini openai"`
	Dimensions   int          `mapstructure:"dimensions" validate:"gte=0"`
	MaxLogLength int          `mapstructure:"max-log-length" validate:"gte=0"`
	Gemini       GeminiConfig `mapstructure:"gemini"`
	OpenAI       OpenAIConfig `mapstructure:"openai"`
	Cache        CacheConfig  `mapstructure:"cache"`
}

type GeminiConfig struct {
	APIKey            string  `mapstructure:"api-key"`
	APIKeyFile        string  `mapstructure:"api-key-file"`
	Model             string  `mapstructure:"model"`
	MaxRetries        int     `mapstructure:"max-retries" validate:"gte=0"`
	RequestsPerSecond float64 `mapstructure:"requests-per-second" validate:"gte=0"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url" validate:"omitempty,url"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries" validate:"gte=0"`
}

type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type RankingConfig struct {
	MinScore            float64  `mapstructure:"min-score" validate:"gte=0,lte=1"`
	MinRequiredCoverage float64  `mapstructure:"min-required-coverage" validate:"gte=0,lte=1"`
	Concurrency         int      `mapstructure:"concurrency" validate:"gte=0"`
	Top                 int      `mapstructure:"top" validate:"gte=0"`
	ExcludeCompanies    []string `mapstructure:"exclude-companies"`
	ExcludeFile         string   `mapstructure:"exclude-file"`
}

type StoreConfig struct {
	DSN     string `mapstructure:"dsn"`
	DSNFile string `mapstructure:"dsn-file"`
}

type WorkerConfig struct {
	URL          string `mapstructure:"url"`
	URLFile      string `mapstructure:"url-file"`
	RequestQueue string `mapstructure:"request-queue"`
	ResultQueue  string `mapstructure:"result-queue"`
	Workers      int    `mapstructure:"workers" validate:"gte=0"`
	Prefetch     int    `mapstructure:"prefetch" validate:"gte=0"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "skillmatch compares a candidate's skills with job requirements using semantic similarity",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is skillmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("catalog-file", "", "a TOML skill catalog replacing the built-in tables")
	rootCmd.PersistentFlags().String("jobs-file", "", "a JSON file with job postings")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("catalog-file", rootCmd.PersistentFlags().Lookup("catalog-file"))
	viper.BindPFlag("jobs-file", rootCmd.PersistentFlags().Lookup("jobs-file"))

	setDefaults(viper.GetViper())
}

// setDefaults registers every key so that SKILLMATCH_* variables reach
// viper.Unmarshal even without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("candidate.skills", []string{})
	v.SetDefault("jobs-file", "")
	v.SetDefault("catalog-file", "")

	v.SetDefault("embedding.backend", "hashing")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.max-log-length", 200)
	v.SetDefault("embedding.gemini.api-key", "")
	v.SetDefault("embedding.gemini.api-key-file", "")
	v.SetDefault("embedding.gemini.model", "")
	v.SetDefault("embedding.gemini.max-retries", 3)
	v.SetDefault("embedding.gemini.requests-per-second", 0)
	v.SetDefault("embedding.openai.api-key", "")
	v.SetDefault("embedding.openai.api-key-file", "")
	v.SetDefault("embedding.openai.base-url", "")
	v.SetDefault("embedding.openai.model", "")
	v.SetDefault("embedding.openai.max-retries", 3)
	v.SetDefault("embedding.cache.enabled", false)
	v.SetDefault("embedding.cache.path", "")

	v.SetDefault("ranking.min-score", 0)
	v.SetDefault("ranking.min-required-coverage", 0)
	v.SetDefault("ranking.concurrency", 4)
	v.SetDefault("ranking.top", 0)
	v.SetDefault("ranking.exclude-companies", []string{})
	v.SetDefault("ranking.exclude-file", "")

	v.SetDefault("store.dsn", "")
	v.SetDefault("store.dsn-file", "")

	v.SetDefault("worker.url", "")
	v.SetDefault("worker.url-file", "")
	v.SetDefault("worker.request-queue", queue.DefaultRequestQueue)
	v.SetDefault("worker.result-queue", queue.DefaultResultQueue)
	v.SetDefault("worker.workers", 1)
	v.SetDefault("worker.prefetch", 1)
}

func initConfig() {
	// The version command needs no config.
	if versionCmd.CalledAs() != "" {
		return
	}

	// A missing .env is fine; it only carries API keys for local runs.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit --config every value can come from flags or env.
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// candidateSkills flattens the configured skills, splitting comma separated
// entries.
func (c *Config) candidateSkills() []string {
	var out []string
	for _, s := range c.Candidate.Skills {
		out = append(out, postings.ParseSkills(s)...)
	}
	return out
}

// loadPostings returns the jobs file content when configured, else the
// inline jobs section.
func (c *Config) loadPostings() (*postings.Postings, error) {
	if path := strings.TrimSpace(c.JobsFile); path != "" {
		return postings.LoadFile(path)
	}
	return postings.Decode(c.Jobs)
}
