// Package config assembles the runtime configuration from defaults, an
// optional TOML file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kgops/internal/util"
	"github.com/OFFIS-RIT/kgops/pkg/finetune"
	"github.com/OFFIS-RIT/kgops/pkg/training"

	"github.com/pelletier/go-toml/v2"
)

// Duration lets TOML files carry values such as "90s".
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Debug     bool            `toml:"debug"`
	JSONLogs  bool            `toml:"json_logs"`
	Database  DatabaseConfig  `toml:"database"`
	RabbitMQ  RabbitMQConfig  `toml:"rabbitmq"`
	S3        S3Config        `toml:"s3"`
	AI        AIConfig        `toml:"ai"`
	Migration MigrationConfig `toml:"migration"`
	Training  training.Config `toml:"training"`
	FineTune  FineTuneConfig  `toml:"finetune"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Server    ServerConfig    `toml:"server"`
}

type DatabaseConfig struct {
	URL      string `toml:"url"`
	MaxConns int32  `toml:"max_conns"`
}

type RabbitMQConfig struct {
	User     string `toml:"user"`
	Password string `toml:"password"`
	Host     string `toml:"host"`
	Port     string `toml:"port"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.User, c.Password, c.Host, c.Port)
}

type S3Config struct {
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
}

type AIConfig struct {
	// Adapter selects the extraction backend: "openai" or "ollama".
	Adapter          string   `toml:"adapter"`
	ChatURL          string   `toml:"chat_url"`
	ChatKey          string   `toml:"chat_key"`
	DescriptionModel string   `toml:"description_model"`
	ExtractionModel  string   `toml:"extraction_model"`
	MaxTokens        int      `toml:"max_tokens"`
	ParallelRequests int      `toml:"parallel_requests"`
	MaxRetries       int      `toml:"max_retries"`
	EntityTypes      []string `toml:"entity_types"`
	Summarize        bool     `toml:"summarize_descriptions"`

	FineTuneURL       string `toml:"finetune_url"`
	FineTuneKey       string `toml:"finetune_key"`
	FineTuneBaseModel string `toml:"finetune_base_model"`
}

type MigrationConfig struct {
	Parallel    bool     `toml:"parallel"`
	Workers     int      `toml:"workers"`
	StaleAfter  Duration `toml:"stale_after"`
	ItemTimeout Duration `toml:"item_timeout"`
}

type FineTuneConfig struct {
	EvalSamples     int                     `toml:"eval_samples"`
	EvalConcurrency int                     `toml:"eval_concurrency"`
	RetentionDays   int                     `toml:"retention_days"`
	Epochs          int                     `toml:"epochs"`
	LearningRate    float64                 `toml:"learning_rate"`
	Pipeline        finetune.PipelineConfig `toml:"pipeline"`
}

// ScheduleConfig holds six-field cron expressions. An empty expression
// disables the job.
type ScheduleConfig struct {
	Enabled  bool   `toml:"enabled"`
	Audit    string `toml:"audit"`
	Cleanup  string `toml:"cleanup"`
	Pipeline string `toml:"pipeline"`
}

type ServerConfig struct {
	Port      string `toml:"port"`
	AuthURL   string `toml:"auth_url"`
	AdminRole string `toml:"admin_role"`
	APIKey    string `toml:"api_key"`
}

func Default() Config {
	return Config{
		Database: DatabaseConfig{MaxConns: 10},
		RabbitMQ: RabbitMQConfig{User: "guest", Password: "guest", Host: "localhost", Port: "5672"},
		S3:       S3Config{Region: "us-east-1", Bucket: "kgops"},
		AI: AIConfig{
			Adapter:           "openai",
			DescriptionModel:  "gpt-4o-mini",
			MaxTokens:         1500,
			ParallelRequests:  4,
			MaxRetries:        3,
			EntityTypes:       []string{"PERSON", "ORGANIZATION", "PRODUCT", "LOCATION", "EVENT", "CONCEPT"},
			FineTuneBaseModel: "gpt-4o-mini-2024-07-18",
		},
		Migration: MigrationConfig{Workers: 4, ItemTimeout: Duration(5 * time.Minute)},
		Training:  training.DefaultConfig(),
		FineTune: FineTuneConfig{
			EvalSamples:     50,
			EvalConcurrency: 4,
			RetentionDays:   30,
			Pipeline:        finetune.DefaultPipelineConfig(),
		},
		Schedule: ScheduleConfig{
			Audit:   "0 0 * * * *",
			Cleanup: "0 30 3 * * *",
		},
		Server: ServerConfig{Port: "8080", AdminRole: "admin"},
	}
}

// Load reads the TOML file at path, or at KGOPS_CONFIG when path is empty,
// over the defaults and then applies environment overrides. A missing
// KGOPS_CONFIG is not an error; a missing explicit path is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = util.GetEnv("KGOPS_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	cfg.FineTune.Pipeline.Training = cfg.Training
	return cfg, cfg.validate()
}

func applyEnv(cfg *Config) {
	cfg.Debug = util.GetEnvBool("DEBUG", cfg.Debug)
	cfg.JSONLogs = util.GetEnvBool("LOG_JSON", cfg.JSONLogs)

	cfg.Database.URL = util.GetEnvString("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConns = int32(util.GetEnvInt("DATABASE_MAX_CONNS", int(cfg.Database.MaxConns)))

	cfg.RabbitMQ.User = util.GetEnvString("RABBITMQ_USER", cfg.RabbitMQ.User)
	cfg.RabbitMQ.Password = util.GetEnvString("RABBITMQ_PASSWORD", cfg.RabbitMQ.Password)
	cfg.RabbitMQ.Host = util.GetEnvString("RABBITMQ_HOST", cfg.RabbitMQ.Host)
	cfg.RabbitMQ.Port = util.GetEnvString("RABBITMQ_PORT", cfg.RabbitMQ.Port)

	cfg.S3.Region = util.GetEnvString("AWS_REGION", cfg.S3.Region)
	cfg.S3.Endpoint = util.GetEnvString("AWS_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.AccessKey = util.GetEnvString("AWS_ACCESS_KEY", cfg.S3.AccessKey)
	cfg.S3.SecretKey = util.GetEnvString("AWS_SECRET_KEY", cfg.S3.SecretKey)
	cfg.S3.Bucket = util.GetEnvString("AWS_BUCKET", cfg.S3.Bucket)

	cfg.AI.Adapter = util.GetEnvString("AI_ADAPTER", cfg.AI.Adapter)
	cfg.AI.ChatURL = util.GetEnvString("AI_CHAT_URL", cfg.AI.ChatURL)
	cfg.AI.ChatKey = util.GetEnvString("AI_CHAT_KEY", cfg.AI.ChatKey)
	cfg.AI.DescriptionModel = util.GetEnvString("AI_CHAT_DESCRIBE_MODEL", cfg.AI.DescriptionModel)
	cfg.AI.ExtractionModel = util.GetEnvString("AI_CHAT_EXTRACT_MODEL", cfg.AI.ExtractionModel)
	cfg.AI.MaxTokens = util.GetEnvInt("AI_MAX_TOKENS", cfg.AI.MaxTokens)
	cfg.AI.ParallelRequests = util.GetEnvInt("AI_PARALLEL_REQ", cfg.AI.ParallelRequests)
	cfg.AI.Summarize = util.GetEnvBool("AI_SUMMARIZE_DESCRIPTIONS", cfg.AI.Summarize)
	if types := util.GetEnv("AI_ENTITY_TYPES"); types != "" {
		cfg.AI.EntityTypes = splitList(types)
	}
	cfg.AI.FineTuneURL = util.GetEnvString("AI_FINETUNE_URL", cfg.AI.FineTuneURL)
	cfg.AI.FineTuneKey = util.GetEnvString("AI_FINETUNE_KEY", cfg.AI.FineTuneKey)
	cfg.AI.FineTuneBaseModel = util.GetEnvString("AI_FINETUNE_BASE_MODEL", cfg.AI.FineTuneBaseModel)

	cfg.Migration.Parallel = util.GetEnvBool("MIGRATION_PARALLEL", cfg.Migration.Parallel)
	cfg.Migration.Workers = util.GetEnvInt("MIGRATION_WORKERS", cfg.Migration.Workers)
	cfg.Migration.StaleAfter = Duration(util.GetEnvDuration("MIGRATION_STALE_AFTER", cfg.Migration.StaleAfter.Std()))
	cfg.Migration.ItemTimeout = Duration(util.GetEnvDuration("MIGRATION_ITEM_TIMEOUT", cfg.Migration.ItemTimeout.Std()))

	cfg.Training.MinQualityScore = util.GetEnvNumeric("TRAINING_MIN_QUALITY", cfg.Training.MinQualityScore)
	cfg.Training.MaxSamples = util.GetEnvInt("TRAINING_MAX_SAMPLES", cfg.Training.MaxSamples)
	cfg.Training.TimeRangeDays = util.GetEnvInt("TRAINING_TIME_RANGE_DAYS", cfg.Training.TimeRangeDays)

	cfg.FineTune.RetentionDays = util.GetEnvInt("FINETUNE_RETENTION_DAYS", cfg.FineTune.RetentionDays)

	cfg.Schedule.Enabled = util.GetEnvBool("SCHEDULE_ENABLED", cfg.Schedule.Enabled)
	cfg.Schedule.Pipeline = util.GetEnvString("SCHEDULE_PIPELINE", cfg.Schedule.Pipeline)

	cfg.Server.Port = util.GetEnvString("PORT", cfg.Server.Port)
	cfg.Server.AuthURL = util.GetEnvString("AUTH_URL", cfg.Server.AuthURL)
	cfg.Server.AdminRole = util.GetEnvString("AUTH_ADMIN_ROLE", cfg.Server.AdminRole)
	cfg.Server.APIKey = util.GetEnvString("MASTER_API_KEY", cfg.Server.APIKey)
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) validate() error {
	switch c.AI.Adapter {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown ai adapter %q", c.AI.Adapter)
	}
	if c.Training.ValidationSplit < 0 || c.Training.ValidationSplit >= 1 {
		return fmt.Errorf("validation split must be in [0, 1), got %v", c.Training.ValidationSplit)
	}
	if c.FineTune.RetentionDays <= 0 {
		return fmt.Errorf("retention days must be positive, got %d", c.FineTune.RetentionDays)
	}
	return nil
}
