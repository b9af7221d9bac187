package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/hazel/internal/model"
)

// Transform providers.
const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	DatabaseURL string `env:"HAZEL_DATABASE_URL"` // empty = in-memory store
	GRPCAddr    string `env:"HAZEL_GRPC_ADDR" envDefault:":9090"`
	HTTPAddr    string `env:"HAZEL_HTTP_ADDR" envDefault:":8080"`
	NATSURL     string `env:"HAZEL_NATS_URL"`   // empty = no events
	AuthToken   string `env:"HAZEL_AUTH_TOKEN"` // empty = auth disabled
	LogLevel    string `env:"HAZEL_LOG_LEVEL" envDefault:"info"`

	DecisionChannelID string `env:"HAZEL_DECISION_CHANNEL_ID,required,notEmpty"`
	VisionChannelID   string `env:"HAZEL_VISION_CHANNEL_ID"`
	HandbookChannelID string `env:"HAZEL_HANDBOOK_CHANNEL_ID"`
	CirclesFile       string `env:"HAZEL_CIRCLES_FILE"`
	Timezone          string `env:"HAZEL_TIMEZONE" envDefault:"UTC"`

	// Lanes; a zero interval disables the lane.
	HistoryWindow           time.Duration `env:"HAZEL_HISTORY_WINDOW" envDefault:"168h"`
	NormalizeInterval       time.Duration `env:"HAZEL_NORMALIZE_INTERVAL" envDefault:"60s"`
	AlignInterval           time.Duration `env:"HAZEL_ALIGN_INTERVAL" envDefault:"60s"`
	FollowUpEnqueueInterval time.Duration `env:"HAZEL_FOLLOWUP_ENQUEUE_INTERVAL" envDefault:"60s"`
	FollowUpDrainInterval   time.Duration `env:"HAZEL_FOLLOWUP_DRAIN_INTERVAL" envDefault:"60s"`
	FollowUpLeadTime        time.Duration `env:"HAZEL_FOLLOWUP_LEAD_TIME" envDefault:"0s"`
	MeetingDuration         time.Duration `env:"HAZEL_MEETING_DURATION" envDefault:"3h"`
	ArchiveBudget           int           `env:"HAZEL_ARCHIVE_BUDGET" envDefault:"64000"`

	TransformProvider string `env:"HAZEL_TRANSFORM_PROVIDER" envDefault:"none"`
	TransformModel    string `env:"HAZEL_TRANSFORM_MODEL"`

	OTelEndpoint string `env:"HAZEL_OTEL_ENDPOINT"` // empty = tracing disabled

	// Sync settings
	SyncInterval   time.Duration `env:"HAZEL_SYNC_INTERVAL" envDefault:"3m"` // 0 = disabled
	SyncS3Bucket   string        `env:"HAZEL_SYNC_S3_BUCKET"`                // enables S3 when set
	SyncS3Endpoint string        `env:"HAZEL_SYNC_S3_ENDPOINT"`              // custom endpoint for MinIO
	SyncS3Region   string        `env:"HAZEL_SYNC_S3_REGION" envDefault:"us-east-1"`
	SyncS3Key      string        `env:"HAZEL_SYNC_S3_KEY" envDefault:"hazel/decisions.jsonl"`
	SyncGitRepo    string        `env:"HAZEL_SYNC_GIT_REPO"` // enables git when set; path to clone
	SyncGitFile    string        `env:"HAZEL_SYNC_GIT_FILE" envDefault:"decisions.jsonl"`
	SyncGitBranch  string        `env:"HAZEL_SYNC_GIT_BRANCH" envDefault:"main"`

	// Filled by Load from CirclesFile and Timezone.
	Circles  model.Circles
	Location *time.Location
}

// Load reads the configuration from the environment and the circle routing
// file it points to.
func Load() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	switch c.TransformProvider {
	case ProviderNone, ProviderOpenAI, ProviderAnthropic:
	default:
		return nil, fmt.Errorf("HAZEL_TRANSFORM_PROVIDER: unknown provider %q", c.TransformProvider)
	}
	for name, d := range map[string]time.Duration{
		"HAZEL_HISTORY_WINDOW":            c.HistoryWindow,
		"HAZEL_NORMALIZE_INTERVAL":        c.NormalizeInterval,
		"HAZEL_ALIGN_INTERVAL":            c.AlignInterval,
		"HAZEL_FOLLOWUP_ENQUEUE_INTERVAL": c.FollowUpEnqueueInterval,
		"HAZEL_FOLLOWUP_DRAIN_INTERVAL":   c.FollowUpDrainInterval,
		"HAZEL_FOLLOWUP_LEAD_TIME":        c.FollowUpLeadTime,
	} {
		if d < 0 {
			return nil, fmt.Errorf("%s: must not be negative", name)
		}
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("HAZEL_TIMEZONE: %w", err)
	}
	c.Location = loc

	c.Circles = model.Circles{}
	if c.CirclesFile != "" {
		circles, err := LoadCircles(c.CirclesFile)
		if err != nil {
			return nil, err
		}
		c.Circles = circles
	}
	return &c, nil
}

type circlesFile struct {
	Circles []*model.Circle `toml:"circles" yaml:"circles"`
}

// LoadCircles reads the circle routing table. Files ending in .yaml or .yml
// are YAML; anything else is TOML.
func LoadCircles(path string) (model.Circles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read circles file: %w", err)
	}

	var f circlesFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		_, err = toml.Decode(string(data), &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse circles file %s: %w", path, err)
	}

	circles := make(model.Circles, len(f.Circles))
	for i, c := range f.Circles {
		if c == nil || c.Name == "" {
			return nil, fmt.Errorf("circles file %s: entry %d has no name", path, i)
		}
		if c.BacklogChannelID == "" {
			return nil, fmt.Errorf("circles file %s: circle %q has no backlog_channel_id", path, c.Name)
		}
		if _, dup := circles[c.Name]; dup {
			return nil, fmt.Errorf("circles file %s: duplicate circle %q", path, c.Name)
		}
		circles[c.Name] = c
	}
	return circles, nil
}
