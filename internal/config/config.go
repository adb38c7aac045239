package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/giftlist/internal/gift"
)

// Backends.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendDynamoDB = "dynamodb"
)

// Config is the resolved giftlist configuration.
type Config struct {
	Backend        string
	LogPath        string
	MetricsBind    string
	PollInterval   time.Duration
	CommitTimeout  time.Duration
	AllowOverwrite bool

	Event    Event
	Mongo    Mongo
	DynamoDB DynamoDB

	// Gifts seeds the memory backend.
	Gifts []gift.Gift
}

// Event is the text shown on the landing and thank-you pages.
type Event struct {
	Title   string `toml:"title"`
	Hosts   string `toml:"hosts"`
	Date    string `toml:"date"`
	Message string `toml:"message"`
}

type Mongo struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

type DynamoDB struct {
	Table    string `toml:"table"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
}

type giftEntry struct {
	Name  string `toml:"name"`
	Image string `toml:"image"`
}

const (
	defaultConfigPath    = "~/.config/giftlist/config.toml"
	defaultLogPath       = "~/.local/state/giftlist/giftlist.log"
	defaultPollInterval  = 2 * time.Second
	defaultCommitTimeout = 15 * time.Second
	defaultMongoURI      = "mongodb://localhost:27017/?replicaSet=rs0"
	defaultDatabase      = "giftlist"
	defaultCollection    = "gifts"
	defaultTable         = "gifts"
)

var defaultEvent = Event{
	Title:   "Kitchen Shower",
	Hosts:   "Luyzie & Higor",
	Date:    "29 November 2025",
	Message: "We are so happy to share this special moment with you. Your presence is our greatest gift, but if you would like to give us something, we put this list together with a lot of love.",
}

var sampleGifts = []gift.Gift{
	{ID: "sample-blender", Name: "Blender", Image: "blender.png"},
	{ID: "sample-cookware", Name: "Cookware set", Image: "cookware.png"},
	{ID: "sample-knives", Name: "Knife block", Image: "knives.png"},
	{ID: "sample-mixer", Name: "Stand mixer", Image: "mixer.png"},
	{ID: "sample-towels", Name: "Towels", Image: "towels.png"},
	{ID: "sample-dinnerware", Name: "Dinnerware", Image: "dinnerware.png"},
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Backend:       BackendMemory,
		LogPath:       mustExpand(defaultLogPath),
		PollInterval:  defaultPollInterval,
		CommitTimeout: defaultCommitTimeout,
		Event:         defaultEvent,
		Mongo:         Mongo{URI: defaultMongoURI, Database: defaultDatabase, Collection: defaultCollection},
		DynamoDB:      DynamoDB{Table: defaultTable},
		Gifts:         append([]gift.Gift(nil), sampleGifts...),
	}
}

type rawConfig struct {
	Backend              string      `toml:"backend"`
	LogPath              string      `toml:"log_path"`
	MetricsBind          string      `toml:"metrics_bind"`
	PollSeconds          float64     `toml:"poll_seconds"`
	CommitTimeoutSeconds float64     `toml:"commit_timeout_seconds"`
	AllowOverwrite       bool        `toml:"allow_overwrite"`
	Event                Event       `toml:"event"`
	Mongo                Mongo       `toml:"mongo"`
	DynamoDB             DynamoDB    `toml:"dynamodb"`
	Gifts                []giftEntry `toml:"gifts"`
}

// Load locates and parses the giftlist config, falling back to defaults when
// the file or individual fields are missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	data, err := readFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.ToLower(strings.TrimSpace(raw.Backend)); v != "" {
		cfg.Backend = v
	}
	switch cfg.Backend {
	case BackendMemory, BackendMongo, BackendDynamoDB:
	default:
		return Config{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	if v := strings.TrimSpace(raw.LogPath); v != "" {
		cfg.LogPath = mustExpand(v)
	}
	cfg.MetricsBind = strings.TrimSpace(raw.MetricsBind)
	if raw.PollSeconds > 0 {
		cfg.PollInterval = seconds(raw.PollSeconds)
	}
	if raw.CommitTimeoutSeconds > 0 {
		cfg.CommitTimeout = seconds(raw.CommitTimeoutSeconds)
	}
	cfg.AllowOverwrite = raw.AllowOverwrite

	setIfNotBlank(&cfg.Event.Title, raw.Event.Title)
	setIfNotBlank(&cfg.Event.Hosts, raw.Event.Hosts)
	setIfNotBlank(&cfg.Event.Date, raw.Event.Date)
	setIfNotBlank(&cfg.Event.Message, raw.Event.Message)

	setIfNotBlank(&cfg.Mongo.URI, raw.Mongo.URI)
	setIfNotBlank(&cfg.Mongo.Database, raw.Mongo.Database)
	setIfNotBlank(&cfg.Mongo.Collection, raw.Mongo.Collection)

	setIfNotBlank(&cfg.DynamoDB.Table, raw.DynamoDB.Table)
	setIfNotBlank(&cfg.DynamoDB.Region, raw.DynamoDB.Region)
	setIfNotBlank(&cfg.DynamoDB.Endpoint, raw.DynamoDB.Endpoint)

	if len(raw.Gifts) > 0 {
		gifts, err := toGifts(raw.Gifts)
		if err != nil {
			return Config{}, err
		}
		cfg.Gifts = gifts
	}

	return cfg, nil
}

// LoadCatalog reads a TOML file of [[gifts]] entries for seeding a store.
func LoadCatalog(path string) ([]gift.Gift, error) {
	resolved, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := readFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	var raw struct {
		Gifts []giftEntry `toml:"gifts"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(raw.Gifts) == 0 {
		return nil, fmt.Errorf("catalog %s has no gifts", resolved)
	}
	return toGifts(raw.Gifts)
}

// DefaultPath returns the config location used when none is given.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

func toGifts(entries []giftEntry) ([]gift.Gift, error) {
	gifts := make([]gift.Gift, 0, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("gift %d has no name", i+1)
		}
		gifts = append(gifts, gift.Gift{Name: name, Image: strings.TrimSpace(e.Image)})
	}
	return gifts, nil
}

func readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return io.ReadAll(file)
}

func setIfNotBlank(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

// ExpandPath resolves a leading ~ and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}
