// Package config loads bot settings from an optional yaml file, .env and
// the process environment. Environment wins over the file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
)

const (
	defaultDBPath        = "data.db"
	defaultListen        = "0.0.0.0:6789"
	defaultGitlabBaseURL = "https://gitlab.com/api/v4"
	defaultAMQPQueue     = "hiring.reports"
	defaultLogLevel      = "info"
)

type Telegram struct {
	Token string `yaml:"token"`
	// Proxy is SOCKS5 address, empty for direct connection
	Proxy       string `yaml:"proxy,omitempty"`
	HiringChat  string `yaml:"hiring_chat"`
	AdminUserID string `yaml:"admin_user_id"`
}

type Gitlab struct {
	Token   string `yaml:"token,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

type AMQP struct {
	URL   string `yaml:"url,omitempty"`
	Queue string `yaml:"queue,omitempty"`
}

type Notion struct {
	Token      string `yaml:"token,omitempty"`
	DatabaseID string `yaml:"database_id,omitempty"`
}

type Capacity struct {
	CountClosedInterviews bool `yaml:"count_closed_interviews"`
}

type Timeouts struct {
	Prompt       time.Duration `yaml:"prompt,omitempty"`
	Confirmation time.Duration `yaml:"confirmation,omitempty"`
}

type Config struct {
	Telegram Telegram `yaml:"telegram"`
	DBPath   string   `yaml:"db_path"`
	Listen   string   `yaml:"listen"`
	LogLevel string   `yaml:"log_level"`
	Gitlab   Gitlab   `yaml:"gitlab"`
	AMQP     AMQP     `yaml:"amqp"`
	Notion   Notion   `yaml:"notion"`
	Capacity Capacity `yaml:"capacity"`
	Timeouts Timeouts `yaml:"timeouts"`
}

// Load reads path (may be empty) then applies environment overrides
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "can not read config %q", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "can not parse config %q", path)
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "config")
	}

	return cfg, nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func (c *Config) loadEnv() error {
	// telegram
	setString(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.Proxy, "TELEGRAM_PROXY")
	setString(&c.Telegram.HiringChat, "HIRING_CHAT_ID")
	setString(&c.Telegram.AdminUserID, "ADMIN_USER_ID")

	// storage and web
	setString(&c.DBPath, "DB_PATH")
	setString(&c.Listen, "LISTEN_ADDR")
	setString(&c.LogLevel, "LOG_LEVEL")

	// gitlab
	setString(&c.Gitlab.Token, "GITLAB_TOKEN")
	setString(&c.Gitlab.BaseURL, "GITLAB_BASEURL")

	// report sinks
	setString(&c.AMQP.URL, "AMQP_URL")
	setString(&c.AMQP.Queue, "AMQP_QUEUE")
	setString(&c.Notion.Token, "NOTION_TOKEN")
	setString(&c.Notion.DatabaseID, "NOTION_DATABASE_ID")

	if v, ok := os.LookupEnv("COUNT_CLOSED_INTERVIEWS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "malformed COUNT_CLOSED_INTERVIEWS %q", v)
		}
		c.Capacity.CountClosedInterviews = b
	}
	if v, ok := os.LookupEnv("PROMPT_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "malformed PROMPT_TIMEOUT %q", v)
		}
		c.Timeouts.Prompt = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Gitlab.BaseURL == "" {
		c.Gitlab.BaseURL = defaultGitlabBaseURL
	}
	if c.AMQP.Queue == "" {
		c.AMQP.Queue = defaultAMQPQueue
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Timeouts.Prompt <= 0 {
		c.Timeouts.Prompt = hiring.DefaultPromptTimeout
	}
	if c.Timeouts.Confirmation <= 0 {
		c.Timeouts.Confirmation = hiring.DefaultConfirmationTimeout
	}
}

func (c *Config) normalize() {
	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)
	c.Telegram.Proxy = strings.TrimSpace(c.Telegram.Proxy)
	c.Telegram.HiringChat = strings.TrimSpace(c.Telegram.HiringChat)
	c.Telegram.AdminUserID = strings.TrimSpace(c.Telegram.AdminUserID)
	c.Gitlab.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gitlab.BaseURL), "/")
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

func (c *Config) validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	if _, err := strconv.ParseInt(c.Telegram.HiringChat, 10, 64); err != nil {
		return errors.Errorf("telegram.hiring_chat must be numeric chat id, got %q", c.Telegram.HiringChat)
	}
	if _, err := strconv.Atoi(c.Telegram.AdminUserID); err != nil {
		return errors.Errorf("telegram.admin_user_id must be numeric user id, got %q", c.Telegram.AdminUserID)
	}
	if (c.Notion.Token == "") != (c.Notion.DatabaseID == "") {
		return errors.New("notion.token and notion.database_id must be set together")
	}
	return nil
}

// Hiring builds service settings
func (c *Config) Hiring() hiring.Config {
	return hiring.Config{
		AdminID:             c.Telegram.AdminUserID,
		HiringChannel:       c.Telegram.HiringChat,
		CountClosed:         c.Capacity.CountClosedInterviews,
		PromptTimeout:       c.Timeouts.Prompt,
		ConfirmationTimeout: c.Timeouts.Confirmation,
	}
}
