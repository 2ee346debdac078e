
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Sources   SourcesConfig   `yaml:"sources"`
	WorldGold WorldGoldConfig `yaml:"world_gold"`
	Regional  RegionalConfig  `yaml:"regional"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Redis     RedisConfig     `yaml:"redis"`
	Telegram  TelegramConfig  `yaml:"telegram"`

	// If true, debug lines are logged.
	Debug bool `yaml:"debug"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	StaticDir       string        `yaml:"static_dir"`
	AllowOrigins    []string      `yaml:"allow_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type SourcesConfig struct {
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	AhlatciURL      string        `yaml:"ahlatci_url" validate:"required,url"`
	AhlatciFeedTTL  time.Duration `yaml:"ahlatci_feed_ttl" validate:"gte=0"`
	TruncgilURL     string        `yaml:"truncgil_url" validate:"required,url"`
	TCMBURL         string        `yaml:"tcmb_url" validate:"required,url"`
	TCMBTimeout     time.Duration `yaml:"tcmb_timeout" validate:"gt=0"`
	ExchangeRateURL string        `yaml:"exchangerate_url" validate:"required,url"`
	// TrustedGold lists the sources averaged for XAU.
	TrustedGold []string `yaml:"trusted_gold" validate:"dive,oneof=ahlatciDoviz haremAltin hakanDoviz carsiDoviz"`
}

type WorldGoldConfig struct {
	TTL              time.Duration `yaml:"ttl" validate:"gt=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	MetalPriceAPIKey string        `yaml:"metalpriceapi_key"`
	GoldAPIToken     string        `yaml:"goldapi_token"`
	MetalsAPIKey     string        `yaml:"metals_api_key"`
	// ManualPrice is the last-resort XAU/USD price, set with cmd/goldprice.
	ManualPrice float64 `yaml:"manual_price" validate:"omitempty,gt=1000,lt=10000"`
}

type RegionalConfig struct {
	Enabled         bool          `yaml:"enabled"`
	URL             string        `yaml:"url" validate:"omitempty,url"`
	IstanbulID      string        `yaml:"istanbul_id" validate:"required_if=Enabled true"`
	LondonID        string        `yaml:"london_id" validate:"required_if=Enabled true"`
	USDCandidateIDs []string      `yaml:"usd_candidate_ids"`
	ChromePath      string        `yaml:"chrome_path"`
	UserAgent       string        `yaml:"user_agent"`
	TTL             time.Duration `yaml:"ttl" validate:"gt=0"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout" validate:"gt=0"`
	WaitTimeout     time.Duration `yaml:"wait_timeout" validate:"gt=0"`
}

type SnapshotConfig struct {
	TTL          time.Duration `yaml:"ttl" validate:"gt=0"`
	CycleTimeout time.Duration `yaml:"cycle_timeout" validate:"gt=0"`
}

type ScheduleConfig struct {
	Enabled              bool `yaml:"enabled"`
	SnapshotEveryMinutes int  `yaml:"snapshot_every_minutes" validate:"min=1,max=60"`
	WorldGoldEveryHours  int  `yaml:"world_gold_every_hours" validate:"min=1,max=24"`
}

// RedisConfig enables the shared world gold cache when Addr is set.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db" validate:"gte=0"`
	Key       string        `yaml:"key" validate:"required_with=Addr"`
	Retention time.Duration `yaml:"retention" validate:"gte=0"`
}

// TelegramConfig enables the publisher and commands when Token is set.
type TelegramConfig struct {
	Token    string  `yaml:"token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
	AdminIDs []int64 `yaml:"admin_ids"`
	PostMode string  `yaml:"post_mode" validate:"oneof=edit new"`
	Template string  `yaml:"template"`
	Commands bool    `yaml:"commands"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            3000,
			ShutdownTimeout: 10 * time.Second,
		},
		Sources: SourcesConfig{
			Timeout:         5 * time.Second,
			AhlatciURL:      "https://www.ahlatcidoviz.com.tr/static/currencies.json",
			AhlatciFeedTTL:  20 * time.Second,
			TruncgilURL:     "https://finans.truncgil.com/v4/today.json",
			TCMBURL:         "https://www.tcmb.gov.tr/kurlar/today.xml",
			TCMBTimeout:     3 * time.Second,
			ExchangeRateURL: "https://api.exchangerate-api.com/v4/latest/USD",
			TrustedGold:     []string{"haremAltin", "hakanDoviz"},
		},
		WorldGold: WorldGoldConfig{
			TTL:     6 * time.Hour,
			Timeout: 5 * time.Second,
		},
		Regional: RegionalConfig{
			Enabled:    true,
			URL:        "https://www.hakanaltin.com/",
			IstanbulID: "span_ask_129",
			LondonID:   "span_ask_450",
			USDCandidateIDs: []string{
				"span_ask_113", "span_ask_114", "span_ask_115",
				"span_ask_116", "span_ask_117", "span_ask_118",
			},
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			TTL:             10 * time.Minute,
			NavigateTimeout: 20 * time.Second,
			WaitTimeout:     8 * time.Second,
		},
		Snapshot: SnapshotConfig{TTL: 10 * time.Minute, CycleTimeout: 2 * time.Minute},
		Schedule: ScheduleConfig{
			Enabled:              true,
			SnapshotEveryMinutes: 10,
			WorldGoldEveryHours:  6,
		},
		Redis: RedisConfig{
			Key:       "doviz:world-gold",
			Retention: 7 * 24 * time.Hour,
		},
		Telegram: TelegramConfig{PostMode: "edit"},
	}
}

func DefaultConfigPath() string {
	if v := os.Getenv("DOVIZ_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}

// Load reads path over the defaults, then .env and environment overrides,
// then validates. A missing file is not an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := Default()
	// 1) Try file
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid config yaml: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	// 2) .env, never overriding variables already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	// 3) Env override
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
			}
		}
	}

	str(&cfg.Server.Host, "DOVIZ_HOST")
	str(&cfg.Server.StaticDir, "DOVIZ_STATIC_DIR")
	for _, k := range []string{"PORT", "DOVIZ_PORT"} {
		if v := os.Getenv(k); v != "" {
			p, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			cfg.Server.Port = p
		}
	}

	str(&cfg.WorldGold.MetalPriceAPIKey, "DOVIZ_METALPRICEAPI_KEY")
	str(&cfg.WorldGold.GoldAPIToken, "DOVIZ_GOLDAPI_TOKEN")
	str(&cfg.WorldGold.MetalsAPIKey, "DOVIZ_METALS_API_KEY")
	if v := os.Getenv("DOVIZ_MANUAL_GOLD_PRICE"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DOVIZ_MANUAL_GOLD_PRICE: %w", err)
		}
		cfg.WorldGold.ManualPrice = p
	}

	str(&cfg.Regional.ChromePath, "CHROME_PATH", "PUPPETEER_EXECUTABLE_PATH", "DOVIZ_CHROME_PATH")
	if v := os.Getenv("DOVIZ_REGIONAL_ENABLED"); v != "" {
		cfg.Regional.Enabled = truthy(v)
	}

	str(&cfg.Redis.Addr, "DOVIZ_REDIS_ADDR")
	str(&cfg.Redis.Password, "DOVIZ_REDIS_PASSWORD")

	str(&cfg.Telegram.Token, "BOT_TOKEN", "DOVIZ_TELEGRAM_TOKEN")
	if v := os.Getenv("DOVIZ_TELEGRAM_CHATS"); v != "" {
		cfg.Telegram.ChatIDs = parseIDList(v)
	}
	if v := os.Getenv("DOVIZ_TELEGRAM_ADMINS"); v != "" {
		cfg.Telegram.AdminIDs = parseIDList(v)
	}

	if v := os.Getenv("DOVIZ_DEBUG"); v != "" {
		cfg.Debug = truthy(v)
	}
	return nil
}

func truthy(v string) bool {
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

func parseIDList(s string) []int64 {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err == nil {
			out = append(out, id)
		}
	}
	return out
}

// SetManualGoldPrice writes world_gold.manual_price into the YAML file at
// path, keeping the rest of the document and its comments. The file is
// created when missing.
func SetManualGoldPrice(path string, price float64) error {
	var doc yaml.Node
	b, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}
	if len(strings.TrimSpace(string(b))) > 0 {
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return fmt.Errorf("invalid config yaml: %w", err)
		}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("config %s: top level is not a mapping", path)
	}

	wg := mappingChild(root, "world_gold")
	setScalar(wg, "manual_price", strconv.FormatFloat(price, 'f', -1, 64))

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func mappingChild(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != key {
			continue
		}
		v := m.Content[i+1]
		if v.Kind != yaml.MappingNode {
			*v = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		}
		return v
	}
	v := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, v)
	return v
}

func setScalar(m *yaml.Node, key, value string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Value: value}
			return
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Value: value},
	)
}
