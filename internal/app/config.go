package app

import (
	"fmt"
	"strings"
	"time"
	// Timezones must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"

	coreconfig "github.com/m3rciful/leihbot/core/config"
	"github.com/m3rciful/leihbot/core/database"
)

// LendingConfig holds the wording and clock of the lending conversations.
type LendingConfig struct {
	// Timezone renders loan timestamps, e.g. "Europe/Berlin".
	Timezone string `yaml:"timezone" envconfig:"LENDING_TIMEZONE"`
	// CancelWords abort a conversation when sent as an answer.
	CancelWords []string `yaml:"cancel_words" envconfig:"LENDING_CANCEL_WORDS"`
	ConfirmWord string   `yaml:"confirm_word" envconfig:"LENDING_CONFIRM_WORD"`
}

// Config is the full bot configuration: the shared core sections plus the
// database and lending sections.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database database.Config `yaml:"database"`
	Lending  LendingConfig   `yaml:"lending"`

	location *time.Location
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// Location returns the resolved lending timezone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// DefaultLending returns the lending settings used when the section is absent.
func DefaultLending() LendingConfig {
	return LendingConfig{
		Timezone:    "Europe/Berlin",
		CancelWords: []string{"cancel", "abbrechen"},
		ConfirmWord: "yes",
	}
}

// Load reads the YAML file at path, overlays environment variables and
// validates every section.
func Load(path string) (*Config, error) {
	cfg := Config{
		Config:  coreconfig.Config{Conversation: coreconfig.DefaultConversation()},
		Lending: DefaultLending(),
	}

	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates all sections and resolves the timezone.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}
	return cfg.Lending.normalize(&cfg.location)
}

func (l *LendingConfig) normalize(loc **time.Location) error {
	tz := strings.TrimSpace(l.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	resolved, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid lending.timezone %q: %w", l.Timezone, err)
	}
	l.Timezone = tz
	*loc = resolved

	words := l.CancelWords[:0]
	for _, w := range l.CancelWords {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return fmt.Errorf("lending.cancel_words must not be empty")
	}
	l.CancelWords = words

	l.ConfirmWord = strings.TrimSpace(l.ConfirmWord)
	if l.ConfirmWord == "" {
		return fmt.Errorf("lending.confirm_word is required")
	}
	for _, w := range l.CancelWords {
		if strings.EqualFold(w, l.ConfirmWord) {
			return fmt.Errorf("lending.confirm_word %q is also a cancel word", l.ConfirmWord)
		}
	}
	return nil
}
