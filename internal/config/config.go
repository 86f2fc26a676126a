// Package config holds the crawl settings and the table of documentation
// sections to visit.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultStartURL is the home page of the HCM tables and views reference.
const DefaultStartURL = "https://docs.oracle.com/en/cloud/saas/human-resources/25a/oedmh/index.html"

//go:embed sections.yaml
var defaultSections []byte

var ErrNoSections = errors.New("no sections configured")

// Section is one top-level grouping of the documentation. Tables and Views
// are the ids of its navigation subtrees; an empty id means the section has
// no pages of that kind.
type Section struct {
	Name   string `mapstructure:"name"`
	Tables string `mapstructure:"tables"`
	Views  string `mapstructure:"views"`
}

// LoadSections reads the section table from a YAML file, or the built-in
// table when path is empty.
func LoadSections(path string) ([]Section, error) {
	v := viper.New()
	if path == "" {
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewReader(defaultSections)); err != nil {
			return nil, fmt.Errorf("reading built-in sections: %w", err)
		}
	} else {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading sections file: %w", err)
		}
	}

	var sections []Section
	if err := v.UnmarshalKey("sections", &sections); err != nil {
		return nil, fmt.Errorf("decoding sections: %w", err)
	}
	if err := validate(sections); err != nil {
		return nil, err
	}
	return sections, nil
}

func validate(sections []Section) error {
	if len(sections) == 0 {
		return ErrNoSections
	}
	seen := map[string]bool{}
	for i, s := range sections {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("section %d has no name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate section %q", s.Name)
		}
		seen[s.Name] = true
		if s.Tables == "" && s.Views == "" {
			return fmt.Errorf("section %q has neither a tables nor a views subtree", s.Name)
		}
	}
	return nil
}

// Filter keeps the sections named in only, in table order. An empty only
// keeps everything.
func Filter(sections []Section, only []string) ([]Section, error) {
	if len(only) == 0 {
		return sections, nil
	}
	want := map[string]bool{}
	for _, name := range only {
		want[name] = true
	}
	var out []Section
	for _, s := range sections {
		if want[s.Name] {
			out = append(out, s)
			delete(want, s.Name)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for name := range want {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown sections: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Retry holds the retry budgets and delays of the navigation driver.
type Retry struct {
	ExpandAttempts int
	ExpandBackoff  time.Duration
	LeafAttempts   int
	StaleWait      time.Duration
	Settle         time.Duration
	WaitTimeout    time.Duration
}

// Settings is the resolved configuration of one run.
type Settings struct {
	Output         string
	Concurrency    int
	SectionsFile   string
	Only           []string
	Ledger         string
	RecycleSession bool
	Verbose        bool

	StartURL   string
	BrowserBin string
	Headless   bool
	Trace      bool
	Width      int
	Height     int
	Zoom       string

	LoadTimeout    time.Duration
	ConsentTimeout time.Duration
	InitialWait    time.Duration
	ReloadWait     time.Duration

	Retry Retry
}

// SetDefaults registers the default of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("concurrency", 15)
	v.SetDefault("ledger", "extraction.db")
	v.SetDefault("start-url", DefaultStartURL)
	v.SetDefault("headless", true)
	v.SetDefault("viewport.width", 1920)
	v.SetDefault("viewport.height", 1080)
	v.SetDefault("zoom", "75%")

	v.SetDefault("wait.load", 30*time.Second)
	v.SetDefault("wait.consent", 20*time.Second)
	v.SetDefault("wait.initial", 5*time.Second)
	v.SetDefault("wait.reload", 2*time.Second)
	v.SetDefault("wait.element", 30*time.Second)
	v.SetDefault("wait.settle", 2*time.Second)
	v.SetDefault("wait.stale", 2*time.Second)

	v.SetDefault("retry.expand-attempts", 10)
	v.SetDefault("retry.expand-backoff", 5*time.Second)
	v.SetDefault("retry.leaf-attempts", 3)
}

// Load resolves the settings held by v.
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		Output:         v.GetString("output"),
		Concurrency:    v.GetInt("concurrency"),
		SectionsFile:   v.GetString("sections-file"),
		Only:           v.GetStringSlice("only"),
		Ledger:         v.GetString("ledger"),
		RecycleSession: v.GetBool("recycle-session"),
		Verbose:        v.GetBool("verbose"),

		StartURL:   v.GetString("start-url"),
		BrowserBin: v.GetString("browser-bin"),
		Headless:   v.GetBool("headless"),
		Trace:      v.GetBool("trace"),
		Width:      v.GetInt("viewport.width"),
		Height:     v.GetInt("viewport.height"),
		Zoom:       v.GetString("zoom"),

		LoadTimeout:    v.GetDuration("wait.load"),
		ConsentTimeout: v.GetDuration("wait.consent"),
		InitialWait:    v.GetDuration("wait.initial"),
		ReloadWait:     v.GetDuration("wait.reload"),

		Retry: Retry{
			ExpandAttempts: v.GetInt("retry.expand-attempts"),
			ExpandBackoff:  v.GetDuration("retry.expand-backoff"),
			LeafAttempts:   v.GetInt("retry.leaf-attempts"),
			StaleWait:      v.GetDuration("wait.stale"),
			Settle:         v.GetDuration("wait.settle"),
			WaitTimeout:    v.GetDuration("wait.element"),
		},
	}
	if s.Concurrency < 1 {
		return s, fmt.Errorf("concurrency must be at least 1, got %d", s.Concurrency)
	}
	if s.Retry.ExpandAttempts < 1 || s.Retry.LeafAttempts < 1 {
		return s, errors.New("retry attempts must be at least 1")
	}
	return s, nil
}

// DefaultOutput is the suggested base directory for the workbooks.
func DefaultOutput() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Oracle_Excel_Files"
	}
	return filepath.Join(home, "Desktop", "Oracle_Excel_Files")
}
