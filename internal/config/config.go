// Package config loads the fixed configuration surface of the agenda
// generator: the repository list, the lookback window, per-section display
// caps, and the meeting metadata links.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every fixed-value input supplied before the aggregator runs.
type Config struct {
	Repos                []string `yaml:"repos"`
	ReleaseRepo          string   `yaml:"release_repo"`
	LookbackDays         int      `yaml:"lookback_days"`
	MaxPRsToShow         int      `yaml:"max_prs_to_show"`
	MaxIssuesToShow      int      `yaml:"max_issues_to_show"`
	MaxDiscussionsToShow int      `yaml:"max_discussions_to_show"`
	DiscussionWindowDays int      `yaml:"discussion_window_days"`
	TopReposToHighlight  int      `yaml:"top_repos_to_highlight"`
	IssuesPerTopRepo     int      `yaml:"issues_per_top_repo"`
	MeetingTime          string   `yaml:"meeting_time"`
	MeetingLink          string   `yaml:"meeting_link"`
	YouTubeLink          string   `yaml:"youtube_link"`
	SlackChannel         string   `yaml:"slack_channel"`
}

// Default returns the compiled-in configuration used when no config file
// is supplied.
func Default() Config {
	return Config{
		Repos: []string{
			"kubestellar/kubestellar",
			"kubestellar/kubeflex",
			"kubestellar/ocm-status-addon",
			"kubestellar/docs",
			"kubestellar/ui",
		},
		ReleaseRepo:          "kubestellar/kubestellar",
		LookbackDays:         14,
		MaxPRsToShow:         8,
		MaxIssuesToShow:      5,
		MaxDiscussionsToShow: 5,
		DiscussionWindowDays: 30,
		TopReposToHighlight:  3,
		IssuesPerTopRepo:     2,
		MeetingTime:          "10AM ET",
		MeetingLink:          "https://teams.microsoft.com/l/meetup-join/...",
		YouTubeLink:          "https://kubestellar.io/tv",
		SlackChannel:         "https://cloud-native.slack.com/archives/C097094RZ3M",
	}
}

// Load reads a YAML config file layered over the defaults, so a partial
// file only overrides the keys it names.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the aggregator relies on.
func (c Config) Validate() error {
	if len(c.Repos) == 0 {
		return fmt.Errorf("config must list at least one repository")
	}
	for _, repo := range c.Repos {
		if !validRepoName(repo) {
			return fmt.Errorf("invalid repository name %q: want owner/name", repo)
		}
	}
	if c.ReleaseRepo != "" && !validRepoName(c.ReleaseRepo) {
		return fmt.Errorf("invalid release repository name %q: want owner/name", c.ReleaseRepo)
	}
	if c.LookbackDays <= 0 {
		return fmt.Errorf("lookback_days must be positive, got %d", c.LookbackDays)
	}
	if c.MaxPRsToShow <= 0 || c.MaxIssuesToShow <= 0 {
		return fmt.Errorf("display caps must be positive")
	}
	return nil
}

func validRepoName(repo string) bool {
	slash := -1
	for i, r := range repo {
		if r == '/' {
			if slash != -1 {
				return false
			}
			slash = i
		}
	}
	return slash > 0 && slash < len(repo)-1
}
