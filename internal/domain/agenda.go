// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"time"
)

// PullRequest is a read-only snapshot of a pull request taken at query time.
// MergedAt is the zero time for pull requests that were closed without merging
// and for open pull requests.
type PullRequest struct {
	Number    int
	Title     string
	Author    string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
	MergedAt  time.Time
	Labels    []string
	DaysOpen  int
}

// Issue is a read-only snapshot of an issue taken at query time.
// The GitHub issues API returns pull requests alongside issues, so the
// snapshot records whether the item is actually a pull request.
type Issue struct {
	Number        int
	Title         string
	Author        string
	URL           string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Labels        []string
	Comments      int
	IsPullRequest bool
}

// Release describes the latest published release of a repository.
// All fields are pre-formatted display strings.
type Release struct {
	Version string
	URL     string
	Date    string
}

// UnknownRelease is the sentinel returned when a repository has no
// published releases or the release lookup failed.
func UnknownRelease() Release {
	return Release{Version: "Unknown", URL: "#", Date: "N/A"}
}

// RepoActivity pairs a repository with its activity score for ranking.
// The score is the count of items updated within the lookback window and
// is never persisted or compared across runs.
type RepoActivity struct {
	Repo  string
	Score int
}

// RepoTopics groups discussion-worthy issues under their repository.
type RepoTopics struct {
	Repo   string
	Issues []Issue
}

// Agenda is the plain data bundle handed to the renderer. Every slice is
// already filtered, sorted, and truncated to its display cap.
type Agenda struct {
	MeetingDate      time.Time
	GeneratedAt      time.Time
	MergedPRs        []PullRequest
	OpenPRs          []PullRequest
	HelpWanted       []Issue
	Contributors     []string
	DiscussionTopics []RepoTopics
	Release          Release

	// Review-backlog age statistics over the displayed open PRs, in days.
	BacklogMedianDays float64
	BacklogMaxDays    float64

	// Warnings collected from fetch operations that degraded to empty
	// results. Never fatal; surfaced in the rendered document footer.
	Warnings []string
}

// TruncateTitle shortens a title to at most max runes, appending an
// ellipsis when anything was cut.
func TruncateTitle(title string, max int) string {
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	return string(runes[:max]) + "..."
}

// DaysOpen returns the whole number of days between createdAt and now.
func DaysOpen(createdAt, now time.Time) int {
	return int(now.Sub(createdAt).Hours() / 24)
}

// ShortRepoName strips the owner prefix from an "owner/name" identifier.
func ShortRepoName(repo string) string {
	for i := len(repo) - 1; i >= 0; i-- {
		if repo[i] == '/' {
			return repo[i+1:]
		}
	}
	return repo
}
