// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"github.com/kubestellar/agenda-gen/internal/config"
	"github.com/kubestellar/agenda-gen/internal/domain"
	"github.com/kubestellar/agenda-gen/internal/gateway"
)

// Scan bounds and display-shaping constants. The page sizes bound API cost
// per repository; the title lengths match the column widths of the rendered
// agenda sections.
const (
	closedPRScanSize   = 50
	openPRScanSize     = 30
	activityScanSize   = 30
	helpWantedScanSize = 30

	minReviewAgeDays = 3

	mergedTitleLen     = 60
	openTitleLen       = 50
	issueTitleLen      = 50
	discussionTitleLen = 45
	discussionLabelCap = 3
)

// helpWantedLabels are the label aliases probed for contributor-friendly
// issues. Repositories label these inconsistently, so both spaced and
// hyphenated spellings are tried.
var helpWantedLabels = []string{"help wanted", "good first issue", "help-wanted", "good-first-issue"}

// Aggregator is the use case for building the agenda data bundle.
// It orchestrates the fetching, filtering, and ranking of repository activity.
type Aggregator struct {
	fetcher gateway.Fetcher
	cfg     config.Config
	logger  *log.Logger
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.Fetcher, cfg config.Config, logger *log.Logger) *Aggregator {
	return &Aggregator{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
	}
}

// repoActivity holds one repository's fetch results plus any warnings
// produced while degrading failed fetches to empty results.
type repoActivity struct {
	merged       []domain.PullRequest
	open         []domain.PullRequest
	helpWanted   []domain.Issue
	contributors []string
	score        int
	warnings     []string
}

// Aggregate performs the main business logic. All filtering is anchored to
// the single now timestamp taken at invocation; two runs never share state.
//
// Fetches fan out per repository, but every result lands in a slot indexed
// by configuration order and all pooling, sorting, and truncation happen
// after the fan-in, so the output is identical to a sequential run given
// the same API responses.
func (a *Aggregator) Aggregate(ctx context.Context, meetingDate, now time.Time) (*domain.Agenda, error) {
	a.logger.Println("Usecase: Starting agenda aggregation...")
	cutoff := now.AddDate(0, 0, -a.cfg.LookbackDays)

	results := make([]repoActivity, len(a.cfg.Repos))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, repo := range a.cfg.Repos {
		i, repo := i, repo
		eg.Go(func() error {
			results[i] = a.collectRepo(egCtx, repo, cutoff, now)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	a.logger.Println("Usecase: All repository data fetched.")

	agenda := &domain.Agenda{
		MeetingDate: meetingDate,
		GeneratedAt: now,
	}

	contributorSet := make(map[string]struct{})
	for _, res := range results {
		agenda.MergedPRs = append(agenda.MergedPRs, res.merged...)
		// Open PRs are concatenated in configuration order, each list
		// pre-sorted per repository. A more-stale PR from a later
		// repository can fall past the display cap; kept as-is for
		// fidelity with the existing report.
		agenda.OpenPRs = append(agenda.OpenPRs, res.open...)
		agenda.HelpWanted = append(agenda.HelpWanted, res.helpWanted...)
		agenda.Warnings = append(agenda.Warnings, res.warnings...)
		for _, author := range res.contributors {
			contributorSet[author] = struct{}{}
		}
	}

	sort.SliceStable(agenda.MergedPRs, func(i, j int) bool {
		return agenda.MergedPRs[i].MergedAt.After(agenda.MergedPRs[j].MergedAt)
	})
	agenda.MergedPRs = capPRs(agenda.MergedPRs, a.cfg.MaxPRsToShow)
	agenda.OpenPRs = capPRs(agenda.OpenPRs, a.cfg.MaxPRsToShow)
	agenda.HelpWanted = capIssues(agenda.HelpWanted, a.cfg.MaxIssuesToShow)

	agenda.Contributors = make([]string, 0, len(contributorSet))
	for author := range contributorSet {
		agenda.Contributors = append(agenda.Contributors, author)
	}
	sort.Strings(agenda.Contributors)

	agenda.BacklogMedianDays, agenda.BacklogMaxDays = backlogAgeStats(agenda.OpenPRs)

	topRepos := a.rankRepositories(results)
	a.logger.Printf("Usecase: Top active repositories: %v\n", topRepos)
	since := now.AddDate(0, 0, -a.cfg.DiscussionWindowDays)
	for _, repo := range topRepos {
		issues, err := a.fetcher.SearchDiscussionIssues(ctx, repo, since, a.cfg.IssuesPerTopRepo)
		if err != nil {
			agenda.Warnings = append(agenda.Warnings, a.warn("could not fetch discussion issues from %s: %v", repo, err))
			continue
		}
		agenda.DiscussionTopics = append(agenda.DiscussionTopics, domain.RepoTopics{
			Repo:   repo,
			Issues: shapeDiscussionIssues(issues, a.cfg.IssuesPerTopRepo),
		})
	}

	releaseRepo := a.cfg.ReleaseRepo
	if releaseRepo == "" {
		releaseRepo = a.cfg.Repos[0]
	}
	release, err := a.fetcher.LatestRelease(ctx, releaseRepo)
	if err != nil {
		agenda.Warnings = append(agenda.Warnings, a.warn("could not fetch release info from %s: %v", releaseRepo, err))
		release = domain.UnknownRelease()
	}
	agenda.Release = release

	a.logger.Println("Usecase: Aggregation complete.")
	return agenda, nil
}

// collectRepo gathers one repository's activity. Every fetch failure is
// degraded to an empty result plus a warning; nothing here aborts the run.
func (a *Aggregator) collectRepo(ctx context.Context, repo string, cutoff, now time.Time) repoActivity {
	var res repoActivity

	closed, err := a.fetcher.ListClosedPullRequests(ctx, repo, closedPRScanSize)
	if err != nil {
		res.warnings = append(res.warnings, a.warn("could not fetch merged PRs from %s: %v", repo, err))
	} else {
		res.merged = mergedWithinWindow(closed, cutoff)
		res.contributors = authorsOf(res.merged)
	}

	open, err := a.fetcher.ListOpenPullRequests(ctx, repo, openPRScanSize)
	if err != nil {
		res.warnings = append(res.warnings, a.warn("could not fetch open PRs from %s: %v", repo, err))
	} else {
		res.open = reviewBacklog(open, now)
	}

	res.helpWanted = a.helpWantedIssues(ctx, repo)
	res.score = a.activityScore(ctx, repo, cutoff, &res.warnings)
	return res
}

// mergedWithinWindow keeps pull requests merged after the cutoff.
//
// Precondition: prs are sorted by update time descending, which is what the
// GitHub API returns for sort=updated direction=desc. The scan stops at the
// first item updated before the cutoff; under unsorted input this would
// silently under-count rather than misbehave.
func mergedWithinWindow(prs []domain.PullRequest, cutoff time.Time) []domain.PullRequest {
	var merged []domain.PullRequest
	for _, pr := range prs {
		switch {
		case !pr.MergedAt.IsZero() && pr.MergedAt.After(cutoff):
			pr.Title = domain.TruncateTitle(pr.Title, mergedTitleLen)
			merged = append(merged, pr)
		case pr.UpdatedAt.Before(cutoff):
			return merged
		}
	}
	return merged
}

// authorsOf returns the author handle of each pull request, in order and
// with duplicates intact; the caller deduplicates across repositories.
func authorsOf(prs []domain.PullRequest) []string {
	authors := make([]string, 0, len(prs))
	for _, pr := range prs {
		authors = append(authors, pr.Author)
	}
	return authors
}

// reviewBacklog keeps open pull requests that have waited at least
// minReviewAgeDays, sorted by staleness.
func reviewBacklog(prs []domain.PullRequest, now time.Time) []domain.PullRequest {
	var backlog []domain.PullRequest
	for _, pr := range prs {
		pr.DaysOpen = domain.DaysOpen(pr.CreatedAt, now)
		if pr.DaysOpen < minReviewAgeDays {
			continue
		}
		pr.Title = domain.TruncateTitle(pr.Title, openTitleLen)
		backlog = append(backlog, pr)
	}
	sort.SliceStable(backlog, func(i, j int) bool {
		return backlog[i].DaysOpen > backlog[j].DaysOpen
	})
	return backlog
}

// helpWantedIssues probes each label alias and pools the matches. An issue
// carrying two matching labels appears twice; the duplication is inherited
// from the report this replaces and is preserved deliberately. Per-alias
// failures are logged but produce no warning, since most repositories only
// define a subset of the aliases.
func (a *Aggregator) helpWantedIssues(ctx context.Context, repo string) []domain.Issue {
	var pooled []domain.Issue
	for _, label := range helpWantedLabels {
		issues, err := a.fetcher.ListIssuesByLabel(ctx, repo, label, helpWantedScanSize)
		if err != nil {
			a.logger.Printf("Skipping label %q on %s: %v\n", label, repo, err)
			continue
		}
		for _, issue := range issues {
			if issue.IsPullRequest {
				continue
			}
			issue.Title = domain.TruncateTitle(issue.Title, issueTitleLen)
			pooled = append(pooled, issue)
		}
	}
	return pooled
}

// activityScore counts pull requests and non-PR issues updated within the
// lookback window. Both scans early-exit on the same descending-update-order
// precondition as mergedWithinWindow. The score is never negative and never
// persisted; it only ranks repositories within this run.
func (a *Aggregator) activityScore(ctx context.Context, repo string, cutoff time.Time, warnings *[]string) int {
	score := 0
	prs, err := a.fetcher.ListRecentPullRequests(ctx, repo, activityScanSize)
	if err != nil {
		*warnings = append(*warnings, a.warn("could not calculate PR activity for %s: %v", repo, err))
	} else {
		for _, pr := range prs {
			if !pr.UpdatedAt.After(cutoff) {
				break
			}
			score++
		}
	}
	issues, err := a.fetcher.ListRecentIssues(ctx, repo, activityScanSize)
	if err != nil {
		*warnings = append(*warnings, a.warn("could not calculate issue activity for %s: %v", repo, err))
		return score
	}
	for _, issue := range issues {
		if !issue.IsPullRequest && issue.UpdatedAt.After(cutoff) {
			score++
		} else if issue.UpdatedAt.Before(cutoff) {
			break
		}
	}
	return score
}

// rankRepositories orders repositories by activity score descending and
// returns the top few with a nonzero score. Ties keep configuration order.
func (a *Aggregator) rankRepositories(results []repoActivity) []string {
	ranked := make([]domain.RepoActivity, 0, len(a.cfg.Repos))
	for i, repo := range a.cfg.Repos {
		ranked = append(ranked, domain.RepoActivity{Repo: repo, Score: results[i].score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	var top []string
	for _, entry := range ranked {
		if entry.Score == 0 || len(top) >= a.cfg.TopReposToHighlight {
			break
		}
		top = append(top, entry.Repo)
	}
	return top
}

// shapeDiscussionIssues applies display shaping to ranked search results:
// PR-typed items are dropped, titles shortened, and label sets capped.
func shapeDiscussionIssues(issues []domain.Issue, limit int) []domain.Issue {
	shaped := make([]domain.Issue, 0, limit)
	for _, issue := range issues {
		if issue.IsPullRequest {
			continue
		}
		issue.Title = domain.TruncateTitle(issue.Title, discussionTitleLen)
		if len(issue.Labels) > discussionLabelCap {
			issue.Labels = issue.Labels[:discussionLabelCap]
		}
		shaped = append(shaped, issue)
		if len(shaped) >= limit {
			break
		}
	}
	return shaped
}

// backlogAgeStats summarizes the age of the displayed review backlog.
func backlogAgeStats(open []domain.PullRequest) (median, max float64) {
	if len(open) == 0 {
		return 0, 0
	}
	ages := make(stats.Float64Data, 0, len(open))
	for _, pr := range open {
		ages = append(ages, float64(pr.DaysOpen))
	}
	if m, err := stats.Median(ages); err == nil {
		median = m
	}
	if m, err := stats.Max(ages); err == nil {
		max = m
	}
	return median, max
}

func (a *Aggregator) warn(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	a.logger.Println("Warning: " + msg)
	return msg
}

func capPRs(prs []domain.PullRequest, max int) []domain.PullRequest {
	if len(prs) > max {
		return prs[:max]
	}
	return prs
}

func capIssues(issues []domain.Issue, max int) []domain.Issue {
	if len(issues) > max {
		return issues[:max]
	}
	return issues
}
