// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/kubestellar/agenda-gen/internal/domain"
)

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
// Every list method is bounded to a single page of perPage items to bound API
// cost; callers rely on the documented sort order of each method, never on
// completeness.
type Fetcher interface {
	// ListClosedPullRequests returns closed PRs sorted by update time descending.
	ListClosedPullRequests(ctx context.Context, repo string, perPage int) ([]domain.PullRequest, error)
	// ListOpenPullRequests returns open PRs sorted by creation time descending.
	ListOpenPullRequests(ctx context.Context, repo string, perPage int) ([]domain.PullRequest, error)
	// ListIssuesByLabel returns open issues carrying the given label. A
	// nonexistent label yields an empty list, not an error.
	ListIssuesByLabel(ctx context.Context, repo, label string, perPage int) ([]domain.Issue, error)
	// ListRecentPullRequests returns PRs in any state sorted by update time descending.
	ListRecentPullRequests(ctx context.Context, repo string, perPage int) ([]domain.PullRequest, error)
	// ListRecentIssues returns issues in any state sorted by update time
	// descending. Items that are actually pull requests are included and
	// flagged as such.
	ListRecentIssues(ctx context.Context, repo string, perPage int) ([]domain.Issue, error)
	// SearchDiscussionIssues returns open non-PR issues updated since the
	// given time, ranked by comment count descending.
	SearchDiscussionIssues(ctx context.Context, repo string, updatedSince time.Time, limit int) ([]domain.Issue, error)
	// LatestRelease returns the most recent published release.
	LatestRelease(ctx context.Context, repo string) (domain.Release, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
}

// discussionIssuesQuery ranks open issues by comment volume via the search API.
type discussionIssuesQuery struct {
	Search struct {
		Edges []struct {
			Node struct {
				Typename string `graphql:"__typename"`
				Issue    struct {
					Number    githubv4.Int
					Title     githubv4.String
					URL       githubv4.URI `graphql:"url"`
					CreatedAt githubv4.DateTime
					UpdatedAt githubv4.DateTime
					Author    struct {
						Login githubv4.String
					}
					Comments struct {
						TotalCount githubv4.Int
					}
					Labels struct {
						Nodes []struct {
							Name githubv4.String
						}
					} `graphql:"labels(first: 10)"`
				} `graphql:"... on Issue"`
			}
		}
	} `graphql:"search(query: $query, type: ISSUE, first: $limit)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
// An empty token yields an unauthenticated client, which works but is subject
// to much stricter rate limits.
func NewGitHubGateway(token string, logger *log.Logger) (Fetcher, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	httpClient := &http.Client{Transport: rateLimitWaiter}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = &http.Client{
			Transport: &oauth2.Transport{
				Base:   rateLimitWaiter,
				Source: ts,
			},
		}
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
	}, nil
}

func (g *GitHubGateway) ListClosedPullRequests(ctx context.Context, repo string, perPage int) ([]domain.PullRequest, error) {
	g.logger.Printf("Fetching closed pull requests for %s...\n", repo)
	return g.listPullRequests(ctx, repo, &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	})
}

func (g *GitHubGateway) ListOpenPullRequests(ctx context.Context, repo string, perPage int) ([]domain.PullRequest, error) {
	g.logger.Printf("Fetching open pull requests for %s...\n", repo)
	return g.listPullRequests(ctx, repo, &github.PullRequestListOptions{
		State:       "open",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	})
}

func (g *GitHubGateway) ListRecentPullRequests(ctx context.Context, repo string, perPage int) ([]domain.PullRequest, error) {
	g.logger.Printf("Fetching recently updated pull requests for %s...\n", repo)
	return g.listPullRequests(ctx, repo, &github.PullRequestListOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	})
}

func (g *GitHubGateway) listPullRequests(ctx context.Context, repo string, opts *github.PullRequestListOptions) ([]domain.PullRequest, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	prs, _, err := g.restClient.PullRequests.List(ctx, owner, name, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests for %s: %w", repo, err)
	}
	result := make([]domain.PullRequest, 0, len(prs))
	for _, pr := range prs {
		result = append(result, toPullRequest(pr))
	}
	return result, nil
}

func (g *GitHubGateway) ListIssuesByLabel(ctx context.Context, repo, label string, perPage int) ([]domain.Issue, error) {
	g.logger.Printf("Fetching %q issues for %s...\n", label, repo)
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	issues, _, err := g.restClient.Issues.ListByRepo(ctx, owner, name, &github.IssueListByRepoOptions{
		State:       "open",
		Labels:      []string{label},
		ListOptions: github.ListOptions{PerPage: perPage},
	})
	if err != nil {
		// A label that does not exist in the repository is not worth
		// surfacing; the caller probes several label aliases.
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %q issues for %s: %w", label, repo, err)
	}
	return toIssues(issues), nil
}

func (g *GitHubGateway) ListRecentIssues(ctx context.Context, repo string, perPage int) ([]domain.Issue, error) {
	g.logger.Printf("Fetching recently updated issues for %s...\n", repo)
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	issues, _, err := g.restClient.Issues.ListByRepo(ctx, owner, name, &github.IssueListByRepoOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent issues for %s: %w", repo, err)
	}
	return toIssues(issues), nil
}

// SearchDiscussionIssues uses the GraphQL search API so the comment-count
// ranking happens in the query itself rather than client-side.
func (g *GitHubGateway) SearchDiscussionIssues(ctx context.Context, repo string, updatedSince time.Time, limit int) ([]domain.Issue, error) {
	g.logger.Printf("Searching discussion-worthy issues for %s...\n", repo)
	query := fmt.Sprintf("repo:%s is:issue is:open updated:>=%s sort:comments-desc",
		repo, updatedSince.Format("2006-01-02"))
	variables := map[string]interface{}{
		"query": githubv4.String(query),
		"limit": githubv4.Int(limit),
	}
	var q discussionIssuesQuery
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to search discussion issues for %s: %w", repo, err)
	}
	issues := make([]domain.Issue, 0, len(q.Search.Edges))
	for _, edge := range q.Search.Edges {
		if edge.Node.Typename != "Issue" {
			continue
		}
		node := edge.Node.Issue
		labels := make([]string, 0, len(node.Labels.Nodes))
		for _, l := range node.Labels.Nodes {
			labels = append(labels, string(l.Name))
		}
		var url string
		if node.URL.URL != nil {
			url = node.URL.String()
		}
		issues = append(issues, domain.Issue{
			Number:    int(node.Number),
			Title:     string(node.Title),
			Author:    string(node.Author.Login),
			URL:       url,
			CreatedAt: node.CreatedAt.Time,
			UpdatedAt: node.UpdatedAt.Time,
			Labels:    labels,
			Comments:  int(node.Comments.TotalCount),
		})
	}
	return issues, nil
}

func (g *GitHubGateway) LatestRelease(ctx context.Context, repo string) (domain.Release, error) {
	g.logger.Printf("Fetching latest release for %s...\n", repo)
	owner, name, err := splitRepo(repo)
	if err != nil {
		return domain.Release{}, err
	}
	release, _, err := g.restClient.Repositories.GetLatestRelease(ctx, owner, name)
	if err != nil {
		return domain.Release{}, fmt.Errorf("failed to fetch latest release for %s: %w", repo, err)
	}
	date := "N/A"
	if published := release.GetPublishedAt(); !published.IsZero() {
		date = published.Format("2006-01-02")
	}
	return domain.Release{
		Version: release.GetTagName(),
		URL:     release.GetHTMLURL(),
		Date:    date,
	}, nil
}

func toPullRequest(pr *github.PullRequest) domain.PullRequest {
	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}
	return domain.PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Author:    pr.GetUser().GetLogin(),
		URL:       pr.GetHTMLURL(),
		CreatedAt: pr.GetCreatedAt().Time,
		UpdatedAt: pr.GetUpdatedAt().Time,
		MergedAt:  pr.GetMergedAt().Time,
		Labels:    labels,
	}
}

func toIssues(issues []*github.Issue) []domain.Issue {
	result := make([]domain.Issue, 0, len(issues))
	for _, issue := range issues {
		labels := make([]string, 0, len(issue.Labels))
		for _, l := range issue.Labels {
			labels = append(labels, l.GetName())
		}
		result = append(result, domain.Issue{
			Number:        issue.GetNumber(),
			Title:         issue.GetTitle(),
			Author:        issue.GetUser().GetLogin(),
			URL:           issue.GetHTMLURL(),
			CreatedAt:     issue.GetCreatedAt().Time,
			UpdatedAt:     issue.GetUpdatedAt().Time,
			Labels:        labels,
			Comments:      issue.GetComments(),
			IsPullRequest: issue.IsPullRequest(),
		})
	}
	return result
}

func splitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository name %q: want owner/name", repo)
	}
	return owner, name, nil
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		code := ghErr.Response.StatusCode
		return code == http.StatusNotFound || code == http.StatusUnprocessableEntity
	}
	return false
}
