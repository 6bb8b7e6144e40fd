package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	server := httptest.NewServer(handler)

	// Setup REST client to point to the mock server.
	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	// Use NewEnterpriseClient to point the GraphQL client to our mock server's URL.
	graphqlClient := githubv4.NewEnterpriseClient(server.URL, server.Client())
	logger := log.New(io.Discard, "", 0)

	gateway := &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger,
	}

	return gateway, server
}

func TestGitHubGateway_ListClosedPullRequests(t *testing.T) {
	testCases := []struct {
		name           string
		handlerFunc    func(w http.ResponseWriter, r *http.Request)
		expectError    bool
		expectedErrMsg string
	}{
		{
			name: "happy path - maps API fields onto domain records",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.URL.Path, "/repos/org/repo/pulls")
				assert.Equal(t, "closed", r.URL.Query().Get("state"))
				assert.Equal(t, "updated", r.URL.Query().Get("sort"))
				assert.Equal(t, "desc", r.URL.Query().Get("direction"))
				assert.Equal(t, "50", r.URL.Query().Get("per_page"))
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, `[
					{"number": 12, "title": "Fix status sync", "user": {"login": "alice"},
					 "html_url": "https://github.com/org/repo/pull/12",
					 "created_at": "2026-01-01T10:00:00Z", "updated_at": "2026-01-03T10:00:00Z",
					 "merged_at": "2026-01-03T10:00:00Z", "labels": [{"name": "breaking-change"}]},
					{"number": 11, "title": "Closed without merging", "user": {"login": "bob"},
					 "html_url": "https://github.com/org/repo/pull/11",
					 "created_at": "2025-12-30T10:00:00Z", "updated_at": "2026-01-02T10:00:00Z"}
				]`)
			},
		},
		{
			name: "error case - GitHub API returns an error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"message": "Internal Server Error"}`)
			},
			expectError:    true,
			expectedErrMsg: "failed to list pull requests",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, server := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))
			defer server.Close()

			prs, err := gateway.ListClosedPullRequests(context.Background(), "org/repo", 50)

			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			require.NoError(t, err)
			require.Len(t, prs, 2)
			assert.Equal(t, 12, prs[0].Number)
			assert.Equal(t, "alice", prs[0].Author)
			assert.Equal(t, []string{"breaking-change"}, prs[0].Labels)
			assert.Equal(t, time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC), prs[0].MergedAt)
			// An unmerged closed PR keeps the zero merge time.
			assert.True(t, prs[1].MergedAt.IsZero())
		})
	}
}

func TestGitHubGateway_ListIssuesByLabel(t *testing.T) {
	testCases := []struct {
		name        string
		handlerFunc func(w http.ResponseWriter, r *http.Request)
		expectEmpty bool
		expectError bool
	}{
		{
			name: "happy path - PR-typed items are flagged",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.URL.Path, "/repos/org/repo/issues")
				assert.Equal(t, "help wanted", r.URL.Query().Get("labels"))
				assert.Equal(t, "open", r.URL.Query().Get("state"))
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, `[
					{"number": 7, "title": "Improve docs", "user": {"login": "carol"},
					 "html_url": "https://github.com/org/repo/issues/7", "comments": 2,
					 "labels": [{"name": "help wanted"}],
					 "created_at": "2026-01-01T00:00:00Z", "updated_at": "2026-01-02T00:00:00Z"},
					{"number": 8, "title": "Actually a PR", "user": {"login": "dave"},
					 "html_url": "https://github.com/org/repo/pull/8",
					 "pull_request": {"url": "https://api.github.com/repos/org/repo/pulls/8"},
					 "created_at": "2026-01-01T00:00:00Z", "updated_at": "2026-01-02T00:00:00Z"}
				]`)
			},
		},
		{
			name: "missing label - 404 yields an empty list, not an error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message": "Not Found"}`)
			},
			expectEmpty: true,
		},
		{
			name: "server failure - surfaces an error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"message": "Internal Server Error"}`)
			},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, server := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))
			defer server.Close()

			issues, err := gateway.ListIssuesByLabel(context.Background(), "org/repo", "help wanted", 30)

			switch {
			case tc.expectError:
				assert.Error(t, err)
			case tc.expectEmpty:
				assert.NoError(t, err)
				assert.Empty(t, issues)
			default:
				require.NoError(t, err)
				require.Len(t, issues, 2)
				assert.Equal(t, 7, issues[0].Number)
				assert.False(t, issues[0].IsPullRequest)
				assert.Equal(t, 2, issues[0].Comments)
				assert.True(t, issues[1].IsPullRequest)
			}
		})
	}
}

func TestGitHubGateway_SearchDiscussionIssues(t *testing.T) {
	testCases := []struct {
		name           string
		responseBody   string
		expectError    bool
		expectedErrMsg string
	}{
		{
			name: "happy path - parses ranked search results",
			responseBody: `{"data":{"search":{"edges":[
				{"node":{"__typename":"Issue","number":42,"title":"Placement API redesign",
				 "url":"https://github.com/org/repo/issues/42",
				 "createdAt":"2025-12-20T00:00:00Z","updatedAt":"2026-01-02T00:00:00Z",
				 "author":{"login":"erin"},"comments":{"totalCount":17},
				 "labels":{"nodes":[{"name":"kind/feature"},{"name":"area/api"}]}}},
				{"node":{"__typename":"PullRequest"}}
			]}}}`,
		},
		{
			name:           "error case - GraphQL errors propagate",
			responseBody:   `{"errors":[{"message":"Something went wrong"}]}`,
			expectError:    true,
			expectedErrMsg: "failed to search discussion issues",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), "sort:comments-desc")
				assert.Contains(t, string(body), "repo:org/repo")
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, tc.responseBody)
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
			defer server.Close()

			since := time.Date(2025, 12, 6, 0, 0, 0, 0, time.UTC)
			issues, err := gateway.SearchDiscussionIssues(context.Background(), "org/repo", since, 2)

			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			require.NoError(t, err)
			// The PullRequest node is dropped.
			require.Len(t, issues, 1)
			assert.Equal(t, 42, issues[0].Number)
			assert.Equal(t, "erin", issues[0].Author)
			assert.Equal(t, 17, issues[0].Comments)
			assert.Equal(t, []string{"kind/feature", "area/api"}, issues[0].Labels)
			assert.Equal(t, "https://github.com/org/repo/issues/42", issues[0].URL)
		})
	}
}

func TestGitHubGateway_LatestRelease(t *testing.T) {
	testCases := []struct {
		name         string
		handlerFunc  func(w http.ResponseWriter, r *http.Request)
		expectError  bool
		expectedDate string
	}{
		{
			name: "happy path",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.URL.Path, "/repos/org/repo/releases/latest")
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, `{"tag_name": "v0.28.0", "html_url": "https://github.com/org/repo/releases/tag/v0.28.0",
					"published_at": "2026-01-02T09:00:00Z"}`)
			},
			expectedDate: "2026-01-02",
		},
		{
			name: "no releases - 404 is an error for the caller to degrade",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message": "Not Found"}`)
			},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, server := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))
			defer server.Close()

			release, err := gateway.LatestRelease(context.Background(), "org/repo")

			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "v0.28.0", release.Version)
			assert.Equal(t, tc.expectedDate, release.Date)
		})
	}
}

func TestSplitRepo(t *testing.T) {
	testCases := []struct {
		input       string
		owner, name string
		expectError bool
	}{
		{input: "org/repo", owner: "org", name: "repo"},
		{input: "no-slash", expectError: true},
		{input: "/repo", expectError: true},
		{input: "org/", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			owner, name, err := splitRepo(tc.input)
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.owner, owner)
			assert.Equal(t, tc.name, name)
		})
	}
}
