package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// REST is a Client speaking the GitHub v3 JSON API. It also works against
// the local trackerd server, which exposes the same subset of routes.
type REST struct {
	BaseURL    string
	Tokens     TokenSource
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewREST creates a client with sane defaults. baseURL is
// "https://api.github.com" for the real tracker.
func NewREST(baseURL string, tokens TokenSource) *REST {
	return &REST{
		BaseURL: baseURL,
		Tokens:  tokens,
		Timeout: 30 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tracker api error: status=%d body=%s", e.StatusCode, e.Body)
}

type restLabel struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type restUser struct {
	Login string `json:"login"`
}

type restMilestone struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

type restIssue struct {
	Number    int            `json:"number"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Locked    bool           `json:"locked"`
	Assignees []restUser     `json:"assignees"`
	Milestone *restMilestone `json:"milestone"`
	Labels    []restLabel    `json:"labels"`
}

func (i restIssue) toIssue() Issue {
	out := Issue{
		Number: i.Number,
		Title:  i.Title,
		Body:   i.Body,
		Locked: i.Locked,
	}
	for _, a := range i.Assignees {
		out.Assignees = append(out.Assignees, a.Login)
	}
	if i.Milestone != nil {
		out.Milestone = i.Milestone.Title
	}
	for _, l := range i.Labels {
		out.Labels = append(out.Labels, l.Name)
	}
	return out
}

func (c *REST) ListLabels(ctx context.Context, repo Repo) ([]Label, error) {
	var out []Label
	for page := 1; ; page++ {
		var batch []restLabel
		endpoint := fmt.Sprintf("repos/%s/labels?per_page=100&page=%d", repo, page)
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &batch); err != nil {
			return nil, err
		}
		for _, l := range batch {
			out = append(out, Label{Name: l.Name, Color: l.Color})
		}
		if len(batch) < 100 {
			return out, nil
		}
	}
}

func (c *REST) CreateLabel(ctx context.Context, repo Repo, label Label) error {
	endpoint := fmt.Sprintf("repos/%s/labels", repo)
	return c.do(ctx, http.MethodPost, endpoint, map[string]string{
		"name":  label.Name,
		"color": label.Color,
	}, nil)
}

func (c *REST) ListIssuesInMilestone(ctx context.Context, repo Repo, milestone string) ([]Issue, error) {
	ms, err := c.findMilestone(ctx, repo, milestone)
	if err != nil {
		return nil, err
	}
	var out []Issue
	for page := 1; ; page++ {
		var batch []restIssue
		endpoint := fmt.Sprintf("repos/%s/issues?milestone=%d&state=all&per_page=100&page=%d", repo, ms.Number, page)
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &batch); err != nil {
			return nil, err
		}
		for _, is := range batch {
			out = append(out, is.toIssue())
		}
		if len(batch) < 100 {
			return out, nil
		}
	}
}

func (c *REST) FetchIssue(ctx context.Context, repo Repo, number int) (Issue, error) {
	var is restIssue
	endpoint := fmt.Sprintf("repos/%s/issues/%d", repo, number)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &is); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return Issue{}, fmt.Errorf("issue #%d: %w", number, ErrNotFound)
		}
		return Issue{}, err
	}
	return is.toIssue(), nil
}

func (c *REST) CreateIssue(ctx context.Context, repo Repo, issue NewIssue) (int, error) {
	ms, err := c.findMilestone(ctx, repo, issue.Milestone)
	if err != nil {
		return 0, err
	}
	var created restIssue
	endpoint := fmt.Sprintf("repos/%s/issues", repo)
	err = c.do(ctx, http.MethodPost, endpoint, map[string]any{
		"title":     issue.Title,
		"body":      issue.Body,
		"labels":    issue.Labels,
		"assignees": issue.Assignees,
		"milestone": ms.Number,
	}, &created)
	if err != nil {
		return 0, err
	}
	return created.Number, nil
}

func (c *REST) ChangeTitle(ctx context.Context, repo Repo, number int, title string) error {
	endpoint := fmt.Sprintf("repos/%s/issues/%d", repo, number)
	return c.do(ctx, http.MethodPatch, endpoint, map[string]any{"title": title}, nil)
}

func (c *REST) ChangeMilestone(ctx context.Context, repo Repo, number int, milestone string) error {
	ms, err := c.findMilestone(ctx, repo, milestone)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("repos/%s/issues/%d", repo, number)
	return c.do(ctx, http.MethodPatch, endpoint, map[string]any{"milestone": ms.Number}, nil)
}

func (c *REST) CreateComment(ctx context.Context, repo Repo, number int, body string) error {
	endpoint := fmt.Sprintf("repos/%s/issues/%d/comments", repo, number)
	return c.do(ctx, http.MethodPost, endpoint, map[string]string{"body": body}, nil)
}

func (c *REST) UpdateIssueBody(ctx context.Context, repo Repo, number int, body string) error {
	endpoint := fmt.Sprintf("repos/%s/issues/%d", repo, number)
	return c.do(ctx, http.MethodPatch, endpoint, map[string]any{"body": body}, nil)
}

// SyncAssignees removes and adds assignees one user at a time. A rejected
// user (for example someone who left the organization) is skipped; the rest
// of the sync still applies.
func (c *REST) SyncAssignees(ctx context.Context, repo Repo, number int, remove, add []string) error {
	endpoint := fmt.Sprintf("repos/%s/issues/%d/assignees", repo, number)
	if len(remove) > 0 {
		err := c.do(ctx, http.MethodDelete, endpoint, map[string][]string{"assignees": remove}, nil)
		if err != nil && !isUserRejection(err) {
			return err
		}
	}
	for _, user := range add {
		err := c.do(ctx, http.MethodPost, endpoint, map[string][]string{"assignees": {user}}, nil)
		if err != nil && !isUserRejection(err) {
			return err
		}
	}
	return nil
}

func (c *REST) LockIssue(ctx context.Context, repo Repo, number int) error {
	endpoint := fmt.Sprintf("repos/%s/issues/%d/lock", repo, number)
	return c.do(ctx, http.MethodPut, endpoint, map[string]string{"lock_reason": "too heated"}, nil)
}

func (c *REST) findMilestone(ctx context.Context, repo Repo, title string) (restMilestone, error) {
	var all []restMilestone
	endpoint := fmt.Sprintf("repos/%s/milestones?state=all&per_page=100", repo)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &all); err != nil {
		return restMilestone{}, err
	}
	for _, ms := range all {
		if ms.Title == title {
			return ms, nil
		}
	}
	return restMilestone{}, fmt.Errorf("milestone %q: %w", title, ErrNotFound)
}

func (c *REST) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	reqURL := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.Tokens != nil {
		token, err := c.Tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("tracker auth: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func isUserRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnprocessableEntity || apiErr.StatusCode == http.StatusNotFound
}

var _ Client = (*REST)(nil)
