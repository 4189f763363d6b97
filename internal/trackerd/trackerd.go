// Package trackerd serves a local, GitHub-compatible subset of the issue
// tracker API over an in-memory store. It exists so sync runs can be
// rehearsed end to end without touching the real tracker: the REST client
// pointed at trackerd exercises the exact same routes and payloads.
package trackerd

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"goalsync/internal/tracker"
)

// Config for the trackerd handler.
type Config struct {
	Store *tracker.Memory

	// Milestones registers the milestone titles the server knows about, in
	// numbering order: the first entry is milestone number 1.
	Milestones []string

	// Token, when non-empty, requires Authorization: Bearer <token> on every
	// request.
	Token string
}

type ghErrorBody struct {
	Message string `json:"message"`
}

// ghError is the GitHub-style error envelope: a bare message object.
type ghError struct {
	status int
	Body   ghErrorBody
}

func (e *ghError) GetStatus() int { return e.status }
func (e *ghError) Error() string  { return e.Body.Message }

func newGHError(status int, message string) huma.StatusError {
	return &ghError{status: status, Body: ghErrorBody{Message: message}}
}

// New returns an HTTP handler exposing the tracker API subset.
func New(cfg Config) (http.Handler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("trackerd: store is required")
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the GitHub envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newGHError(status, msg)
	}

	router := chi.NewRouter()
	if cfg.Token != "" {
		router.Use(bearerAuth(cfg.Token))
	}
	hcfg := huma.DefaultConfig("Tracker API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)

	s := &server{store: cfg.Store, milestones: cfg.Milestones}
	s.register(api)
	return router, nil
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	want := "Bearer " + token
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != want {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"message":"Bad credentials"}`)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type server struct {
	store      *tracker.Memory
	milestones []string
}

func (s *server) milestoneByNumber(n int) (string, bool) {
	if n < 1 || n > len(s.milestones) {
		return "", false
	}
	return s.milestones[n-1], true
}

func (s *server) milestoneNumber(title string) (int, bool) {
	for i, t := range s.milestones {
		if t == title {
			return i + 1, true
		}
	}
	return 0, false
}

type labelBody struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type userBody struct {
	Login string `json:"login"`
}

type milestoneBody struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

type issueBody struct {
	Number    int            `json:"number"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	State     string         `json:"state"`
	Locked    bool           `json:"locked"`
	Assignees []userBody     `json:"assignees"`
	Milestone *milestoneBody `json:"milestone,omitempty"`
	Labels    []labelBody    `json:"labels"`
}

func (s *server) issueBody(ctx context.Context, repo tracker.Repo, is tracker.Issue) issueBody {
	out := issueBody{
		Number:    is.Number,
		Title:     is.Title,
		Body:      is.Body,
		State:     "open",
		Locked:    is.Locked,
		Assignees: []userBody{},
		Labels:    []labelBody{},
	}
	for _, a := range is.Assignees {
		out.Assignees = append(out.Assignees, userBody{Login: a})
	}
	if is.Milestone != "" {
		ms := milestoneBody{Title: is.Milestone}
		if n, ok := s.milestoneNumber(is.Milestone); ok {
			ms.Number = n
		}
		out.Milestone = &ms
	}
	colors := map[string]string{}
	if labels, err := s.store.ListLabels(ctx, repo); err == nil {
		for _, l := range labels {
			colors[l.Name] = l.Color
		}
	}
	for _, name := range is.Labels {
		out.Labels = append(out.Labels, labelBody{Name: name, Color: colors[name]})
	}
	return out
}

type RepoPath struct {
	Owner string `path:"owner"`
	Repo  string `path:"repo"`
}

func (p RepoPath) repo() tracker.Repo {
	return tracker.Repo{Owner: p.Owner, Name: p.Repo}
}

// page slices a window out of items the way per_page/page pagination does.
func page[T any](items []T, perPage, pageNum int) []T {
	if perPage <= 0 {
		perPage = 30
	}
	if pageNum <= 0 {
		pageNum = 1
	}
	start := (pageNum - 1) * perPage
	if start >= len(items) {
		return nil
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (s *server) register(api huma.API) {
	s.registerLabels(api)
	s.registerMilestones(api)
	s.registerIssues(api)
}

func (s *server) registerLabels(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-labels",
		Method:      http.MethodGet,
		Path:        "/repos/{owner}/{repo}/labels",
		Summary:     "List labels",
	}, func(ctx context.Context, input *struct {
		RepoPath
		PerPage int `query:"per_page" default:"30"`
		Page    int `query:"page" default:"1"`
	}) (*struct {
		Body []labelBody `json:"body"`
	}, error) {
		labels, err := s.store.ListLabels(ctx, input.repo())
		if err != nil {
			return nil, newGHError(http.StatusInternalServerError, err.Error())
		}
		out := []labelBody{}
		for _, l := range labels {
			out = append(out, labelBody{Name: l.Name, Color: l.Color})
		}
		return &struct {
			Body []labelBody `json:"body"`
		}{Body: page(out, input.PerPage, input.Page)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-label",
		Method:        http.MethodPost,
		Path:          "/repos/{owner}/{repo}/labels",
		Summary:       "Create label",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		RepoPath
		Body labelBody `json:"body"`
	}) (*struct {
		Body labelBody `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newGHError(http.StatusUnprocessableEntity, "Validation Failed: name is required")
		}
		label := tracker.Label{Name: input.Body.Name, Color: input.Body.Color}
		if err := s.store.CreateLabel(ctx, input.repo(), label); err != nil {
			return nil, newGHError(http.StatusUnprocessableEntity, err.Error())
		}
		return &struct {
			Body labelBody `json:"body"`
		}{Body: input.Body}, nil
	})
}

func (s *server) registerMilestones(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-milestones",
		Method:      http.MethodGet,
		Path:        "/repos/{owner}/{repo}/milestones",
		Summary:     "List milestones",
	}, func(ctx context.Context, input *struct {
		RepoPath
		State   string `query:"state" default:"open"`
		PerPage int    `query:"per_page" default:"30"`
		Page    int    `query:"page" default:"1"`
	}) (*struct {
		Body []milestoneBody `json:"body"`
	}, error) {
		out := []milestoneBody{}
		for i, title := range s.milestones {
			out = append(out, milestoneBody{Number: i + 1, Title: title})
		}
		return &struct {
			Body []milestoneBody `json:"body"`
		}{Body: page(out, input.PerPage, input.Page)}, nil
	})
}

func (s *server) registerIssues(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-issues",
		Method:      http.MethodGet,
		Path:        "/repos/{owner}/{repo}/issues",
		Summary:     "List issues",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RepoPath
		Milestone string `query:"milestone"`
		State     string `query:"state" default:"open"`
		PerPage   int    `query:"per_page" default:"30"`
		Page      int    `query:"page" default:"1"`
	}) (*struct {
		Body []issueBody `json:"body"`
	}, error) {
		out := []issueBody{}
		if input.Milestone != "" {
			n, err := strconv.Atoi(input.Milestone)
			if err != nil {
				return nil, newGHError(http.StatusNotFound, "milestone not found")
			}
			title, ok := s.milestoneByNumber(n)
			if !ok {
				return nil, newGHError(http.StatusNotFound, "milestone not found")
			}
			issues, err := s.store.ListIssuesInMilestone(ctx, input.repo(), title)
			if err != nil {
				return nil, newGHError(http.StatusInternalServerError, err.Error())
			}
			for _, is := range issues {
				out = append(out, s.issueBody(ctx, input.repo(), is))
			}
		}
		return &struct {
			Body []issueBody `json:"body"`
		}{Body: page(out, input.PerPage, input.Page)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-issue",
		Method:        http.MethodPost,
		Path:          "/repos/{owner}/{repo}/issues",
		Summary:       "Create issue",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		RepoPath
		Body struct {
			Title     string   `json:"title"`
			Body      string   `json:"body,omitempty"`
			Labels    []string `json:"labels,omitempty"`
			Assignees []string `json:"assignees,omitempty"`
			Milestone int      `json:"milestone,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body issueBody `json:"body"`
	}, error) {
		if input.Body.Title == "" {
			return nil, newGHError(http.StatusUnprocessableEntity, "Validation Failed: title is required")
		}
		milestone := ""
		if input.Body.Milestone != 0 {
			title, ok := s.milestoneByNumber(input.Body.Milestone)
			if !ok {
				return nil, newGHError(http.StatusUnprocessableEntity, "Validation Failed: milestone not found")
			}
			milestone = title
		}
		number, err := s.store.CreateIssue(ctx, input.repo(), tracker.NewIssue{
			Title:     input.Body.Title,
			Body:      input.Body.Body,
			Labels:    input.Body.Labels,
			Assignees: input.Body.Assignees,
			Milestone: milestone,
		})
		if err != nil {
			return nil, newGHError(http.StatusUnprocessableEntity, err.Error())
		}
		is, err := s.store.FetchIssue(ctx, input.repo(), number)
		if err != nil {
			return nil, newGHError(http.StatusInternalServerError, err.Error())
		}
		return &struct {
			Body issueBody `json:"body"`
		}{Body: s.issueBody(ctx, input.repo(), is)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-issue",
		Method:      http.MethodGet,
		Path:        "/repos/{owner}/{repo}/issues/{number}",
		Summary:     "Get issue",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RepoPath
		Number int `path:"number"`
	}) (*struct {
		Body issueBody `json:"body"`
	}, error) {
		is, err := s.store.FetchIssue(ctx, input.repo(), input.Number)
		if err != nil {
			return nil, newGHError(http.StatusNotFound, "Not Found")
		}
		return &struct {
			Body issueBody `json:"body"`
		}{Body: s.issueBody(ctx, input.repo(), is)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-issue",
		Method:      http.MethodPatch,
		Path:        "/repos/{owner}/{repo}/issues/{number}",
		Summary:     "Update issue",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		RepoPath
		Number int `path:"number"`
		Body   struct {
			Title     *string `json:"title,omitempty"`
			Body      *string `json:"body,omitempty"`
			Milestone *int    `json:"milestone,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body issueBody `json:"body"`
	}, error) {
		repo := input.repo()
		if input.Body.Title != nil {
			if err := s.store.ChangeTitle(ctx, repo, input.Number, *input.Body.Title); err != nil {
				return nil, newGHError(http.StatusNotFound, "Not Found")
			}
		}
		if input.Body.Body != nil {
			if err := s.store.UpdateIssueBody(ctx, repo, input.Number, *input.Body.Body); err != nil {
				return nil, newGHError(http.StatusNotFound, "Not Found")
			}
		}
		if input.Body.Milestone != nil {
			title, ok := s.milestoneByNumber(*input.Body.Milestone)
			if !ok {
				return nil, newGHError(http.StatusUnprocessableEntity, "Validation Failed: milestone not found")
			}
			if err := s.store.ChangeMilestone(ctx, repo, input.Number, title); err != nil {
				return nil, newGHError(http.StatusNotFound, "Not Found")
			}
		}
		is, err := s.store.FetchIssue(ctx, repo, input.Number)
		if err != nil {
			return nil, newGHError(http.StatusNotFound, "Not Found")
		}
		return &struct {
			Body issueBody `json:"body"`
		}{Body: s.issueBody(ctx, repo, is)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-comment",
		Method:        http.MethodPost,
		Path:          "/repos/{owner}/{repo}/issues/{number}/comments",
		Summary:       "Create issue comment",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RepoPath
		Number int `path:"number"`
		Body   struct {
			Body string `json:"body"`
		} `json:"body"`
	}) (*struct {
		Body struct {
			Body string `json:"body"`
		} `json:"body"`
	}, error) {
		if err := s.store.CreateComment(ctx, input.repo(), input.Number, input.Body.Body); err != nil {
			return nil, newGHError(http.StatusNotFound, "Not Found")
		}
		return &struct {
			Body struct {
				Body string `json:"body"`
			} `json:"body"`
		}{Body: input.Body}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-assignees",
		Method:        http.MethodPost,
		Path:          "/repos/{owner}/{repo}/issues/{number}/assignees",
		Summary:       "Add assignees",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RepoPath
		Number int `path:"number"`
		Body   struct {
			Assignees []string `json:"assignees"`
		} `json:"body"`
	}) (*struct {
		Body issueBody `json:"body"`
	}, error) {
		repo := input.repo()
		if err := s.store.SyncAssignees(ctx, repo, input.Number, nil, input.Body.Assignees); err != nil {
			return nil, newGHError(http.StatusNotFound, "Not Found")
		}
		is, err := s.store.FetchIssue(ctx, repo, input.Number)
		if err != nil {
			return nil, newGHError(http.StatusNotFound, "Not Found")
		}
		return &struct {
			Body issueBody `json:"body"`
		}{Body: s.issueBody(ctx, repo, is)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-assignees",
		Method:      http.MethodDelete,
		Path:        "/repos/{owner}/{repo}/issues/{number}/assignees",
		Summary:     "Remove assignees",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RepoPath
		Number int `path:"number"`
		Body   struct {
			Assignees []string `json:"assignees"`
		} `json:"body"`
	}) (*struct {
		Body issueBody `json:"body"`
	}, error) {
		repo := input.repo()
		if err := s.store.SyncAssignees(ctx, repo, input.Number, input.Body.Assignees, nil); err != nil {
			return nil, newGHError(http.StatusNotFound, "Not Found")
		}
		is, err := s.store.FetchIssue(ctx, repo, input.Number)
		if err != nil {
			return nil, newGHError(http.StatusNotFound, "Not Found")
		}
		return &struct {
			Body issueBody `json:"body"`
		}{Body: s.issueBody(ctx, repo, is)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "lock-issue",
		Method:        http.MethodPut,
		Path:          "/repos/{owner}/{repo}/issues/{number}/lock",
		Summary:       "Lock issue",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RepoPath
		Number int `path:"number"`
		Body   struct {
			LockReason string `json:"lock_reason,omitempty"`
		} `json:"body"`
	}) (*struct{}, error) {
		if err := s.store.LockIssue(ctx, input.repo(), input.Number); err != nil {
			return nil, newGHError(http.StatusNotFound, "Not Found")
		}
		return &struct{}{}, nil
	})
}

// MilestoneTitles normalizes a comma separated milestone list from the CLI.
func MilestoneTitles(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
