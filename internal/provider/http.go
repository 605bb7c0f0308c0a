package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/graphsync/internal/iterate"
	"github.com/alfredjeanlab/graphsync/internal/model"
)

// Default page sizes for the two APIs.
const (
	issuePageSize     = 50
	directoryPageSize = 100
)

// Options configures an HTTPClient.
type Options struct {
	// TrackerURL is the issue tracker base URL, e.g. "https://acme.atlassian.net".
	TrackerURL   string
	TrackerUser  string
	TrackerToken string

	// DirectoryURL is the directory API base URL, e.g. "https://api.github.com".
	DirectoryURL   string
	DirectoryToken string
	Organization   string
	InstallationID string

	Timeout time.Duration
}

// HTTPClient implements Client over the provider REST APIs.
type HTTPClient struct {
	opts       Options
	httpClient *http.Client
}

// NewHTTPClient creates a client for the given options.
func NewHTTPClient(opts Options) *HTTPClient {
	opts.TrackerURL = strings.TrimRight(opts.TrackerURL, "/")
	opts.DirectoryURL = strings.TrimRight(opts.DirectoryURL, "/")
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		opts:       opts,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ Client = (*HTTPClient)(nil)

// --- Issue tracker ---

func (c *HTTPClient) FetchProjects(ctx context.Context) ([]*model.Project, error) {
	var projects []*model.Project
	if err := c.tracker(ctx, http.MethodGet, "/rest/api/3/project", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *HTTPClient) FetchFields(ctx context.Context) ([]*model.Field, error) {
	var fields []*model.Field
	if err := c.tracker(ctx, http.MethodGet, "/rest/api/3/field", nil, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// searchResponse is the offset-paginated issue search envelope.
type searchResponse struct {
	StartAt    int            `json:"startAt"`
	MaxResults int            `json:"maxResults"`
	Total      int            `json:"total"`
	Issues     []*model.Issue `json:"issues"`
}

// ListIssues returns one page of issues matching jql. The token is the
// decimal offset of the page; the empty token starts at zero.
func (c *HTTPClient) ListIssues(ctx context.Context, jql, token string) (iterate.Page[*model.Issue], error) {
	startAt := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n < 0 {
			return iterate.Page[*model.Issue]{}, fmt.Errorf("invalid issue page token %q", token)
		}
		startAt = n
	}

	q := url.Values{}
	q.Set("jql", jql)
	q.Set("startAt", strconv.Itoa(startAt))
	q.Set("maxResults", strconv.Itoa(issuePageSize))

	var resp searchResponse
	if err := c.tracker(ctx, http.MethodGet, "/rest/api/3/search?"+q.Encode(), nil, &resp); err != nil {
		return iterate.Page[*model.Issue]{}, err
	}

	page := iterate.Page[*model.Issue]{Items: resp.Issues}
	next := resp.StartAt + len(resp.Issues)
	if len(resp.Issues) > 0 && next < resp.Total {
		page.Next = strconv.Itoa(next)
	}
	return page, nil
}

// CreateIssue creates an issue and reads it back so the caller gets the
// full set of fields.
func (c *HTTPClient) CreateIssue(ctx context.Context, req *CreateIssueRequest) (*model.Issue, error) {
	body := map[string]any{
		"fields": map[string]any{
			"project":     map[string]string{"key": req.Project},
			"summary":     req.Summary,
			"description": req.Description,
			"issuetype":   map[string]string{"name": req.IssueType},
		},
	}
	var created struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := c.tracker(ctx, http.MethodPost, "/rest/api/3/issue", body, &created); err != nil {
		return nil, err
	}

	var issue model.Issue
	if err := c.tracker(ctx, http.MethodGet, "/rest/api/3/issue/"+url.PathEscape(created.Key), nil, &issue); err != nil {
		return nil, fmt.Errorf("reading created issue %s: %w", created.Key, err)
	}
	return &issue, nil
}

// --- Organization directory ---

type dirAccount struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Type  string `json:"type"`
}

func (c *HTTPClient) GetAccount(ctx context.Context) (*model.Account, error) {
	var a dirAccount
	if err := c.directory(ctx, "/orgs/"+url.PathEscape(c.opts.Organization), &a); err != nil {
		return nil, err
	}
	return &model.Account{ID: id(a.ID), Login: a.Login, Name: a.Name, Type: a.Type}, nil
}

type dirUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role_name"`
}

func (c *HTTPClient) ListMembers(ctx context.Context, token string) (iterate.Page[*model.Member], error) {
	var users []dirUser
	page, err := c.directoryPage(ctx, c.orgPath("/members"), token, &users)
	if err != nil {
		return iterate.Page[*model.Member]{}, err
	}
	out := iterate.Page[*model.Member]{Next: nextPage(page, len(users))}
	for _, u := range users {
		out.Items = append(out.Items, &model.Member{ID: id(u.ID), Login: u.Login, Name: u.Name, Email: u.Email, Role: u.Role})
	}
	return out, nil
}

type dirTeam struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

func (c *HTTPClient) ListTeams(ctx context.Context, token string) (iterate.Page[*model.Team], error) {
	var teams []dirTeam
	page, err := c.directoryPage(ctx, c.orgPath("/teams"), token, &teams)
	if err != nil {
		return iterate.Page[*model.Team]{}, err
	}
	out := iterate.Page[*model.Team]{Next: nextPage(page, len(teams))}
	for _, t := range teams {
		out.Items = append(out.Items, &model.Team{ID: id(t.ID), Name: t.Name, Slug: t.Slug, Description: t.Description})
	}
	return out, nil
}

// ListTeamMembers lists the members of one team. Each result carries the
// team id as its foreign key.
func (c *HTTPClient) ListTeamMembers(ctx context.Context, teamID, token string) (iterate.Page[*model.TeamMember], error) {
	var users []dirUser
	page, err := c.directoryPage(ctx, "/teams/"+url.PathEscape(teamID)+"/members", token, &users)
	if err != nil {
		return iterate.Page[*model.TeamMember]{}, err
	}
	out := iterate.Page[*model.TeamMember]{Next: nextPage(page, len(users))}
	for _, u := range users {
		out.Items = append(out.Items, &model.TeamMember{ID: id(u.ID), Login: u.Login, Role: u.Role, Teams: teamID})
	}
	return out, nil
}

type dirRepo struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	FullName    string          `json:"full_name"`
	Private     bool            `json:"private"`
	Archived    bool            `json:"archived"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	Permissions map[string]bool `json:"permissions"`
}

// ListTeamRepos lists the repositories a team can access. Each result
// carries the team id as its foreign key.
func (c *HTTPClient) ListTeamRepos(ctx context.Context, teamID, token string) (iterate.Page[*model.TeamRepo], error) {
	var repos []dirRepo
	page, err := c.directoryPage(ctx, "/teams/"+url.PathEscape(teamID)+"/repos", token, &repos)
	if err != nil {
		return iterate.Page[*model.TeamRepo]{}, err
	}
	out := iterate.Page[*model.TeamRepo]{Next: nextPage(page, len(repos))}
	for _, r := range repos {
		out.Items = append(out.Items, &model.TeamRepo{ID: id(r.ID), Name: r.Name, Permission: permission(r.Permissions), Teams: teamID})
	}
	return out, nil
}

func (c *HTTPClient) ListRepos(ctx context.Context, token string) (iterate.Page[*model.Repo], error) {
	var repos []dirRepo
	page, err := c.directoryPage(ctx, c.orgPath("/repos"), token, &repos)
	if err != nil {
		return iterate.Page[*model.Repo]{}, err
	}
	out := iterate.Page[*model.Repo]{Next: nextPage(page, len(repos))}
	for _, r := range repos {
		out.Items = append(out.Items, &model.Repo{
			ID:        id(r.ID),
			Name:      r.Name,
			FullName:  r.FullName,
			Private:   r.Private,
			Archived:  r.Archived,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

// GetPermissions reads the scopes granted to the installation.
func (c *HTTPClient) GetPermissions(ctx context.Context) (*model.Permissions, error) {
	var resp struct {
		Permissions model.Permissions `json:"permissions"`
	}
	if err := c.directory(ctx, "/app/installations/"+url.PathEscape(c.opts.InstallationID), &resp); err != nil {
		return nil, err
	}
	return &resp.Permissions, nil
}

// --- internal helpers ---

// APIError represents an error response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (c *HTTPClient) orgPath(suffix string) string {
	return "/orgs/" + url.PathEscape(c.opts.Organization) + suffix
}

func (c *HTTPClient) tracker(ctx context.Context, method, path string, body, result any) error {
	return c.doJSON(ctx, method, c.opts.TrackerURL+path, body, result, func(req *http.Request) {
		if c.opts.TrackerUser != "" {
			req.SetBasicAuth(c.opts.TrackerUser, c.opts.TrackerToken)
		} else if c.opts.TrackerToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.opts.TrackerToken)
		}
	})
}

func (c *HTTPClient) directory(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodGet, c.opts.DirectoryURL+path, nil, result, func(req *http.Request) {
		req.Header.Set("Accept", "application/vnd.github+json")
		if c.opts.DirectoryToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.opts.DirectoryToken)
		}
	})
}

// directoryPage fetches one numbered page. The token is the page number;
// the empty token is page 1. It returns the page number fetched.
func (c *HTTPClient) directoryPage(ctx context.Context, path, token string, result any) (int, error) {
	page := 1
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n < 1 {
			return 0, fmt.Errorf("invalid directory page token %q", token)
		}
		page = n
	}
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(directoryPageSize))
	q.Set("page", strconv.Itoa(page))
	if err := c.directory(ctx, path+"?"+q.Encode(), result); err != nil {
		return 0, err
	}
	return page, nil
}

// nextPage returns the token for the page after page, or "" when the
// current page was short.
func nextPage(page, n int) string {
	if n < directoryPageSize {
		return ""
	}
	return strconv.Itoa(page + 1)
}

// permission returns the strongest permission granted.
func permission(perms map[string]bool) string {
	for _, p := range []string{"admin", "maintain", "push", "triage", "pull"} {
		if perms[p] {
			return p
		}
	}
	return ""
}

func id(n int64) string {
	return strconv.FormatInt(n, 10)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
func (c *HTTPClient) doJSON(ctx context.Context, method, rawURL string, body, result any, auth func(*http.Request)) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// errorMessage extracts the message from either API's error envelope.
func errorMessage(body []byte) string {
	var env struct {
		Message       string   `json:"message"`
		ErrorMessages []string `json:"errorMessages"`
	}
	if json.Unmarshal(body, &env) == nil {
		if env.Message != "" {
			return env.Message
		}
		if len(env.ErrorMessages) > 0 {
			return strings.Join(env.ErrorMessages, "; ")
		}
	}
	return strings.TrimSpace(string(body))
}
