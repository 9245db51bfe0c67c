package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shurcooL/graphql"

	"github.com/pmurley/sheetwatch/internal/cache"
	"github.com/pmurley/sheetwatch/pkg/logger"
)

const DefaultGraphQLURL = "https://api.github.com/graphql"

// CreateIssueInput mirrors GitHub's GraphQL input; the Go type name is
// sent as the variable type, so it must match exactly.
type CreateIssueInput struct {
	RepositoryID graphql.ID     `json:"repositoryId"`
	Title        graphql.String `json:"title"`
	Body         graphql.String `json:"body"`
}

// AddProjectV2ItemByIdInput mirrors GitHub's GraphQL input of the same name.
type AddProjectV2ItemByIdInput struct { //nolint:revive // name is fixed by the GitHub schema
	ProjectID graphql.ID `json:"projectId"`
	ContentID graphql.ID `json:"contentId"`
}

// GitHubOptions configures the GitHub notifier
type GitHubOptions struct {
	Token       string
	Owner       string
	Repo        string
	Endpoint    string // GraphQL URL
	ProjectID   string // Projects v2 node id; empty skips board linkage
	TitlePrefix string
	Cache       *cache.Cache
	Logger      *logger.Logger
	HTTPClient  *http.Client // Optional; wrapped with token auth
}

// GitHub files one issue per dedup key and skips keys that already have
// an open issue.
type GitHub struct {
	client      *graphql.Client
	owner       string
	repo        string
	projectID   string
	titlePrefix string
	cache       *cache.Cache
	logger      *logger.Logger
}

func NewGitHub(opts GitHubOptions) *GitHub {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultGraphQLURL
	}
	base := http.DefaultTransport
	if opts.HTTPClient != nil && opts.HTTPClient.Transport != nil {
		base = opts.HTTPClient.Transport
	}
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &authTransport{token: opts.Token, base: base},
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	c := opts.Cache
	if c == nil {
		c = cache.New(time.Hour)
	}

	return &GitHub{
		client:      graphql.NewClient(endpoint, httpClient),
		owner:       opts.Owner,
		repo:        opts.Repo,
		projectID:   opts.ProjectID,
		titlePrefix: opts.TitlePrefix,
		cache:       c,
		logger:      log,
	}
}

func (g *GitHub) Name() string { return "github" }

func (g *GitHub) Notify(ctx context.Context, e Event) error {
	title := e.Title(g.titlePrefix)

	if url, ok := g.cache.GetIssueURL(title); ok {
		g.logger.Debug("Issue already filed (cached): ", url)
		return nil
	}

	existing, err := g.findOpenIssue(ctx, title)
	if err != nil {
		return err
	}
	if existing != "" {
		g.logger.Info("Open issue already exists, skipping: ", existing)
		g.cache.SetIssueURL(title, existing)
		return nil
	}

	repoID, err := g.repositoryID(ctx)
	if err != nil {
		return err
	}

	var m struct {
		CreateIssue struct {
			Issue struct {
				ID     graphql.ID
				Number graphql.Int
				URL    graphql.String
			}
		} `graphql:"createIssue(input: $input)"`
	}
	input := CreateIssueInput{
		RepositoryID: repoID,
		Title:        graphql.String(title),
		Body:         graphql.String(IssueBody(e)),
	}
	if err := g.client.Mutate(ctx, &m, map[string]interface{}{"input": input}); err != nil {
		return fmt.Errorf("failed to create issue %q: %w", title, err)
	}

	url := string(m.CreateIssue.Issue.URL)
	g.logger.Info("Created issue #", int(m.CreateIssue.Issue.Number), ": ", url)
	g.cache.SetIssueURL(title, url)

	if g.projectID != "" {
		if err := g.addToProject(ctx, m.CreateIssue.Issue.ID); err != nil {
			return err
		}
	}
	return nil
}

// findOpenIssue returns the URL of an open issue titled exactly title.
func (g *GitHub) findOpenIssue(ctx context.Context, title string) (string, error) {
	var q struct {
		Search struct {
			Nodes []struct {
				Issue struct {
					Title graphql.String
					URL   graphql.String
				} `graphql:"... on Issue"`
			}
		} `graphql:"search(query: $query, type: ISSUE, first: 20)"`
	}
	query := fmt.Sprintf("repo:%s/%s is:issue is:open in:title %q", g.owner, g.repo, title)

	if err := g.client.Query(ctx, &q, map[string]interface{}{"query": graphql.String(query)}); err != nil {
		return "", fmt.Errorf("failed to search issues: %w", err)
	}
	for _, node := range q.Search.Nodes {
		if string(node.Issue.Title) == title {
			return string(node.Issue.URL), nil
		}
	}
	return "", nil
}

func (g *GitHub) repositoryID(ctx context.Context) (graphql.ID, error) {
	var q struct {
		Repository struct {
			ID graphql.ID
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	vars := map[string]interface{}{
		"owner": graphql.String(g.owner),
		"name":  graphql.String(g.repo),
	}
	if err := g.client.Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("failed to look up repository %s/%s: %w", g.owner, g.repo, err)
	}
	return q.Repository.ID, nil
}

func (g *GitHub) addToProject(ctx context.Context, contentID graphql.ID) error {
	var m struct {
		AddProjectV2ItemByID struct {
			Item struct {
				ID graphql.ID
			}
		} `graphql:"addProjectV2ItemById(input: $input)"`
	}
	input := AddProjectV2ItemByIdInput{
		ProjectID: graphql.ID(g.projectID),
		ContentID: contentID,
	}
	if err := g.client.Mutate(ctx, &m, map[string]interface{}{"input": input}); err != nil {
		return fmt.Errorf("failed to add issue to project: %w", err)
	}
	g.logger.Debug("Added issue to project ", g.projectID)
	return nil
}

// authTransport adds the bearer token to every request.
type authTransport struct {
	token string
	base  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	req.Header.Set("User-Agent", "sheetwatch/1.0")
	return t.base.RoundTrip(req)
}
