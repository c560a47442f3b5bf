// Package github discovers candidate projects through the GitHub
// GraphQL API.
package github

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/devcellar/concepts/internal/concept"
)

// graphClient is the slice of githubv4.Client the fetcher uses.
type graphClient interface {
	Query(ctx context.Context, q interface{}, variables map[string]interface{}) error
}

// Config captures discovery parameters.
type Config struct {
	// Organization is the login whose members are scanned.
	Organization string
	// OrgAccount is the login of the organization's machine account;
	// its repositories live under the organization name rather than
	// its own.
	OrgAccount string
	// OverrideExpression selects the override blob, e.g. "HEAD:.concept".
	OverrideExpression string
	// PageWorkers bounds concurrent follow-up page queries.
	PageWorkers int
}

// Fetcher issues paginated queries against the API and flattens the
// results into raw project records. Any API failure is fatal for the
// run: partial data is not trustworthy.
type Fetcher struct {
	client graphClient
	cfg    Config
	logger *zap.Logger
}

// New creates a Fetcher authenticated with the given token.
func New(token string, cfg Config, logger *zap.Logger) *Fetcher {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), src)
	return newWithClient(githubv4.NewClient(httpClient), cfg, logger)
}

func newWithClient(client graphClient, cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.PageWorkers <= 0 {
		cfg.PageWorkers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{client: client, cfg: cfg, logger: logger}
}

// Fetch returns the candidate records for every organization member
// plus a login-to-display-name map. Order between members is not
// meaningful.
func (f *Fetcher) Fetch(ctx context.Context) ([]concept.RawProjectRecord, map[string]string, error) {
	var initial membersQuery
	err := f.client.Query(ctx, &initial, map[string]interface{}{
		"org":          githubv4.String(f.cfg.Organization),
		"overrideExpr": githubv4.String(f.cfg.OverrideExpression),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initial organization query: %w", err)
	}

	names := make(map[string]string)
	var (
		mu      sync.Mutex
		records []concept.RawProjectRecord
	)
	collect := func(login, name string, nodes []repoNode) {
		mu.Lock()
		defer mu.Unlock()
		for _, node := range nodes {
			raw := f.toRecord(login, name, node)
			if f.isCandidate(raw) {
				records = append(records, raw)
			}
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(f.cfg.PageWorkers)

	members := initial.Organization.MembersWithRole.Nodes
	for _, member := range members {
		names[member.Login] = member.Name
		collect(member.Login, member.Name, member.Repositories.Nodes)
		if member.Repositories.PageInfo.HasNextPage {
			login, name := member.Login, member.Name
			cursor := member.Repositories.PageInfo.EndCursor
			group.Go(func() error {
				return f.fetchRemainingPages(groupCtx, login, name, cursor, collect)
			})
		}
	}

	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	f.logger.Info("project discovery finished",
		zap.Int("members", len(members)),
		zap.Int("candidates", len(records)),
	)
	return records, names, nil
}

// fetchRemainingPages drains the follow-up pages for one member. The
// cursor chain per member is linear, so pages are walked sequentially
// until a page reports no further results; parallelism happens across
// members, bounded by the group limit.
func (f *Fetcher) fetchRemainingPages(
	ctx context.Context,
	login, name string,
	cursor githubv4.String,
	collect func(login, name string, nodes []repoNode),
) error {
	for {
		var page userReposQuery
		err := f.client.Query(ctx, &page, map[string]interface{}{
			"login":        githubv4.String(login),
			"cursor":       cursor,
			"overrideExpr": githubv4.String(f.cfg.OverrideExpression),
		})
		if err != nil {
			return fmt.Errorf("follow-up page for %s: %w", login, err)
		}

		repos := page.User.Repositories
		collect(login, name, repos.Nodes)
		if !repos.PageInfo.HasNextPage {
			return nil
		}
		cursor = repos.PageInfo.EndCursor
	}
}

func (f *Fetcher) toRecord(login, name string, node repoNode) concept.RawProjectRecord {
	languages := make([]string, 0, len(node.Languages.Nodes))
	for _, lang := range node.Languages.Nodes {
		languages = append(languages, lang.Name)
	}

	raw := concept.RawProjectRecord{
		Login:       login,
		OwnerLogin:  node.Owner.Login,
		MemberName:  name,
		RepoName:    node.Name,
		Description: node.Description,
		CreatedAt:   node.CreatedAt.Time,
		Fork:        node.IsFork,
		Languages:   languages,
	}
	if node.URL.URL != nil {
		raw.RepoURL = node.URL.String()
	}
	if node.Object != nil {
		text := node.Object.Blob.Text
		raw.OverrideText = &text
	}
	return raw
}

// isCandidate keeps records that declare an override, are not forks,
// and are owned by the member they were discovered under. The owner
// login from the API is authoritative; the URL substring check remains
// only as a fallback when the owner field is empty.
func (f *Fetcher) isCandidate(raw concept.RawProjectRecord) bool {
	if !raw.HasOverride() || raw.Fork {
		return false
	}

	isOrgAccount := f.cfg.OrgAccount != "" && strings.EqualFold(raw.Login, f.cfg.OrgAccount)
	if raw.OwnerLogin != "" {
		if strings.EqualFold(raw.OwnerLogin, raw.Login) {
			return true
		}
		return isOrgAccount && strings.EqualFold(raw.OwnerLogin, f.cfg.Organization)
	}

	url := strings.ToLower(raw.RepoURL)
	if strings.Contains(url, strings.ToLower(raw.Login)) {
		return true
	}
	return isOrgAccount && strings.Contains(url, strings.ToLower(f.cfg.Organization))
}
