package github

import "github.com/shurcooL/githubv4"

// repoNode selects the repository fields the pipeline needs, including
// the blob at the fixed override expression. A nil Object means the
// repository carries no override file at all, which is distinct from
// an override file with empty text.
type repoNode struct {
	Name        string
	Description string
	CreatedAt   githubv4.DateTime
	URL         githubv4.URI
	IsFork      bool
	Owner       struct {
		Login string
	}
	Languages struct {
		Nodes []struct {
			Name string
		}
	} `graphql:"languages(first: 10)"`
	Object *struct {
		Blob struct {
			Text string
		} `graphql:"... on Blob"`
	} `graphql:"object(expression: $overrideExpr)"`
}

type repoConnection struct {
	PageInfo struct {
		EndCursor   githubv4.String
		HasNextPage bool
	}
	Nodes []repoNode
}

// membersQuery is the initial query: every organization member with
// its first page of repositories.
type membersQuery struct {
	Organization struct {
		MembersWithRole struct {
			Nodes []memberNode
		} `graphql:"membersWithRole(first: 50)"`
	} `graphql:"organization(login: $org)"`
}

type memberNode struct {
	Login        string
	Name         string
	Repositories repoConnection `graphql:"repositories(first: 100)"`
}

// userReposQuery is a follow-up page for one member.
type userReposQuery struct {
	User struct {
		Repositories repoConnection `graphql:"repositories(first: 100, after: $cursor)"`
	} `graphql:"user(login: $login)"`
}
