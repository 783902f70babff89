package campaign

import (
	"context"
)

// Discoverer produces candidate company names for a sector. Malformed or
// empty generator output is reported as an empty list, not an error; a
// returned error is campaign-fatal.
type Discoverer interface {
	Discover(ctx context.Context, sector string) ([]string, error)
}

// ContextProvider fetches research context for a company. Failures are
// degraded to placeholder text by the orchestrator and never fail a campaign.
type ContextProvider interface {
	// FetchExternal returns recent market context for the company.
	FetchExternal(ctx context.Context, company string) (string, error)
	// FetchInternal returns knowledge-base passages relevant to the company,
	// expanded by the given hint queries.
	FetchInternal(ctx context.Context, company string, hints []string) (string, error)
}

// Generator drafts a personalized outreach email from gathered context.
type Generator interface {
	GenerateEmail(ctx context.Context, company, externalCtx, internalCtx string) (string, error)
}

// Notifier delivers an approved email.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Collaborators bundles the external services a campaign drives.
type Collaborators struct {
	Discoverer Discoverer
	Contexts   ContextProvider
	Generator  Generator
	Notifier   Notifier
}
