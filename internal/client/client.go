// Package client invokes a named model in a named role, with tiered
// defaults and ordered fallback. Each logical request constructs its own
// Client so preference state is never shared across concurrent requests.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hanno79/prdc/internal/config"
	"github.com/hanno79/prdc/internal/llm"
	"github.com/hanno79/prdc/internal/logger"
)

// Role names the function a model performs in the pipeline.
type Role string

const (
	RoleGenerator Role = "generator"
	RoleReviewer  Role = "reviewer"
)

// other returns the opposite role, used only for opt-in cross-role fallback.
func (r Role) other() Role {
	if r == RoleGenerator {
		return RoleReviewer
	}
	return RoleGenerator
}

// Options holds one logical request's isolated model preferences.
type Options struct {
	// Tier selects the default models per role.
	Tier string

	// Preferred maps a role to its preferred provider:model string.
	Preferred map[Role]string

	// Fallback is one explicit fallback model tried after the preferred one.
	Fallback string

	// AllowCrossRole appends the other role's preferred and default models
	// as a last resort. Explicit opt-in; never enabled by default.
	AllowCrossRole bool

	// Timeout bounds each individual model call.
	Timeout time.Duration

	MaxTokens   int
	Temperature float64
}

// FromConfig builds Options from the loaded configuration.
func FromConfig(cfg *config.Config) Options {
	preferred := make(map[Role]string)
	if cfg.Client.PreferredGenerator != "" {
		preferred[RoleGenerator] = cfg.Client.PreferredGenerator
	}
	if cfg.Client.PreferredReviewer != "" {
		preferred[RoleReviewer] = cfg.Client.PreferredReviewer
	}
	return Options{
		Tier:           cfg.Client.Tier,
		Preferred:      preferred,
		Fallback:       cfg.Client.Fallback,
		AllowCrossRole: cfg.Client.AllowCrossRole,
		Timeout:        cfg.Client.Timeout(),
		MaxTokens:      cfg.Client.MaxTokens,
		Temperature:    cfg.Client.Temperature,
	}
}

// Client is a per-request model invoker. It holds no state beyond the
// request's own options and is safe to discard after the request.
type Client struct {
	opts    Options
	tiers   map[string]config.RoleModels
	factory llm.Factory
}

// New constructs a Client for one logical request. factory may be nil, in
// which case the real providers are used.
func New(cfg *config.Config, opts Options, factory llm.Factory) *Client {
	if factory == nil {
		factory = llm.NewProvider
	}
	return &Client{opts: opts, tiers: cfg.Tiers, factory: factory}
}

// Result is a successful model invocation.
type Result struct {
	Content string
	Model   string
	Usage   llm.Usage
	// UsedFallback is true when a non-primary candidate produced the result.
	UsedFallback bool
}

// Attempt records one failed candidate during fallback.
type Attempt struct {
	Model  string
	Reason string
}

// ExhaustedError is raised when every candidate model failed. It enumerates
// each attempted model and its failure reason.
type ExhaustedError struct {
	Role     Role
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "all %d model candidates failed for role %s:", len(e.Attempts), e.Role)
	for _, a := range e.Attempts {
		fmt.Fprintf(&sb, "\n  %s: %s", a.Model, a.Reason)
	}
	return sb.String()
}

// tierDefault returns the tier's default model for a role, or "".
func (c *Client) tierDefault(role Role) string {
	models, ok := c.tiers[c.opts.Tier]
	if !ok {
		return ""
	}
	if role == RoleGenerator {
		return models.Generator
	}
	return models.Reviewer
}

// Candidates returns the ordered, deduplicated candidate models for a role:
// the role's preferred model, the explicit fallback, the tier default, and —
// only under the cross-role opt-in — the other role's preferred and default
// models as a last resort.
func (c *Client) Candidates(role Role) []string {
	ordered := []string{
		c.opts.Preferred[role],
		c.opts.Fallback,
		c.tierDefault(role),
	}
	if c.opts.AllowCrossRole {
		ordered = append(ordered, c.opts.Preferred[role.other()], c.tierDefault(role.other()))
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(ordered))
	for _, m := range ordered {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// CallWithFallback attempts the role's candidates in order. Each failure —
// timeout, non-success response, empty completion — is recorded and the next
// candidate tried. The first success wins; exhausting every candidate raises
// one aggregate ExhaustedError. There is no automatic retry within a single
// model attempt.
func (c *Client) CallWithFallback(ctx context.Context, role Role, req *llm.Request) (*Result, error) {
	candidates := c.Candidates(role)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidate models configured for role %s (tier %q)", role, c.opts.Tier)
	}

	if req.MaxTokens == 0 {
		req.MaxTokens = c.opts.MaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = c.opts.Temperature
	}

	var attempts []Attempt
	for i, model := range candidates {
		res, err := c.callOne(ctx, model, req)
		if err != nil {
			logger.Debug("client: %s candidate %s failed: %v", role, model, err)
			attempts = append(attempts, Attempt{Model: model, Reason: err.Error()})
			continue
		}
		res.UsedFallback = i > 0
		return res, nil
	}

	return nil, &ExhaustedError{Role: role, Attempts: attempts}
}

// callOne invokes a single candidate under the per-call timeout.
func (c *Client) callOne(ctx context.Context, model string, req *llm.Request) (*Result, error) {
	provider, err := c.factory(model)
	if err != nil {
		return nil, err
	}

	callCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	resp, err := provider.Complete(callCtx, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("model %s returned an empty completion", model)
	}

	return &Result{Content: resp.Content, Model: resp.Model, Usage: resp.Usage}, nil
}
