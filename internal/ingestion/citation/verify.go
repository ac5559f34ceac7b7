package citation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Verifier confirms that a detected citation actually resolves to
// something real. Detection alone is never sufficient (spec §4.3 step 3).
type Verifier interface {
	Verify(ctx context.Context, c Citation) (bool, error)
}

// rateLimited wraps a Verifier with a token-bucket limiter so a burst of
// citations in one ingestion batch cannot starve the shared HTTP client or
// hammer a local git repository.
type rateLimited struct {
	inner   Verifier
	limiter *rate.Limiter
}

// WithRateLimit returns v limited to rps requests per second with a burst
// of burst.
func WithRateLimit(v Verifier, rps float64, burst int) Verifier {
	return &rateLimited{inner: v, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimited) Verify(ctx context.Context, c Citation) (bool, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("citation verifier rate limit: %w", err)
	}
	return r.inner.Verify(ctx, c)
}

// ADRVerifier confirms an ADR citation resolves to a file matching a
// configured glob pattern, e.g. "docs/adr/ADR-*.md".
type ADRVerifier struct {
	PathGlob string
}

func (v *ADRVerifier) Verify(_ context.Context, c Citation) (bool, error) {
	if c.Kind != KindADR {
		return false, nil
	}
	matches, err := filepath.Glob(v.PathGlob)
	if err != nil {
		return false, fmt.Errorf("adr glob %q: %w", v.PathGlob, err)
	}
	want := strings.ToLower(c.Ref)
	for _, m := range matches {
		if strings.Contains(strings.ToLower(filepath.Base(m)), want) {
			return true, nil
		}
	}
	return false, nil
}

// GitCommitVerifier confirms a commit hash exists in a local repository by
// shelling out to git, in the same style as the teacher's internal/git
// package (os/exec, CombinedOutput, wrapped error).
type GitCommitVerifier struct {
	RepoDir string
}

func (v *GitCommitVerifier) Verify(ctx context.Context, c Citation) (bool, error) {
	if c.Kind != KindCommit {
		return false, nil
	}
	cmd := exec.CommandContext(ctx, "git", "cat-file", "-e", c.Ref+"^{commit}")
	cmd.Dir = v.RepoDir
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			_ = exitErr
			return false, nil // commit does not exist, not a verifier failure
		}
		return false, fmt.Errorf("git cat-file %s: %w", c.Ref, err)
	}
	return true, nil
}

// URLVerifier confirms a URL resolves with an HTTP HEAD request within a
// configured timeout.
type URLVerifier struct {
	Client  *http.Client
	Timeout time.Duration
}

func (v *URLVerifier) Verify(ctx context.Context, c Citation) (bool, error) {
	if c.Kind != KindURL {
		return false, nil
	}
	if _, err := url.ParseRequestURI(c.Ref); err != nil {
		return false, nil
	}

	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.Ref, nil)
	if err != nil {
		return false, fmt.Errorf("build HEAD request for %s: %w", c.Ref, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("HEAD %s: %w", c.Ref, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 400, nil
}

// IssueVerifier confirms an issue reference exists by querying a
// configured HTTP endpoint (e.g. a GitHub/Jira proxy) that returns 200 for
// a known issue.
type IssueVerifier struct {
	Client   *http.Client
	Endpoint string // e.g. "https://api.example.com/issues/%s" with the issue number substituted
	Timeout  time.Duration
}

func (v *IssueVerifier) Verify(ctx context.Context, c Citation) (bool, error) {
	if c.Kind != KindIssue || v.Endpoint == "" {
		return false, nil
	}
	num := strings.TrimPrefix(c.Ref, "#")
	endpoint := fmt.Sprintf(v.Endpoint, num)

	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build issue lookup request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Router dispatches a Citation to the verifier registered for its Kind.
type Router struct {
	verifiers map[Kind]Verifier
}

// NewRouter builds a Router from a kind->verifier map, wrapping each with
// the given rate limit.
func NewRouter(verifiers map[Kind]Verifier, rps float64, burst int) *Router {
	wrapped := make(map[Kind]Verifier, len(verifiers))
	for k, v := range verifiers {
		wrapped[k] = WithRateLimit(v, rps, burst)
	}
	return &Router{verifiers: wrapped}
}

// Verify dispatches to the registered verifier for c.Kind. An unregistered
// kind is treated as unverifiable, not an error.
func (r *Router) Verify(ctx context.Context, c Citation) (bool, error) {
	v, ok := r.verifiers[c.Kind]
	if !ok {
		return false, nil
	}
	return v.Verify(ctx, c)
}
