package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Decision is the vote of a single authenticator.
type Decision int

const (
	// Yes means the credentials are valid. The chain stops.
	Yes Decision = iota

	// No means credentials are present but invalid. The chain stops and
	// the request is rejected.
	No

	// Abstain means the authenticator does not handle these credentials.
	Abstain
)

// Result carries the outcome of an authentication attempt.
type Result struct {
	Decision Decision
	Identity *Identity // set only when Decision == Yes
	Err      error     // set only when Decision == No
}

// Identity is an authenticated caller.
type Identity struct {
	Subject string `json:"subject"`

	// Tier selects the rate limit applied to the caller.
	Tier string `json:"tier,omitempty"`

	// Tenant scopes query history. Empty means the shared tenant.
	Tenant string `json:"tenant,omitempty"`
}

// Anonymous is the identity used when all authenticators abstain and the
// chain defaults to Yes.
func Anonymous() *Identity {
	return &Identity{Subject: "anonymous", Tier: "default"}
}

// Authenticator examines request credentials and votes.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Chain evaluates authenticators in order and stops on the first Yes or No.
type Chain struct {
	Authenticators []Authenticator

	// Default is used when every authenticator abstains. Yes admits the
	// caller as Anonymous.
	Default Decision
}

// Authenticate runs the chain.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, a := range c.Authenticators {
		if res := a.Authenticate(ctx, r); res.Decision != Abstain {
			return res
		}
	}
	if c.Default == Yes {
		return Result{Decision: Yes, Identity: Anonymous()}
	}
	return Result{Decision: No, Err: ErrUnauthenticated}
}

// BearerToken returns the bearer token of r and whether the Authorization
// header used the Bearer scheme at all.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}
