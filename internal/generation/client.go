package generation

import (
	"context"
	"math/rand/v2"

	"copymint/internal/utils"
)

// Client executes generation requests with credential failover. Each call
// takes a fresh snapshot of the pool, selects a random permutation of it, and
// tries credentials one at a time until the first success. The shuffle spreads
// load across keys over time instead of always hammering the first one; the
// loop is strictly sequential so no single external account sees fan-out.
//
// The client keeps no state between calls. It is not a circuit breaker: a key
// that failed on one request is eligible again on the next.
type Client struct {
	provider Provider
	pool     PoolFunc
	logger   *utils.Logger
}

// NewClient creates a failover client over the given provider and pool.
func NewClient(provider Provider, pool PoolFunc, logger *utils.Logger) *Client {
	if logger == nil {
		logger = utils.NewLogger("generation")
	}
	return &Client{
		provider: provider,
		pool:     pool,
		logger:   logger,
	}
}

// Generate runs one generation request, failing over across credentials.
// Returns ErrNoCredentials if the pool is empty (no network call is made) and
// *ExhaustedError if every credential failed. No backoff is applied between
// attempts; overall deadline control belongs to the caller's context.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	creds := c.pool()
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}

	attempts := make([]Attempt, 0, len(creds))
	var lastErr error

	for _, i := range rand.Perm(len(creds)) {
		cred := creds[i]

		text, err := c.provider.Generate(ctx, cred, req)
		attempts = append(attempts, Attempt{KeyLast4: cred.Last4(), Err: err})

		if err == nil {
			c.logger.Debug("generation succeeded",
				"provider", c.provider.Name(),
				"key", "..."+cred.Last4(),
				"attempt", len(attempts))
			return &Result{Text: text, Attempts: attempts}, nil
		}

		c.logger.Warn("generation attempt failed",
			"provider", c.provider.Name(),
			"key", "..."+cred.Last4(),
			"error", err)
		lastErr = err
	}

	c.logger.Error("all credentials exhausted",
		"provider", c.provider.Name(),
		"attempts", len(attempts))

	return nil, &ExhaustedError{Attempts: len(attempts), LastErr: lastErr}
}
