package generation

import (
	"context"

	"copymint/internal/credentials"
)

// Request describes one content-generation call.
type Request struct {
	Prompt string
	Model  string
}

// Attempt records the outcome of a single credential attempt. Err is nil for
// the attempt that succeeded. Only the key's trailing characters are kept.
type Attempt struct {
	KeyLast4 string
	Err      error
}

// Result is the outcome of a successful generation, including every attempt
// made along the way.
type Result struct {
	Text     string
	Attempts []Attempt
}

// Provider performs one generation call against the external model API using
// one credential. Implementations map rate-limit and other HTTP failures to
// *ProviderError so the caller can distinguish them.
type Provider interface {
	Name() string
	Generate(ctx context.Context, cred credentials.Credential, req Request) (string, error)
}

// PoolFunc supplies a snapshot of the usable credential set. The failover
// client calls it fresh on every Generate so configuration changes are picked
// up without restart.
type PoolFunc func() []credentials.Credential

// SingleKeyPool adapts a lone configured key to a PoolFunc. Used for provider
// backends that do not support multiple interchangeable keys.
func SingleKeyPool(key string) PoolFunc {
	return func() []credentials.Credential {
		cred, ok := credentials.Normalize(key)
		if !ok {
			return nil
		}
		return []credentials.Credential{cred}
	}
}
