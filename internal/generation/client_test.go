package generation

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copymint/internal/credentials"
	"copymint/internal/utils"
)

// scriptedProvider fails for every credential in failing and succeeds for the
// rest, counting every call it receives.
type scriptedProvider struct {
	mu      sync.Mutex
	failing map[credentials.Credential]error
	text    string
	calls   []credentials.Credential
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(ctx context.Context, cred credentials.Credential, req Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, cred)
	if err, ok := p.failing[cred]; ok {
		return "", err
	}
	return p.text, nil
}

func staticPool(creds ...credentials.Credential) PoolFunc {
	return func() []credentials.Credential {
		return creds
	}
}

func quietLogger() *utils.Logger {
	return utils.NewLogger("test", utils.Critical)
}

func TestGenerate_NoCredentials(t *testing.T) {
	provider := &scriptedProvider{text: "never"}
	client := NewClient(provider, staticPool(), quietLogger())

	_, err := client.Generate(context.Background(), Request{Prompt: "p", Model: "m"})
	require.ErrorIs(t, err, ErrNoCredentials)
	assert.Empty(t, provider.calls, "no network call must be attempted with an empty pool")
}

func TestGenerate_FirstSuccessStopsFailover(t *testing.T) {
	bad1 := credentials.Credential("bad-key-number-1")
	bad2 := credentials.Credential("bad-key-number-2")
	good := credentials.Credential("good-key-number-3")

	provider := &scriptedProvider{
		failing: map[credentials.Credential]error{
			bad1: errors.New("boom"),
			bad2: errors.New("boom"),
		},
		text: "generated text",
	}
	client := NewClient(provider, staticPool(bad1, bad2, good), quietLogger())

	// The permutation is random, so run repeatedly: the call must always
	// succeed, never make more calls than credentials, and never call anything
	// after the success.
	for i := 0; i < 50; i++ {
		provider.calls = nil

		res, err := client.Generate(context.Background(), Request{Prompt: "p", Model: "m"})
		require.NoError(t, err)
		assert.Equal(t, "generated text", res.Text)

		assert.LessOrEqual(t, len(provider.calls), 3)
		assert.Equal(t, len(provider.calls), len(res.Attempts))

		// Every attempt before the last failed; the last one succeeded.
		last := res.Attempts[len(res.Attempts)-1]
		assert.NoError(t, last.Err)
		assert.Equal(t, good.Last4(), last.KeyLast4)
		for _, a := range res.Attempts[:len(res.Attempts)-1] {
			assert.Error(t, a.Err)
		}
	}
}

func TestGenerate_AllCredentialsExhausted(t *testing.T) {
	bad1 := credentials.Credential("bad-key-number-1")
	bad2 := credentials.Credential("bad-key-number-2")

	lastErr := errors.New("quota exceeded")
	provider := &scriptedProvider{
		failing: map[credentials.Credential]error{
			bad1: lastErr,
			bad2: lastErr,
		},
	}
	client := NewClient(provider, staticPool(bad1, bad2), quietLogger())

	_, err := client.Generate(context.Background(), Request{Prompt: "p", Model: "m"})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.Contains(t, exhausted.Error(), "all 2 credentials failed")
	assert.Contains(t, exhausted.Error(), "quota exceeded")
	assert.Len(t, provider.calls, 2, "every credential must be tried exactly once")
}

func TestGenerate_FreshShuffleEachCall(t *testing.T) {
	pool := []credentials.Credential{
		"key-number-0001", "key-number-0002", "key-number-0003",
		"key-number-0004", "key-number-0005", "key-number-0006",
	}
	provider := &scriptedProvider{
		failing: map[credentials.Credential]error{},
		text:    "ok",
	}
	// Fail everything so each call records the full permutation.
	for _, c := range pool {
		provider.failing[c] = errors.New("fail")
	}
	client := NewClient(provider, staticPool(pool...), quietLogger())

	orders := make(map[string]struct{})
	for i := 0; i < 30; i++ {
		provider.calls = nil
		_, err := client.Generate(context.Background(), Request{Prompt: "p", Model: "m"})
		require.Error(t, err)

		var order string
		for _, c := range provider.calls {
			order += c.Last4() + "|"
		}
		orders[order] = struct{}{}
	}

	// 30 draws over 720 permutations repeating every time is vanishingly
	// unlikely; more than one distinct order shows the shuffle is live.
	assert.Greater(t, len(orders), 1, "credential order should vary between calls")
}

func TestIsRateLimited(t *testing.T) {
	rateErr := &ProviderError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}

	assert.True(t, IsRateLimited(rateErr))
	assert.True(t, IsRateLimited(&ExhaustedError{Attempts: 3, LastErr: rateErr}))
	assert.False(t, IsRateLimited(&ProviderError{StatusCode: http.StatusInternalServerError, Message: "boom"}))
	assert.False(t, IsRateLimited(errors.New("plain")))
	assert.False(t, IsRateLimited(nil))
}

func TestSingleKeyPool(t *testing.T) {
	assert.Len(t, SingleKeyPool("sk-longenoughkey")(), 1)
	assert.Empty(t, SingleKeyPool("short")())
	assert.Empty(t, SingleKeyPool("")())
}
