package credentials

import (
	"fmt"
	"os"
	"strings"
)

const (
	// minKeyLength is the shortest normalized value accepted as a real key.
	// Anything shorter is assumed to be a placeholder or paste accident.
	minKeyLength = 10

	// maxIndexedKeys bounds the GEMINI_API_KEY_N scan.
	maxIndexedKeys = 20

	envKeySingle = "GEMINI_API_KEY"
	envKeyList   = "GEMINI_API_KEYS"
)

// Credential is a normalized provider API key.
type Credential string

// Last4 returns the trailing four characters for log output. The full secret
// must never be logged.
func (c Credential) Last4() string {
	s := string(c)
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}

// Normalize trims a raw configuration value, strips one layer of matching
// enclosing quotes, and rejects values shorter than the minimum length.
// Returns the cleaned credential and whether it is usable.
func Normalize(raw string) (Credential, bool) {
	trimmed := strings.TrimSpace(raw)

	if len(trimmed) >= 2 {
		first, last := trimmed[0], trimmed[len(trimmed)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			trimmed = trimmed[1 : len(trimmed)-1]
		}
	}

	if len(trimmed) < minKeyLength {
		return "", false
	}
	return Credential(trimmed), true
}

// Load gathers all usable provider credentials from the environment:
//
//  1. GEMINI_API_KEY: single key, or a comma-separated list that ended up in
//     the single-key variable (legacy installs)
//  2. GEMINI_API_KEYS: comma-separated list
//  3. GEMINI_API_KEY_1 .. GEMINI_API_KEY_20: indexed slots
//
// Values are normalized and deduplicated; ordering is not significant. An
// empty result is not an error here, callers surface it as a missing-
// credentials condition before any network call.
func Load() []Credential {
	var out []Credential
	seen := make(map[Credential]struct{})

	add := func(raw string) {
		cred, ok := Normalize(raw)
		if !ok {
			return
		}
		if _, dup := seen[cred]; dup {
			return
		}
		seen[cred] = struct{}{}
		out = append(out, cred)
	}

	addList := func(val string) {
		for _, raw := range strings.Split(val, ",") {
			add(raw)
		}
	}

	if val := os.Getenv(envKeySingle); val != "" {
		if strings.Contains(val, ",") {
			addList(val)
		} else {
			add(val)
		}
	}

	if val := os.Getenv(envKeyList); val != "" {
		addList(val)
	}

	for i := 1; i <= maxIndexedKeys; i++ {
		if val := os.Getenv(fmt.Sprintf("%s_%d", envKeySingle, i)); val != "" {
			add(val)
		}
	}

	return out
}
