package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type extraction struct {
	Topics  []string `json:"topics"`
	Summary string   `json:"summary"`
}

func TestParseJSON(t *testing.T) {
	resp := "Sure! Here you go:\n```json\n{\"topics\": [\"a\", \"b\"], \"summary\": \"s\"}\n```"

	got, err := ParseJSON[extraction](resp)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Topics)
	assert.Equal(t, "s", got.Summary)
}

func TestParseJSON_Errors(t *testing.T) {
	_, err := ParseJSON[extraction]("no json here")
	assert.ErrorContains(t, err, "missing '{'")

	_, err = ParseJSON[extraction]("} before {")
	assert.ErrorContains(t, err, "missing '}'")

	_, err = ParseJSON[extraction](`{"topics": 5}`)
	assert.ErrorContains(t, err, "failed to unmarshal JSON")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "héé...", Truncate("hééllo", 3))
	assert.Equal(t, "exactly", Truncate("exactly", 7))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "abc", Prefix("abcdef", 3))
	assert.Equal(t, "ab", Prefix("ab", 3))
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", ContentHash("hello"))
}

func TestCountNonSpace(t *testing.T) {
	assert.Equal(t, 0, CountNonSpace(" \n\t "))
	assert.Equal(t, 5, CountNonSpace(" a b\tc\nd e "))
}

func TestRetryWithContext(t *testing.T) {
	RetryBackoff = time.Millisecond
	calls := 0
	v, err := RetryWithContext(context.Background(), 3, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestRetryWithContext_Permanent(t *testing.T) {
	boom := errors.New("bad request")
	calls := 0
	_, err := RetryWithContext(context.Background(), 5, func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(boom)
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetryWithContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RetryWithContext(ctx, 3, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
