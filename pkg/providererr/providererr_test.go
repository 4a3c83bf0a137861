package providererr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindQuota, KindOf(Quota("openai", errors.New("x"))))
	assert.Equal(t, KindSchema, KindOf(fmt.Errorf("parse: %w", Schema("ollama", errors.New("bad json")))))
	assert.Equal(t, KindQuota, KindOf(errors.New("You exceeded your current quota, please check your plan")))
	assert.Equal(t, KindTransient, KindOf(errors.New("connection reset by peer")))
}

func TestFromHTTP(t *testing.T) {
	assert.True(t, IsQuota(FromHTTP("deepgram", 402, "payment required")))
	assert.True(t, IsQuota(FromHTTP("openai", 429, `{"error":{"code":"insufficient_quota"}}`)))
	assert.True(t, IsRetryable(FromHTTP("openai", 429, "rate limited, slow down")))
	assert.True(t, IsRetryable(FromHTTP("openai", 503, "upstream unavailable")))
}

func TestErrorMessageKeepsProvider(t *testing.T) {
	err := Quota("unsplash", errors.New("Rate Limit Exceeded"))
	assert.Equal(t, "unsplash: Rate Limit Exceeded", err.Error())
	assert.Nil(t, Quota("x", nil))
}
