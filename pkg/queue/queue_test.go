package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 8*time.Second, p.Backoff(4))
	assert.Equal(t, 10*time.Second, p.Backoff(5))
	assert.Equal(t, 10*time.Second, p.Backoff(60))
}

func TestPermanentWrapping(t *testing.T) {
	base := errors.New("row missing")
	err := fmt.Errorf("handler: %w", Permanent(base))

	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
	assert.Nil(t, Permanent(nil))
	assert.Equal(t, Permanent(Permanent(base)).Error(), base.Error())
}

func TestJobDecode(t *testing.T) {
	job := &Job{Name: "GENERATE_VISUAL", Payload: []byte(`{"visualId":"v","sourceId":"s"}`)}
	var payload struct {
		VisualId string `json:"visualId"`
		SourceId string `json:"sourceId"`
	}
	require.NoError(t, job.Decode(&payload))
	assert.Equal(t, "v", payload.VisualId)

	bad := &Job{Name: "GENERATE_VISUAL", Payload: []byte(`{`)}
	assert.True(t, IsPermanent(bad.Decode(&payload)))
}

func TestEncodePayload(t *testing.T) {
	raw, err := EncodePayload(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))

	raw, err = EncodePayload(map[string]string{"sourceId": "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sourceId":"abc"}`, string(raw))
}
