package model_test

import (
	"testing"
	"time"

	"github.com/eser/relayq/pkg/broker/model"
	"github.com/stretchr/testify/assert"
)

func TestEffectiveMaxAttempts(t *testing.T) {
	t.Parallel()

	m := &model.Message{} //nolint:exhaustruct
	assert.Equal(t, 3, m.EffectiveMaxAttempts(3))

	custom := 7
	m.CustomMaxAttempts = &custom
	assert.Equal(t, 7, m.EffectiveMaxAttempts(3))
}

func TestEffectiveAckTimeout(t *testing.T) {
	t.Parallel()

	m := &model.Message{} //nolint:exhaustruct
	assert.Equal(t, 30*time.Second, m.EffectiveAckTimeout(30*time.Second))

	custom := 5 * time.Second
	m.CustomAckTimeout = &custom
	assert.Equal(t, 5*time.Second, m.EffectiveAckTimeout(30*time.Second))
}

func TestAttemptsRemaining(t *testing.T) {
	t.Parallel()

	m := &model.Message{AttemptCount: 2} //nolint:exhaustruct
	assert.Equal(t, 1, m.AttemptsRemaining(3))
	assert.Equal(t, 0, m.AttemptsRemaining(2))
	assert.Equal(t, 0, m.AttemptsRemaining(1))
}

func TestClampPriority(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, model.ClampPriority(-5))
	assert.Equal(t, 0, model.ClampPriority(0))
	assert.Equal(t, 9, model.ClampPriority(9))
	assert.Equal(t, 9, model.ClampPriority(42))
	assert.Equal(t, 4, model.ClampPriority(4))
}
