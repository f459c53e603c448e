package model_test

import (
	"testing"
	"time"

	"github.com/eser/relayq/pkg/broker/model"
	"github.com/stretchr/testify/assert"
)

func TestEffectiveAckTimeoutQueue(t *testing.T) {
	t.Parallel()

	q := &model.Queue{AckTimeoutSeconds: 45} //nolint:exhaustruct
	assert.Equal(t, 45*time.Second, q.EffectiveAckTimeout())
}
