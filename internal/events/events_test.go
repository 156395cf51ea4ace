package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthew-heyner/family-finance/internal/log"
)

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("broker down")
}
func (f *failingPublisher) Close() error { return nil }

func TestEventJSON(t *testing.T) {
	fam := uint(3)
	ev := New(TransactionApproved, 9, &fam, map[string]any{"transactionId": 12})

	raw, err := ev.ToJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, TransactionApproved, decoded["name"])
	assert.EqualValues(t, 9, decoded["userId"])
	assert.EqualValues(t, 3, decoded["familyId"])
	assert.NotEmpty(t, decoded["occurredAt"])
	assert.Equal(t, ev.ID, decoded["id"])
	assert.NotEqual(t, ev.ID, New(TransactionApproved, 9, &fam, nil).ID)
}

func TestMemoryPublisher(t *testing.T) {
	var m MemoryPublisher
	Emit(context.Background(), &m, New(UserRegistered, 1, nil, nil))
	Emit(context.Background(), &m, New(BudgetCreated, 1, nil, nil))
	Emit(context.Background(), &m, New(UserRegistered, 2, nil, nil))

	assert.Len(t, m.Events(), 3)
	last, ok := m.Last(UserRegistered)
	require.True(t, ok)
	assert.Equal(t, uint(2), last.UserID)

	_, ok = m.Last(PasswordResetRequested)
	assert.False(t, ok)
}

func TestEmit_SwallowsErrors(t *testing.T) {
	p := &failingPublisher{}
	assert.NotPanics(t, func() {
		Emit(context.Background(), p, New(UserRegistered, 1, nil, nil))
		Emit(context.Background(), nil, New(UserRegistered, 1, nil, nil))
	})
	assert.Equal(t, 1, p.calls)
}

func TestConnect_WithoutURL(t *testing.T) {
	p, err := Connect("", "x", log.Discard())
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), New(UserRegistered, 1, nil, nil)))
	assert.NoError(t, p.Close())
}
