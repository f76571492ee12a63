package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name   string
	titles []string
	err    error
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func TestNotify_EventFilter(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventMarketResolved}, nil)

	require.NoError(t, n.Notify(context.Background(), EventStakePlaced, "stake", "ignored"))
	require.NoError(t, n.Notify(context.Background(), EventMarketResolved, "resolved", "delivered"))

	assert.Equal(t, []string{"resolved"}, s.titles)
}

func TestNotify_EmptyEventListAllowsAll(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, nil)

	require.NoError(t, n.Notify(context.Background(), EventError, "boom", "msg"))
	assert.Len(t, s.titles, 1)
}

func TestNotifyAll_BypassesFilter(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventMarketResolved}, nil)

	require.NoError(t, n.NotifyAll(context.Background(), "urgent", "msg"))
	assert.Len(t, s.titles, 1)
}

func TestDispatch_SenderFailureDoesNotBlockOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, nil)

	err := n.Notify(context.Background(), EventError, "boom", "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.titles, 1, "remaining senders still deliver")
}

func TestDispatch_NoSenders(t *testing.T) {
	n := NewNotifier(nil, nil, nil)
	require.NoError(t, n.Notify(context.Background(), EventError, "boom", "msg"))
}
