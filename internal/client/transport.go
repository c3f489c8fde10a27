package client

import (
	"errors"
	"fmt"

	"github.com/msageha/contentbook/internal/container"
	"github.com/msageha/contentbook/internal/events"
	"github.com/msageha/contentbook/internal/hooks"
)

// ErrScreenCancelled is reported when a pre-open listener refused to show a
// container the server opened.
var ErrScreenCancelled = fmt.Errorf("screen open cancelled: %w", container.ErrContainerClosed)

// poster is the part of the main loop the transport needs.
type poster interface {
	Post(fn func()) bool
}

// screenTransport runs every reply through the hook layer on the main loop,
// so a newly opened container becomes the current screen and a lost one
// closes it before the script sees the reply.
type screenTransport struct {
	inner container.Transport
	loop  poster
	hooks *hooks.Client
}

func (t *screenTransport) Do(action container.Action, reply container.Reply) {
	t.inner.Do(action, func(snap container.Snapshot, err error) {
		t.loop.Post(func() {
			reply(t.observe(snap, err))
		})
	})
}

func (t *screenTransport) observe(snap container.Snapshot, err error) (container.Snapshot, error) {
	current, open := t.hooks.Screen()
	if err != nil {
		if errors.Is(err, container.ErrContainerClosed) && open {
			t.hooks.SetScreen(nil)
		}
		return snap, err
	}
	if open && current.ContainerID == snap.ID {
		return snap, nil
	}
	if !t.hooks.SetScreen(&events.Screen{Title: snap.Title, ContainerID: snap.ID}) {
		return container.Snapshot{}, ErrScreenCancelled
	}
	return snap, nil
}
