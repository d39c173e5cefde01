// Package pulsecoord implements assets.Coordinator on top of Pulse: a
// replicated map marks which node is building a key, and a Pulse stream
// broadcasts build completion so waiters on other nodes resolve without
// polling the store.
package pulsecoord

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"goa.design/pulse/rmap"
	"goa.design/pulse/streaming"

	"github.com/liquers/liquers-go/core/assets"
)

const (
	// mapName is the replicated map holding in-progress build markers,
	// keyed by store key with the owning build's ID as value.
	mapName = "liquers:asset:builds"
	// streamName carries one event per completed build; the payload is the
	// store key that finished.
	streamName = "liquers:asset:built"
	// builtEvent is the completion event name.
	builtEvent = "built"
)

// Coordinator coordinates asset builds across nodes sharing one Redis.
type Coordinator struct {
	markers *rmap.Map
	stream  *streaming.Stream
}

var _ assets.Coordinator = (*Coordinator)(nil)

// New joins the coordination map and stream on rdb.
func New(ctx context.Context, rdb *redis.Client) (*Coordinator, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	markers, err := rmap.Join(ctx, mapName, rdb)
	if err != nil {
		return nil, err
	}
	stream, err := streaming.NewStream(streamName, rdb)
	if err != nil {
		return nil, err
	}
	return &Coordinator{markers: markers, stream: stream}, nil
}

// Acquire claims the build of key for buildID using the map's
// set-if-not-exists semantics; exactly one node wins.
func (c *Coordinator) Acquire(ctx context.Context, key, buildID string) (bool, error) {
	return c.markers.SetIfNotExists(ctx, key, buildID)
}

// Release drops the claim when still owned by buildID and broadcasts the
// completion event.
func (c *Coordinator) Release(ctx context.Context, key, buildID string) error {
	if owner, ok := c.markers.Get(key); !ok || owner != buildID {
		return nil
	}
	if _, err := c.markers.Delete(ctx, key); err != nil {
		return err
	}
	_, err := c.stream.Add(ctx, builtEvent, []byte(key))
	return err
}

// Wait blocks until the node holding key's claim releases it, or ctx is
// done. It resolves either on the completion broadcast or on observing the
// marker gone from the map.
func (c *Coordinator) Wait(ctx context.Context, key string) error {
	sink, err := c.stream.NewSink(ctx, "waiter-"+uuid.NewString())
	if err != nil {
		return err
	}
	defer sink.Close(ctx)
	events := sink.Subscribe()
	changes := c.markers.Subscribe()
	defer c.markers.Unsubscribe(changes)

	if _, building := c.markers.Get(key); !building {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return errors.New("completion stream closed while waiting for build")
			}
			done := string(ev.Payload) == key
			if err := sink.Ack(ctx, ev); err != nil {
				return err
			}
			if done {
				return nil
			}
		case <-changes:
			if _, building := c.markers.Get(key); !building {
				return nil
			}
		}
	}
}
