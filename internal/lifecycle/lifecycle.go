// Package lifecycle feeds player account events from Kafka into the ladder.
//
// Messages are JSON objects:
//
//	{"type": "player.created", "player_id": "<uuid>"}
//	{"type": "player.deleted", "player_id": "<uuid>"}
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ladder/internal/back"
	"ladder/internal/util"
)

const (
	EventPlayerCreated = "player.created"
	EventPlayerDeleted = "player.deleted"
)

type Event struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
}

// Handler is implemented by *back.Back.
type Handler interface {
	OnPlayerCreated(ctx context.Context, playerID util.UUIDAsBlob) (back.PlayerRating, error)
	OnPlayerDeleted(ctx context.Context, playerID util.UUIDAsBlob) error
}

// ErrMalformed flags messages that will never be processable.
var ErrMalformed = errors.New("malformed lifecycle event")

// Dispatch applies a single raw event. Redelivered events are harmless, an
// already rated player or an already deleted one is not an error.
// Errors that do not wrap ErrMalformed may succeed on retry.
func Dispatch(ctx context.Context, h Handler, raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %s", ErrMalformed, err)
	}

	id, err := util.ParseUUIDAsBlob(ev.PlayerID)
	if err != nil || id.IsZero() {
		return ev, fmt.Errorf("%w: invalid player_id %q", ErrMalformed, ev.PlayerID)
	}

	switch ev.Type {
	case EventPlayerCreated:
		if _, err := h.OnPlayerCreated(ctx, id); err != nil && !errors.Is(err, back.ErrAlreadyExists) {
			return ev, err
		}
	case EventPlayerDeleted:
		if err := h.OnPlayerDeleted(ctx, id); err != nil && !errors.Is(err, back.ErrNotFound) {
			return ev, err
		}
	default:
		return ev, fmt.Errorf("%w: unknown type %q", ErrMalformed, ev.Type)
	}

	return ev, nil
}
