package room

import (
	"fmt"
	"slices"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/davidmehren/workadventure/internal/messages"
)

// ParseItemState validates an item state JSON document.
func ParseItemState(raw string) (*structpb.Value, error) {
	var v structpb.Value
	if err := protojson.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("parse item state: %w", err)
	}
	return &v, nil
}

// SetItemState stores the latest state of an item.
func (r *Room) SetItemState(itemID int32, state *structpb.Value) {
	r.items[itemID] = state
}

// ItemStates renders every item state as JSON, ordered by item id.
func (r *Room) ItemStates() []messages.ItemStateMessage {
	ids := make([]int32, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]messages.ItemStateMessage, 0, len(ids))
	for _, id := range ids {
		raw, err := protojson.Marshal(r.items[id])
		if err != nil {
			r.logger.Warn("failed to render item state", "item_id", id, "error", err)
			continue
		}
		out = append(out, messages.ItemStateMessage{ItemID: id, StateJSON: string(raw)})
	}
	return out
}
