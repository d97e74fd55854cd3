package messages

import (
	"errors"
	"testing"

	"github.com/davidmehren/workadventure/internal/codec"
	"github.com/davidmehren/workadventure/internal/geometry"
)

func TestClientMessage_Payload(t *testing.T) {
	tests := []struct {
		name    string
		msg     *ClientMessage
		wantErr error
	}{
		{"empty", &ClientMessage{}, ErrNoVariant},
		{"one", &ClientMessage{Silent: &SilentMessage{Silent: true}}, nil},
		{"two", &ClientMessage{
			Silent:   &SilentMessage{},
			Viewport: &ViewportMessage{},
		}, ErrManyVariants},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.msg.Payload()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Payload() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWrapClient_RoundTrip(t *testing.T) {
	payloads := []ClientPayload{
		&ViewportMessage{},
		&UserMovesMessage{},
		&SilentMessage{},
		&ItemEventMessage{},
		&WebRtcSignalToServer{},
		&WebRtcScreenSharingSignalToServer{},
		&PlayGlobalMessage{},
		&QueryJitsiJwtMessage{},
	}

	for _, want := range payloads {
		got, err := WrapClient(want).Payload()
		if err != nil {
			t.Fatalf("Payload(%T) error = %v", want, err)
		}
		if got != want {
			t.Errorf("Payload() = %T, want %T", got, want)
		}
	}
}

func TestForwardClient(t *testing.T) {
	if ForwardClient(&ViewportMessage{}) != nil {
		t.Error("viewport should stay on the gateway")
	}

	moves := &UserMovesMessage{Position: geometry.Position{X: 5}}
	fwd := ForwardClient(moves)
	if fwd == nil || fwd.UserMoves != moves {
		t.Fatalf("ForwardClient(UserMoves) = %+v", fwd)
	}
}

func TestServerMessage_ValidateChecksBatch(t *testing.T) {
	msg := Batch(&SubMessage{})
	if err := msg.Validate(); !errors.Is(err, ErrNoVariant) {
		t.Errorf("Validate() error = %v, want ErrNoVariant", err)
	}

	ok := Batch(WrapSub(&UserLeftMessage{UserID: 3}))
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestZoneEvent_CBOR(t *testing.T) {
	from := geometry.Cell{X: -1, Y: 2}
	batch := &ZoneBatch{Events: []*ZoneEvent{
		WrapZoneEvent(&UserJoinedZoneMessage{
			UserID:   7,
			Name:     "alice",
			Position: geometry.Position{X: -10, Y: 700, Direction: geometry.Left, Moving: true},
			FromZone: &from,
		}),
	}}

	data, err := codec.Marshal(batch)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded ZoneBatch
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if err := decoded.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	joined := decoded.Events[0].UserJoinedZone
	if joined == nil {
		t.Fatal("UserJoinedZone missing after decode")
	}
	if joined.Position != batch.Events[0].UserJoinedZone.Position {
		t.Errorf("Position = %+v, want %+v", joined.Position, batch.Events[0].UserJoinedZone.Position)
	}
	if joined.FromZone == nil || *joined.FromZone != from {
		t.Errorf("FromZone = %v, want %v", joined.FromZone, from)
	}
}

func TestDecode_BadDirectionFails(t *testing.T) {
	raw := map[int]any{
		2: map[int]any{
			1: map[int]any{1: 1, 2: 2, 3: "north"},
			2: map[int]any{},
		},
	}
	data, err := codec.Marshal(raw)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var msg ClientMessage
	if err := codec.Unmarshal(data, &msg); err == nil {
		t.Error("Unmarshal succeeded with an unknown direction")
	}
}
