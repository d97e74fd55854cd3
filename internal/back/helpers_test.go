package back

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/davidmehren/workadventure/internal/audit"
	"github.com/davidmehren/workadventure/internal/clock"
	"github.com/davidmehren/workadventure/internal/credentials"
	"github.com/davidmehren/workadventure/internal/geometry"
	"github.com/davidmehren/workadventure/internal/messages"
	"github.com/davidmehren/workadventure/internal/relay"
)

const testRoom = "_/global/maps.example.com/office.json"

var epoch = time.Unix(1_700_000_000, 0)

type recorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorder) Record(e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []audit.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

type harness struct {
	svc    *Service
	client *relay.Client
	clock  *clock.FakeClock
	audit  *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.Fake(epoch)
	rec := &recorder{}
	svc := NewService(Config{
		Instance:      "back-test",
		TURN:          credentials.NewTURN("s3cret", []string{"turn:turn.example.org:3478"}, 0, clk),
		Jitsi:         credentials.NewJitsi("meet.example.org", "workadventure", "jitsi-secret", clk),
		BanCloseDelay: 10 * time.Second,
		Audit:         rec,
		Clock:         clk,
	})
	t.Cleanup(svc.Close)

	mux := http.NewServeMux()
	path, handler := relay.NewHandler(svc)
	mux.Handle(path, handler)
	srv := httptest.NewUnstartedServer(mux)
	srv.EnableHTTP2 = true
	srv.StartTLS()
	t.Cleanup(srv.Close)

	return &harness{
		svc:    svc,
		client: relay.NewClient(srv.Client(), srv.URL, relay.CompressionIdentity),
		clock:  clk,
		audit:  rec,
	}
}

type joinStream = connect.BidiStreamForClient[messages.PusherToBack, messages.ServerMessage]

type testUser struct {
	stream *joinStream
	id     int32
	uuid   string
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// join opens a join stream and waits for RoomJoined.
func (h *harness) join(t *testing.T, ctx context.Context, name string, x, y int32) *testUser {
	t.Helper()
	stream := h.client.JoinRoom(ctx)
	t.Cleanup(func() { _ = stream.CloseResponse() })

	id := uuid.NewString()
	err := stream.Send(messages.WrapPusherToBack(&messages.JoinRoomMessage{
		RoomID:   testRoom,
		UserUUID: id,
		Name:     name,
		Position: geometry.Position{X: x, Y: y, Direction: geometry.Down},
		Tags:     []string{"member"},
	}))
	if err != nil {
		t.Fatalf("Send(join %s) error = %v", name, err)
	}
	msg := receive(t, stream)
	if msg.RoomJoined == nil {
		t.Fatalf("first message for %s = %+v, want RoomJoined", name, msg)
	}
	return &testUser{stream: stream, id: msg.RoomJoined.CurrentUserID, uuid: id}
}

func receive(t *testing.T, stream *joinStream) *messages.ServerMessage {
	t.Helper()
	msg, err := stream.Receive()
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	return msg
}

func send(t *testing.T, stream *joinStream, p messages.PusherToBackPayload) {
	t.Helper()
	if err := stream.Send(messages.WrapPusherToBack(p)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

// drain reads until the stream ends and returns the terminating error.
func drain(stream *joinStream) error {
	for {
		if _, err := stream.Receive(); err != nil {
			return err
		}
	}
}

func turnTimestamp(username string) string {
	ts, _, _ := strings.Cut(username, ":")
	return ts
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (h *harness) userCount() int {
	n := 0
	for _, s := range h.svc.Rooms().Stats() {
		n += s.Users
	}
	return n
}
