package relay

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/davidmehren/workadventure/internal/messages"
)

// RoomManagerHandler is implemented by the back service.
type RoomManagerHandler interface {
	JoinRoom(ctx context.Context, stream *connect.BidiStream[messages.PusherToBack, messages.ServerMessage]) error
	ListenZone(ctx context.Context, req *connect.Request[messages.ZoneRequest], stream *connect.ServerStream[messages.ZoneBatch]) error
	AdminRoom(ctx context.Context, stream *connect.BidiStream[messages.AdminPusherToBack, messages.ServerToAdmin]) error
	SendAdminMessage(ctx context.Context, req *connect.Request[messages.AdminMessage]) (*connect.Response[messages.Empty], error)
	Ban(ctx context.Context, req *connect.Request[messages.BanRequest]) (*connect.Response[messages.Empty], error)
}

// NewHandler builds an HTTP handler serving svc. It returns the path prefix
// to mount it on.
func NewHandler(svc RoomManagerHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{}), WithZstd()}, opts...)

	joinRoom := connect.NewBidiStreamHandler(JoinRoomProcedure, svc.JoinRoom, opts...)
	listenZone := connect.NewServerStreamHandler(ListenZoneProcedure, svc.ListenZone, opts...)
	adminRoom := connect.NewBidiStreamHandler(AdminRoomProcedure, svc.AdminRoom, opts...)
	sendAdminMessage := connect.NewUnaryHandler(SendAdminMessageProcedure, svc.SendAdminMessage, opts...)
	ban := connect.NewUnaryHandler(BanProcedure, svc.Ban, opts...)

	return "/" + ServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case JoinRoomProcedure:
			joinRoom.ServeHTTP(w, r)
		case ListenZoneProcedure:
			listenZone.ServeHTTP(w, r)
		case AdminRoomProcedure:
			adminRoom.ServeHTTP(w, r)
		case SendAdminMessageProcedure:
			sendAdminMessage.ServeHTTP(w, r)
		case BanProcedure:
			ban.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
