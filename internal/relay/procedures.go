package relay

// ServiceName is the fully-qualified name of the room manager service.
const ServiceName = "workadventure.relay.v1.RoomManager"

const (
	JoinRoomProcedure         = "/" + ServiceName + "/JoinRoom"
	ListenZoneProcedure       = "/" + ServiceName + "/ListenZone"
	AdminRoomProcedure        = "/" + ServiceName + "/AdminRoom"
	SendAdminMessageProcedure = "/" + ServiceName + "/SendAdminMessage"
	BanProcedure              = "/" + ServiceName + "/Ban"
)
