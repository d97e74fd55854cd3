package messages

type SubscribeToRoomMessage struct {
	RoomID string `cbor:"1,keyasint"`
}

// AdminPayload is a variant of AdminPusherToBack.
type AdminPayload interface{ isAdminPayload() }

func (*SubscribeToRoomMessage) isAdminPayload() {}

// AdminPusherToBack is what a gateway writes on an admin stream.
type AdminPusherToBack struct {
	SubscribeToRoom *SubscribeToRoomMessage `cbor:"1,keyasint,omitempty"`
}

func (m *AdminPusherToBack) Payload() (AdminPayload, error) {
	p := picker[AdminPayload]{envelope: "AdminPusherToBack"}
	p.add(m.SubscribeToRoom != nil, m.SubscribeToRoom)
	return p.result()
}

func (m *AdminPusherToBack) Validate() error {
	_, err := m.Payload()
	return err
}

type MemberJoin struct {
	UUID      string `cbor:"1,keyasint" json:"uuid"`
	Name      string `cbor:"2,keyasint" json:"name"`
	IPAddress string `cbor:"3,keyasint" json:"ipAddress"`
}

type MemberLeave struct {
	UUID string `cbor:"1,keyasint" json:"uuid"`
}

// ServerToAdminPayload is a variant of ServerToAdmin.
type ServerToAdminPayload interface{ isServerToAdminPayload() }

func (*MemberJoin) isServerToAdminPayload()  {}
func (*MemberLeave) isServerToAdminPayload() {}

type ServerToAdmin struct {
	MemberJoin  *MemberJoin  `cbor:"1,keyasint,omitempty"`
	MemberLeave *MemberLeave `cbor:"2,keyasint,omitempty"`
}

func (m *ServerToAdmin) Payload() (ServerToAdminPayload, error) {
	p := picker[ServerToAdminPayload]{envelope: "ServerToAdmin"}
	p.add(m.MemberJoin != nil, m.MemberJoin)
	p.add(m.MemberLeave != nil, m.MemberLeave)
	return p.result()
}

func (m *ServerToAdmin) Validate() error {
	_, err := m.Payload()
	return err
}

func WrapServerToAdmin(p ServerToAdminPayload) *ServerToAdmin {
	m := &ServerToAdmin{}
	switch v := p.(type) {
	case *MemberJoin:
		m.MemberJoin = v
	case *MemberLeave:
		m.MemberLeave = v
	}
	return m
}

// AdminMessage is a text pushed to one user by an administrator.
type AdminMessage struct {
	RoomID        string `cbor:"1,keyasint" json:"roomId"`
	RecipientUUID string `cbor:"2,keyasint" json:"recipientUuid"`
	Message       string `cbor:"3,keyasint" json:"message"`
}

func (m *AdminMessage) Validate() error { return nil }

type BanRequest struct {
	RoomID        string `cbor:"1,keyasint" json:"roomId"`
	RecipientUUID string `cbor:"2,keyasint" json:"recipientUuid"`
	Message       string `cbor:"3,keyasint" json:"message"`
}

func (m *BanRequest) Validate() error { return nil }

// Empty acknowledges a unary call.
type Empty struct{}
