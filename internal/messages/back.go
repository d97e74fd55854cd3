package messages

import "github.com/davidmehren/workadventure/internal/geometry"

// JoinRoomMessage opens a join stream. It must be the first message on it.
type JoinRoomMessage struct {
	RoomID          string            `cbor:"1,keyasint"`
	UserUUID        string            `cbor:"2,keyasint"`
	IPAddress       string            `cbor:"3,keyasint,omitempty"`
	Name            string            `cbor:"4,keyasint"`
	CharacterLayers []CharacterLayer  `cbor:"5,keyasint,omitempty"`
	Position        geometry.Position `cbor:"6,keyasint"`
	Tags            []string          `cbor:"7,keyasint,omitempty"`
}

// PusherToBackPayload is a variant of PusherToBack.
type PusherToBackPayload interface{ isPusherToBackPayload() }

func (*JoinRoomMessage) isPusherToBackPayload()                   {}
func (*UserMovesMessage) isPusherToBackPayload()                  {}
func (*SilentMessage) isPusherToBackPayload()                     {}
func (*ItemEventMessage) isPusherToBackPayload()                  {}
func (*WebRtcSignalToServer) isPusherToBackPayload()              {}
func (*WebRtcScreenSharingSignalToServer) isPusherToBackPayload() {}
func (*PlayGlobalMessage) isPusherToBackPayload()                 {}
func (*QueryJitsiJwtMessage) isPusherToBackPayload()              {}
func (*SendUserMessage) isPusherToBackPayload()                   {}
func (*BanUserMessage) isPusherToBackPayload()                    {}

// PusherToBack is what a gateway writes on a join stream.
type PusherToBack struct {
	JoinRoom                  *JoinRoomMessage                   `cbor:"1,keyasint,omitempty"`
	UserMoves                 *UserMovesMessage                  `cbor:"2,keyasint,omitempty"`
	Silent                    *SilentMessage                     `cbor:"3,keyasint,omitempty"`
	ItemEvent                 *ItemEventMessage                  `cbor:"4,keyasint,omitempty"`
	WebRtcSignal              *WebRtcSignalToServer              `cbor:"5,keyasint,omitempty"`
	WebRtcScreenSharingSignal *WebRtcScreenSharingSignalToServer `cbor:"6,keyasint,omitempty"`
	PlayGlobal                *PlayGlobalMessage                 `cbor:"7,keyasint,omitempty"`
	QueryJitsiJwt             *QueryJitsiJwtMessage              `cbor:"8,keyasint,omitempty"`
	SendUserMessage           *SendUserMessage                   `cbor:"9,keyasint,omitempty"`
	BanUser                   *BanUserMessage                    `cbor:"10,keyasint,omitempty"`
}

func (m *PusherToBack) Payload() (PusherToBackPayload, error) {
	p := picker[PusherToBackPayload]{envelope: "PusherToBack"}
	p.add(m.JoinRoom != nil, m.JoinRoom)
	p.add(m.UserMoves != nil, m.UserMoves)
	p.add(m.Silent != nil, m.Silent)
	p.add(m.ItemEvent != nil, m.ItemEvent)
	p.add(m.WebRtcSignal != nil, m.WebRtcSignal)
	p.add(m.WebRtcScreenSharingSignal != nil, m.WebRtcScreenSharingSignal)
	p.add(m.PlayGlobal != nil, m.PlayGlobal)
	p.add(m.QueryJitsiJwt != nil, m.QueryJitsiJwt)
	p.add(m.SendUserMessage != nil, m.SendUserMessage)
	p.add(m.BanUser != nil, m.BanUser)
	return p.result()
}

func (m *PusherToBack) Validate() error {
	_, err := m.Payload()
	return err
}

func WrapPusherToBack(p PusherToBackPayload) *PusherToBack {
	m := &PusherToBack{}
	switch v := p.(type) {
	case *JoinRoomMessage:
		m.JoinRoom = v
	case *UserMovesMessage:
		m.UserMoves = v
	case *SilentMessage:
		m.Silent = v
	case *ItemEventMessage:
		m.ItemEvent = v
	case *WebRtcSignalToServer:
		m.WebRtcSignal = v
	case *WebRtcScreenSharingSignalToServer:
		m.WebRtcScreenSharingSignal = v
	case *PlayGlobalMessage:
		m.PlayGlobal = v
	case *QueryJitsiJwtMessage:
		m.QueryJitsiJwt = v
	case *SendUserMessage:
		m.SendUserMessage = v
	case *BanUserMessage:
		m.BanUser = v
	}
	return m
}

// ForwardClient converts a browser message into its join stream
// counterpart. Viewport changes stay on the gateway and return nil.
func ForwardClient(p ClientPayload) *PusherToBack {
	switch v := p.(type) {
	case *ViewportMessage:
		return nil
	case *UserMovesMessage:
		return WrapPusherToBack(v)
	case *SilentMessage:
		return WrapPusherToBack(v)
	case *ItemEventMessage:
		return WrapPusherToBack(v)
	case *WebRtcSignalToServer:
		return WrapPusherToBack(v)
	case *WebRtcScreenSharingSignalToServer:
		return WrapPusherToBack(v)
	case *PlayGlobalMessage:
		return WrapPusherToBack(v)
	case *QueryJitsiJwtMessage:
		return WrapPusherToBack(v)
	}
	return nil
}
