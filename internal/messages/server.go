package messages

import (
	"github.com/pion/webrtc/v4"

	"github.com/davidmehren/workadventure/internal/geometry"
)

type ItemStateMessage struct {
	ItemID    int32  `cbor:"1,keyasint"`
	StateJSON string `cbor:"2,keyasint"`
}

type RoomJoinedMessage struct {
	CurrentUserID int32              `cbor:"1,keyasint"`
	Items         []ItemStateMessage `cbor:"2,keyasint,omitempty"`
	Tags          []string           `cbor:"3,keyasint,omitempty"`
}

type UserJoinedMessage struct {
	UserID          int32             `cbor:"1,keyasint"`
	Name            string            `cbor:"2,keyasint"`
	CharacterLayers []CharacterLayer  `cbor:"3,keyasint,omitempty"`
	Position        geometry.Position `cbor:"4,keyasint"`
}

type UserMovedMessage struct {
	UserID   int32             `cbor:"1,keyasint"`
	Position geometry.Position `cbor:"2,keyasint"`
}

type UserLeftMessage struct {
	UserID int32 `cbor:"1,keyasint"`
}

type GroupUpdateMessage struct {
	GroupID   int32          `cbor:"1,keyasint"`
	Position  geometry.Point `cbor:"2,keyasint"`
	GroupSize int32          `cbor:"3,keyasint"`
}

type GroupDeleteMessage struct {
	GroupID int32 `cbor:"1,keyasint"`
}

// WebRtcStartMessage asks the receiver to open a peer connection to
// UserID. Exactly one side of every pair has Initiator set.
type WebRtcStartMessage struct {
	UserID         int32              `cbor:"1,keyasint"`
	Name           string             `cbor:"2,keyasint"`
	Initiator      bool               `cbor:"3,keyasint"`
	WebRtcUser     string             `cbor:"4,keyasint,omitempty"`
	WebRtcPassword string             `cbor:"5,keyasint,omitempty"`
	ICEServers     []webrtc.ICEServer `cbor:"6,keyasint,omitempty"`
}

type WebRtcSignalToClient struct {
	UserID         int32  `cbor:"1,keyasint"`
	Signal         string `cbor:"2,keyasint"`
	WebRtcUser     string `cbor:"3,keyasint,omitempty"`
	WebRtcPassword string `cbor:"4,keyasint,omitempty"`
}

type WebRtcScreenSharingSignalToClient struct {
	UserID         int32  `cbor:"1,keyasint"`
	Signal         string `cbor:"2,keyasint"`
	WebRtcUser     string `cbor:"3,keyasint,omitempty"`
	WebRtcPassword string `cbor:"4,keyasint,omitempty"`
}

type WebRtcDisconnectMessage struct {
	UserID int32 `cbor:"1,keyasint"`
}

type ErrorMessage struct {
	Message string `cbor:"1,keyasint"`
}

type JitsiJwtMessage struct {
	Jwt       string `cbor:"1,keyasint"`
	JitsiRoom string `cbor:"2,keyasint"`
}

// SubPayload is a variant of SubMessage.
type SubPayload interface{ isSubPayload() }

func (*UserJoinedMessage) isSubPayload()  {}
func (*UserMovedMessage) isSubPayload()   {}
func (*UserLeftMessage) isSubPayload()    {}
func (*GroupUpdateMessage) isSubPayload() {}
func (*GroupDeleteMessage) isSubPayload() {}
func (*ItemEventMessage) isSubPayload()   {}

// SubMessage is one element of a batch frame.
type SubMessage struct {
	UserJoined  *UserJoinedMessage  `cbor:"1,keyasint,omitempty"`
	UserMoved   *UserMovedMessage   `cbor:"2,keyasint,omitempty"`
	UserLeft    *UserLeftMessage    `cbor:"3,keyasint,omitempty"`
	GroupUpdate *GroupUpdateMessage `cbor:"4,keyasint,omitempty"`
	GroupDelete *GroupDeleteMessage `cbor:"5,keyasint,omitempty"`
	ItemEvent   *ItemEventMessage   `cbor:"6,keyasint,omitempty"`
}

func (m *SubMessage) Payload() (SubPayload, error) {
	p := picker[SubPayload]{envelope: "SubMessage"}
	p.add(m.UserJoined != nil, m.UserJoined)
	p.add(m.UserMoved != nil, m.UserMoved)
	p.add(m.UserLeft != nil, m.UserLeft)
	p.add(m.GroupUpdate != nil, m.GroupUpdate)
	p.add(m.GroupDelete != nil, m.GroupDelete)
	p.add(m.ItemEvent != nil, m.ItemEvent)
	return p.result()
}

func WrapSub(p SubPayload) *SubMessage {
	m := &SubMessage{}
	switch v := p.(type) {
	case *UserJoinedMessage:
		m.UserJoined = v
	case *UserMovedMessage:
		m.UserMoved = v
	case *UserLeftMessage:
		m.UserLeft = v
	case *GroupUpdateMessage:
		m.GroupUpdate = v
	case *GroupDeleteMessage:
		m.GroupDelete = v
	case *ItemEventMessage:
		m.ItemEvent = v
	}
	return m
}

type BatchMessage struct {
	Payload []*SubMessage `cbor:"1,keyasint"`
}

func (b *BatchMessage) Validate() error {
	for _, sub := range b.Payload {
		if _, err := sub.Payload(); err != nil {
			return err
		}
	}
	return nil
}

// ServerPayload is a variant of ServerMessage.
type ServerPayload interface{ isServerPayload() }

func (*RoomJoinedMessage) isServerPayload()                 {}
func (*BatchMessage) isServerPayload()                      {}
func (*WebRtcStartMessage) isServerPayload()                {}
func (*WebRtcSignalToClient) isServerPayload()              {}
func (*WebRtcScreenSharingSignalToClient) isServerPayload() {}
func (*WebRtcDisconnectMessage) isServerPayload()           {}
func (*ErrorMessage) isServerPayload()                      {}
func (*JitsiJwtMessage) isServerPayload()                   {}
func (*PlayGlobalMessage) isServerPayload()                 {}
func (*SendUserMessage) isServerPayload()                   {}

// ServerMessage is what the back writes on a join stream and what the
// gateway writes to a browser.
type ServerMessage struct {
	RoomJoined                *RoomJoinedMessage                 `cbor:"1,keyasint,omitempty"`
	Batch                     *BatchMessage                      `cbor:"2,keyasint,omitempty"`
	WebRtcStart               *WebRtcStartMessage                `cbor:"3,keyasint,omitempty"`
	WebRtcSignal              *WebRtcSignalToClient              `cbor:"4,keyasint,omitempty"`
	WebRtcScreenSharingSignal *WebRtcScreenSharingSignalToClient `cbor:"5,keyasint,omitempty"`
	WebRtcDisconnect          *WebRtcDisconnectMessage           `cbor:"6,keyasint,omitempty"`
	Error                     *ErrorMessage                      `cbor:"7,keyasint,omitempty"`
	JitsiJwt                  *JitsiJwtMessage                   `cbor:"8,keyasint,omitempty"`
	PlayGlobal                *PlayGlobalMessage                 `cbor:"9,keyasint,omitempty"`
	SendUserMessage           *SendUserMessage                   `cbor:"10,keyasint,omitempty"`
}

func (m *ServerMessage) Payload() (ServerPayload, error) {
	p := picker[ServerPayload]{envelope: "ServerMessage"}
	p.add(m.RoomJoined != nil, m.RoomJoined)
	p.add(m.Batch != nil, m.Batch)
	p.add(m.WebRtcStart != nil, m.WebRtcStart)
	p.add(m.WebRtcSignal != nil, m.WebRtcSignal)
	p.add(m.WebRtcScreenSharingSignal != nil, m.WebRtcScreenSharingSignal)
	p.add(m.WebRtcDisconnect != nil, m.WebRtcDisconnect)
	p.add(m.Error != nil, m.Error)
	p.add(m.JitsiJwt != nil, m.JitsiJwt)
	p.add(m.PlayGlobal != nil, m.PlayGlobal)
	p.add(m.SendUserMessage != nil, m.SendUserMessage)
	return p.result()
}

func (m *ServerMessage) Validate() error {
	payload, err := m.Payload()
	if err != nil {
		return err
	}
	if batch, ok := payload.(*BatchMessage); ok {
		return batch.Validate()
	}
	return nil
}

func WrapServer(p ServerPayload) *ServerMessage {
	m := &ServerMessage{}
	switch v := p.(type) {
	case *RoomJoinedMessage:
		m.RoomJoined = v
	case *BatchMessage:
		m.Batch = v
	case *WebRtcStartMessage:
		m.WebRtcStart = v
	case *WebRtcSignalToClient:
		m.WebRtcSignal = v
	case *WebRtcScreenSharingSignalToClient:
		m.WebRtcScreenSharingSignal = v
	case *WebRtcDisconnectMessage:
		m.WebRtcDisconnect = v
	case *ErrorMessage:
		m.Error = v
	case *JitsiJwtMessage:
		m.JitsiJwt = v
	case *PlayGlobalMessage:
		m.PlayGlobal = v
	case *SendUserMessage:
		m.SendUserMessage = v
	}
	return m
}

// Batch wraps sub-messages into one batch frame.
func Batch(subs ...*SubMessage) *ServerMessage {
	return WrapServer(&BatchMessage{Payload: subs})
}

// Error builds an error frame.
func Error(message string) *ServerMessage {
	return WrapServer(&ErrorMessage{Message: message})
}
