package messages

// ClientPayload is a variant of ClientMessage.
type ClientPayload interface{ isClientPayload() }

func (*ViewportMessage) isClientPayload()                   {}
func (*UserMovesMessage) isClientPayload()                  {}
func (*SilentMessage) isClientPayload()                     {}
func (*ItemEventMessage) isClientPayload()                  {}
func (*WebRtcSignalToServer) isClientPayload()              {}
func (*WebRtcScreenSharingSignalToServer) isClientPayload() {}
func (*PlayGlobalMessage) isClientPayload()                 {}
func (*QueryJitsiJwtMessage) isClientPayload()              {}

// ClientMessage is what a browser sends to its gateway.
type ClientMessage struct {
	Viewport                  *ViewportMessage                   `cbor:"1,keyasint,omitempty"`
	UserMoves                 *UserMovesMessage                  `cbor:"2,keyasint,omitempty"`
	Silent                    *SilentMessage                     `cbor:"3,keyasint,omitempty"`
	ItemEvent                 *ItemEventMessage                  `cbor:"4,keyasint,omitempty"`
	WebRtcSignal              *WebRtcSignalToServer              `cbor:"5,keyasint,omitempty"`
	WebRtcScreenSharingSignal *WebRtcScreenSharingSignalToServer `cbor:"6,keyasint,omitempty"`
	PlayGlobal                *PlayGlobalMessage                 `cbor:"7,keyasint,omitempty"`
	QueryJitsiJwt             *QueryJitsiJwtMessage              `cbor:"8,keyasint,omitempty"`
}

func (m *ClientMessage) Payload() (ClientPayload, error) {
	p := picker[ClientPayload]{envelope: "ClientMessage"}
	p.add(m.Viewport != nil, m.Viewport)
	p.add(m.UserMoves != nil, m.UserMoves)
	p.add(m.Silent != nil, m.Silent)
	p.add(m.ItemEvent != nil, m.ItemEvent)
	p.add(m.WebRtcSignal != nil, m.WebRtcSignal)
	p.add(m.WebRtcScreenSharingSignal != nil, m.WebRtcScreenSharingSignal)
	p.add(m.PlayGlobal != nil, m.PlayGlobal)
	p.add(m.QueryJitsiJwt != nil, m.QueryJitsiJwt)
	return p.result()
}

func (m *ClientMessage) Validate() error {
	_, err := m.Payload()
	return err
}

func WrapClient(p ClientPayload) *ClientMessage {
	m := &ClientMessage{}
	switch v := p.(type) {
	case *ViewportMessage:
		m.Viewport = v
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
	}
	return m
}
