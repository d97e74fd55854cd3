package messages

import "github.com/davidmehren/workadventure/internal/geometry"

// CharacterLayer is one sprite sheet of an avatar. URL is empty for the
// built-in textures.
type CharacterLayer struct {
	Name string `cbor:"1,keyasint" json:"name"`
	URL  string `cbor:"2,keyasint,omitempty" json:"url,omitempty"`
}

type ViewportMessage struct {
	Viewport geometry.Viewport `cbor:"1,keyasint"`
}

type UserMovesMessage struct {
	Position geometry.Position `cbor:"1,keyasint"`
	Viewport geometry.Viewport `cbor:"2,keyasint"`
}

type SilentMessage struct {
	Silent bool `cbor:"1,keyasint"`
}

// ItemEventMessage carries an item's new state. StateJSON and
// ParametersJSON are opaque JSON documents checked only by the back.
type ItemEventMessage struct {
	ItemID         int32  `cbor:"1,keyasint"`
	Event          string `cbor:"2,keyasint"`
	StateJSON      string `cbor:"3,keyasint"`
	ParametersJSON string `cbor:"4,keyasint,omitempty"`
}

type WebRtcSignalToServer struct {
	ReceiverID int32  `cbor:"1,keyasint"`
	Signal     string `cbor:"2,keyasint"`
}

type WebRtcScreenSharingSignalToServer struct {
	ReceiverID int32  `cbor:"1,keyasint"`
	Signal     string `cbor:"2,keyasint"`
}

type PlayGlobalMessage struct {
	ID      string `cbor:"1,keyasint"`
	Type    string `cbor:"2,keyasint"`
	Message string `cbor:"3,keyasint"`
}

type QueryJitsiJwtMessage struct {
	JitsiRoom string `cbor:"1,keyasint"`
	Tag       string `cbor:"2,keyasint,omitempty"`
}

// Types of a SendUserMessage.
const (
	UserMessageAdmin  = "message"
	UserMessageBan    = "ban"
	UserMessageBanned = "banned"
)

// SendUserMessage is a typed text shown to a single user. Type is one of
// the UserMessage constants.
type SendUserMessage struct {
	Type    string `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
}

type BanUserMessage struct {
	Type    string `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
}
