package relay

import (
	"github.com/davidmehren/workadventure/internal/codec"
	"github.com/davidmehren/workadventure/internal/messages"
)

// CodecName is the content subtype negotiated on the wire.
const CodecName = "cbor"

// Codec marshals envelopes with the shared CBOR configuration and rejects
// envelopes that fail validation.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(v any) ([]byte, error) {
	return codec.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if err := codec.Unmarshal(data, v); err != nil {
		return err
	}
	if m, ok := v.(messages.Validator); ok {
		return m.Validate()
	}
	return nil
}
