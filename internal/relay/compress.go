package relay

import (
	"io"

	"connectrpc.com/connect"
	"github.com/klauspost/compress/zstd"
)

const (
	CompressionZstd     = "zstd"
	CompressionIdentity = "identity"
)

// WithZstd registers zstd for both directions. Pooled encoders and decoders
// run single-threaded so they hold no background goroutines between uses.
func WithZstd() connect.HandlerOption {
	return connect.WithCompression(CompressionZstd, newZstdDecompressor, newZstdCompressor)
}

func newZstdCompressor() connect.Compressor {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedFastest),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		panic("relay: zstd encoder initialization failed: " + err.Error())
	}
	return enc
}

// zstdDecompressor adapts *zstd.Decoder to connect.Decompressor. Close
// keeps the decoder usable because connect pools decompressors and resets
// them after Close.
type zstdDecompressor struct {
	*zstd.Decoder
}

func newZstdDecompressor() connect.Decompressor {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic("relay: zstd decoder initialization failed: " + err.Error())
	}
	return zstdDecompressor{Decoder: dec}
}

func (d zstdDecompressor) Reset(r io.Reader) error {
	return d.Decoder.Reset(r)
}

func (d zstdDecompressor) Close() error {
	return nil
}
