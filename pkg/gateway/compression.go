package gateway

import (
	"bytes"
	"fmt"

	"github.com/datastax/go-cassandra-native-protocol/compression/lz4"
	"github.com/datastax/go-cassandra-native-protocol/compression/snappy"
)

// Codec compresses and decompresses packet bodies for one negotiated
// compression algorithm. The upstream link never carries a compressed
// body (spec.md §4.2: "the upstream link is local and uncompressed by
// contract"), so a Codec is only ever exercised on the client-facing
// side of a session.
type Codec interface {
	Name() string
	Compress(body []byte) ([]byte, error)
	Decompress(body []byte) ([]byte, error)
}

type noneCodec struct{}

func (noneCodec) Name() string                          { return CompressionNone }
func (noneCodec) Compress(body []byte) ([]byte, error)   { return body, nil }
func (noneCodec) Decompress(body []byte) ([]byte, error) { return body, nil }

// lz4Codec and snappyCodec adapt the real wire-format compressors from
// the go-cassandra-native-protocol library, the same dependency
// proxy/pkg/zdmproxy/frame.go wraps into its own frameCodecs map.
type lz4Codec struct {
	compressor lz4.Compressor
}

func (c lz4Codec) Name() string { return CompressionLZ4 }

func (c lz4Codec) Compress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.compressor.Compress(bytes.NewReader(body), &buf); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (c lz4Codec) Decompress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.compressor.Decompress(bytes.NewReader(body), &buf); err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return buf.Bytes(), nil
}

type snappyCodec struct {
	compressor snappy.Compressor
}

func (c snappyCodec) Name() string { return CompressionSnappy }

func (c snappyCodec) Compress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.compressor.CompressWithLength(bytes.NewReader(body), &buf); err != nil {
		return nil, fmt.Errorf("snappy compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (c snappyCodec) Decompress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.compressor.DecompressWithLength(bytes.NewReader(body), &buf); err != nil {
		return nil, fmt.Errorf("snappy decompress: %w", err)
	}
	return buf.Bytes(), nil
}

var codecsByName = map[string]Codec{
	CompressionNone:   noneCodec{},
	CompressionLZ4:    lz4Codec{},
	CompressionSnappy: snappyCodec{},
}

// CodecForName resolves the COMPRESSION value from a STARTUP string map
// to a Codec, failing with a protocol error on an unrecognized name
// (spec.md §4.2).
func CodecForName(name string) (Codec, error) {
	codec, ok := codecsByName[name]
	if !ok {
		return nil, newProtocolError("unknown compression algorithm %q", name)
	}
	return codec, nil
}
