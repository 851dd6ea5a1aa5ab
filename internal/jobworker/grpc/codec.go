package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is the codec name negotiated over the wire, replacing
// grpc-go's default "proto" codec name. A client must register the same
// codec (via grpc.ForceCodec, or by calling encoding.RegisterCodec with
// the same jsonCodec) to talk to this server.
const jsonCodecName = "json"

// jsonCodec implements google.golang.org/grpc/encoding.Codec with
// encoding/json instead of the binary protobuf wire format. Authoring a
// protoc-generated descriptor by hand is out of scope and error-prone;
// grpc-go's wire framing (length-prefixed messages over HTTP/2) does not
// require one, only a Codec, so this keeps google.golang.org/grpc as the
// genuine transport dependency without fabricating protobuf codegen.
type jsonCodec struct{}

// Marshal implements encoding.Codec.
func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements encoding.Codec.
func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Name implements encoding.Codec.
func (jsonCodec) Name() string {
	return jsonCodecName
}

// Codec returns the encoding.Codec this package's server and any client
// dialing it must use. The server is built with
// grpc.ForceServerCodec(Codec()) passed to grpc.NewServer (Register does
// not set it); a client does the same with grpc.ForceCodec(Codec()) as a
// call option, or calls encoding.RegisterCodec(Codec()) process-wide.
func Codec() encoding.Codec {
	return jsonCodec{}
}
