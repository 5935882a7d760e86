package gateway

import (
	"errors"
	"io"
	"net"

	log "github.com/sirupsen/logrus"
)

// runUpstreamPipeline is the egress worker: it reads responses off
// upstream, rewrites them, and writes the rewritten bytes back to the
// client. The upstream link never carries a compressed body (spec.md
// §6, "always with compression disabled"), but the client-facing leg
// must still honor whatever codec STARTUP negotiated, so a response is
// recompressed here before it goes out.
func runUpstreamPipeline(session *Session, client, upstream net.Conn, opts SessionOptions) error {
	for {
		packet, err := ReadPacket(upstream, true, session.ProtocolVersion(), opts.MaxFrameLength)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		rewritten, drop, err := RewriteResponse(session, packet.Header, packet.Body)
		if err != nil {
			log.Debugf("session %s: response rewrite failed: %v", session.ID, err)
			writeErrorReply(client, packet.Header, err)
			countRequestError(opts)
			return err
		}
		if drop {
			continue
		}

		out := &Packet{Header: packet.Header}
		codec := session.Compression()
		if codec.Name() != CompressionNone {
			rewritten, err = codec.Compress(rewritten)
			if err != nil {
				werr := newProtocolError("could not compress response: %v", err)
				writeErrorReply(client, packet.Header, werr)
				return werr
			}
			out.Header.Compressed = true
		}
		out.setBody(rewritten)
		if err := WritePacket(client, out); err != nil {
			return err
		}
	}
}
