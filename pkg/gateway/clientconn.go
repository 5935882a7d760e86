package gateway

import (
	"errors"
	"io"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// runClientPipeline is the ingress worker: it reads requests off conn,
// rewrites them, and writes the rewritten bytes to upstream. It runs
// until conn or upstream returns a fatal error, mirroring the plain
// read-loop-and-forward shape of proxy/filter/filter.go's forward, not
// the teacher's channel/scheduler machinery - this gateway has exactly
// one upstream per session, so there is nothing to schedule between.
func runClientPipeline(session *Session, conn, upstream net.Conn, opts SessionOptions) error {
	for {
		if opts.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout)); err != nil {
				return err
			}
		}

		packet, err := ReadPacket(conn, false, session.ProtocolVersion(), opts.MaxFrameLength)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := session.PinProtocolVersion(packet.Header.Version); err != nil {
			writeErrorReply(conn, packet.Header, err)
			return err
		}

		body := packet.Body
		if packet.Header.Compressed {
			body, err = session.Compression().Decompress(body)
			if err != nil {
				werr := newProtocolError("could not decompress request: %v", err)
				writeErrorReply(conn, packet.Header, werr)
				return werr
			}
		}

		rewritten, err := RewriteRequest(session, packet.Header, body, opts.Validator, opts.TokenLength)
		if err != nil {
			log.Debugf("session %s: request rewrite failed: %v", session.ID, err)
			writeErrorReply(conn, packet.Header, err)
			countRequestError(opts)
			return err
		}
		countRequest(opts)

		out := &Packet{Header: packet.Header}
		out.Header.Compressed = false
		out.setBody(rewritten)
		if err := WritePacket(upstream, out); err != nil {
			return err
		}
	}
}

// writeErrorReply builds and writes an ERROR packet for err on the
// client-facing connection, best-effort - the session is already being
// torn down by the caller so a failed write here is not itself fatal.
func writeErrorReply(conn net.Conn, header Header, err error) {
	reply := BuildErrorPacket(header.Version, header.Stream, err)
	if werr := WritePacket(conn, reply); werr != nil {
		log.Debugf("could not write error reply: %v", werr)
	}
}
