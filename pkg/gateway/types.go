package gateway

import "fmt"

// OpCode identifies the body format of a packet, per the wire protocol's
// opcode byte.
type OpCode uint8

const (
	OpCodeError         OpCode = 0x00
	OpCodeStartup       OpCode = 0x01
	OpCodeReady         OpCode = 0x02
	OpCodeAuthenticate  OpCode = 0x03
	OpCodeCredentials   OpCode = 0x04
	OpCodeOptions       OpCode = 0x05
	OpCodeSupported     OpCode = 0x06
	OpCodeQuery         OpCode = 0x07
	OpCodeResult        OpCode = 0x08
	OpCodePrepare       OpCode = 0x09
	OpCodeExecute       OpCode = 0x0A
	OpCodeRegister      OpCode = 0x0B
	OpCodeEvent         OpCode = 0x0C
	OpCodeBatch         OpCode = 0x0D
	OpCodeAuthChallenge OpCode = 0x0E
	OpCodeAuthResponse  OpCode = 0x0F
	OpCodeAuthSuccess   OpCode = 0x10
)

var opcodeNames = map[OpCode]string{
	OpCodeError:         "ERROR",
	OpCodeStartup:       "STARTUP",
	OpCodeReady:         "READY",
	OpCodeAuthenticate:  "AUTHENTICATE",
	OpCodeCredentials:   "CREDENTIALS",
	OpCodeOptions:       "OPTIONS",
	OpCodeSupported:     "SUPPORTED",
	OpCodeQuery:         "QUERY",
	OpCodeResult:        "RESULT",
	OpCodePrepare:       "PREPARE",
	OpCodeExecute:       "EXECUTE",
	OpCodeRegister:      "REGISTER",
	OpCodeEvent:         "EVENT",
	OpCodeBatch:         "BATCH",
	OpCodeAuthChallenge: "AUTH_CHALLENGE",
	OpCodeAuthResponse:  "AUTH_RESPONSE",
	OpCodeAuthSuccess:   "AUTH_SUCCESS",
}

func (o OpCode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02x)", uint8(o))
}

// ResultKind is the 4-byte kind field at the start of a RESULT body.
type ResultKind int32

const (
	ResultKindVoid         ResultKind = 0x0001
	ResultKindRows         ResultKind = 0x0002
	ResultKindSetKeyspace  ResultKind = 0x0003
	ResultKindPrepared     ResultKind = 0x0004
	ResultKindSchemaChange ResultKind = 0x0005
)

// ErrorCode identifies the wire error code placed in an ERROR body.
type ErrorCode int32

const (
	ErrorCodeServer         ErrorCode = 0x0000
	ErrorCodeProtocol       ErrorCode = 0x000A
	ErrorCodeBadCredentials ErrorCode = 0x0100
	ErrorCodeUnauthorized   ErrorCode = 0x2100
	ErrorCodeAlreadyExists  ErrorCode = 0x2400
)

// Compression names accepted in a STARTUP string map's COMPRESSION entry.
const (
	CompressionNone   = ""
	CompressionLZ4    = "lz4"
	CompressionSnappy = "snappy"
)
