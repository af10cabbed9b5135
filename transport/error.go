package transport

import "fmt"

// TransportErrorCode is a QUIC transport error code (RFC 9000 Section 20.1)
// or an application-defined code carried in a CONNECTION_CLOSE frame.
type TransportErrorCode uint64

// Transport error codes defined by RFC 9000 Section 20.1.
const (
	NoError                  TransportErrorCode = 0x0
	InternalError            TransportErrorCode = 0x1
	ConnectionRefused        TransportErrorCode = 0x2
	FlowControlError         TransportErrorCode = 0x3
	StreamLimitError         TransportErrorCode = 0x4
	StreamStateError         TransportErrorCode = 0x5
	FinalSizeError           TransportErrorCode = 0x6
	FrameEncodingError       TransportErrorCode = 0x7
	TransportParameterError  TransportErrorCode = 0x8
	ConnectionIDLimitError   TransportErrorCode = 0x9
	ProtocolViolation        TransportErrorCode = 0xa
	InvalidToken             TransportErrorCode = 0xb
	ApplicationError         TransportErrorCode = 0xc
	CryptoBufferExceeded     TransportErrorCode = 0xd
	KeyUpdateError           TransportErrorCode = 0xe
	AEADLimitReached         TransportErrorCode = 0xf
	NoViablePath             TransportErrorCode = 0x10
	cryptoErrorBase          TransportErrorCode = 0x100 // 0x1XX: CRYPTO_ERROR, XX is the TLS alert.
)

func errorCodeString(code TransportErrorCode) string {
	switch {
	case code >= cryptoErrorBase && code <= 0x1ff:
		return fmt.Sprintf("crypto_error_%d", code-cryptoErrorBase)
	}
	switch code {
	case NoError:
		return "no_error"
	case InternalError:
		return "internal_error"
	case ConnectionRefused:
		return "connection_refused"
	case FlowControlError:
		return "flow_control_error"
	case StreamLimitError:
		return "stream_limit_error"
	case StreamStateError:
		return "stream_state_error"
	case FinalSizeError:
		return "final_size_error"
	case FrameEncodingError:
		return "frame_encoding_error"
	case TransportParameterError:
		return "transport_parameter_error"
	case ConnectionIDLimitError:
		return "connection_id_limit_error"
	case ProtocolViolation:
		return "protocol_violation"
	case InvalidToken:
		return "invalid_token"
	case ApplicationError:
		return "application_error"
	case CryptoBufferExceeded:
		return "crypto_buffer_exceeded"
	case KeyUpdateError:
		return "key_update_error"
	case AEADLimitReached:
		return "aead_limit_reached"
	case NoViablePath:
		return "no_viable_path"
	default:
		return fmt.Sprintf("error_0x%x", uint64(code))
	}
}

// Error is a protocol or internal error produced while processing a
// connection. It always carries a TransportErrorCode kind, even for
// application-level closures (ApplicationError).
type Error struct {
	Code      TransportErrorCode
	Message   string
	FrameType uint64 // Frame that triggered the error, or 0.
}

func newError(code TransportErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return errorCodeString(e.Code)
	}
	return errorCodeString(e.Code) + ": " + e.Message
}

// errInsufficientSpace is returned by frame/packet encoders when the
// destination buffer is too small. It is not a connection error: callers
// finalize the current packet and start a new one.
var errInsufficientSpace = newError(InternalError, "insufficient space")

// IsInsufficientSpace reports whether err was caused by a too-small buffer
// during encoding, as opposed to a protocol or internal failure.
func IsInsufficientSpace(err error) bool {
	return err == errInsufficientSpace
}

var (
	errInvalidToken  = newError(InvalidToken, "invalid retry token")
	errFlowControl   = newError(FlowControlError, "flow control limit exceeded")
	errShortBuffer   = newError(InternalError, "short buffer")
	errNeedMoreBytes = newError(InternalError, "need more bytes")
)
