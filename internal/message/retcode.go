package message

// RetCode is the protocol-level result code embedded in every response, per
// spec.md §7. Numeric values follow the HTTP-style codes used throughout
// original_source/source/bin/purcmc.
type RetCode int

const (
	RetOK                  RetCode = 200
	RetBadRequest          RetCode = 400
	RetUnauthorized        RetCode = 401
	RetNotFound            RetCode = 404
	RetConflict            RetCode = 409
	RetNotAcceptable       RetCode = 406
	RetPreconditionFailed  RetCode = 412
	RetUpgradeRequired     RetCode = 426
	RetMethodNotAllowed    RetCode = 405
	RetPacketTooLarge      RetCode = 413
	RetUnprocessablePacket RetCode = 422
	RetIOError             RetCode = 502
	RetInsufficientStorage RetCode = 507
	RetInternalServerError RetCode = 500
	RetNotImplemented      RetCode = 501
	RetServiceUnavailable  RetCode = 503
	RetPartialContent      RetCode = 206
)

// String returns a short machine-stable name for the ret code, useful for
// access-log lines.
func (r RetCode) String() string {
	switch r {
	case RetOK:
		return "Ok"
	case RetBadRequest:
		return "BadRequest"
	case RetUnauthorized:
		return "Unauthorized"
	case RetNotFound:
		return "NotFound"
	case RetConflict:
		return "Conflict"
	case RetNotAcceptable:
		return "NotAcceptable"
	case RetPreconditionFailed:
		return "PreconditionFailed"
	case RetUpgradeRequired:
		return "UpgradeRequired"
	case RetMethodNotAllowed:
		return "MethodNotAllowed"
	case RetPacketTooLarge:
		return "PacketTooLarge"
	case RetUnprocessablePacket:
		return "UnprocessablePacket"
	case RetIOError:
		return "IOError"
	case RetInsufficientStorage:
		return "InsufficientStorage"
	case RetInternalServerError:
		return "InternalServerError"
	case RetNotImplemented:
		return "NotImplemented"
	case RetServiceUnavailable:
		return "ServiceUnavailable"
	case RetPartialContent:
		return "PartialContent"
	default:
		return "Unknown"
	}
}

// DOMReplyState maps the DOM rendering subprocess's reply "state" string to
// a RetCode, per spec.md §4.H step 3.
func DOMReplyState(state string) RetCode {
	switch state {
	case "Ok":
		return RetOK
	case "NotFound":
		return RetNotFound
	case "NotImplemented":
		return RetNotImplemented
	case "PartialContent":
		return RetPartialContent
	case "BadRequest":
		return RetBadRequest
	default:
		return RetInternalServerError
	}
}
