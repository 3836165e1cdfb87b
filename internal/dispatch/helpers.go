package dispatch

import (
	"strings"

	"github.com/HVML/purcmc-renderer/internal/message"
	"github.com/HVML/purcmc-renderer/internal/model"
)

// parseNameGroup splits an element value of the form "name" or
// "name@group" into its parts, per spec.md §4.F createPlainWindow/
// createWidget "parse element as name[@group]".
func parseNameGroup(value string) (name, group string) {
	if i := strings.IndexByte(value, '@'); i >= 0 {
		return value[:i], value[i+1:]
	}
	return value, ""
}

// jsonResult builds an immediate success response carrying resultValue and
// a JSON-typed body, for handlers (Session-target callMethod/getProperty)
// that resolve synchronously against a backend rather than round-tripping
// through the DOM pipeline.
func jsonResult(req *message.Message, resultValue model.Handle, data []byte) Result {
	if !req.WantsResponse() {
		return Result{}
	}
	resp := &message.Message{
		Type:        message.TypeResponse,
		RequestID:   req.RequestID,
		RetCode:     message.RetOK,
		ResultValue: uint64(resultValue),
	}
	if len(data) > 0 {
		resp.DataType = message.DataJSON
		resp.Data = data
	}
	return Result{Resp: resp}
}
