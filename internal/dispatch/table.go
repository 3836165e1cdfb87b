package dispatch

import (
	"errors"
	"sort"

	"github.com/HVML/purcmc-renderer/internal/backend"
	"github.com/HVML/purcmc-renderer/internal/message"
	"github.com/HVML/purcmc-renderer/internal/model"
	"github.com/HVML/purcmc-renderer/internal/session"
)

type tableEntry struct {
	operation string
	handler   Handler
}

// table is the static, alphabetically sorted operation → handler mapping,
// per spec.md §4.F. Built once in init and looked up by binary search,
// matching the "static table ... lookup is binary search" design note.
var table []tableEntry

func register(operation string, h Handler) {
	table = append(table, tableEntry{operation: operation, handler: h})
}

func init() {
	register("startSession", handleStartSession)
	register("endSession", handleEndSession)

	register("createWorkspace", handleCreateWorkspace)
	register("updateWorkspace", handleUpdateWorkspace)
	register("destroyWorkspace", handleDestroyWorkspace)

	register("setPageGroups", handleSetPageGroups)
	register("addPageGroups", handleAddPageGroups)
	register("removePageGroup", handleRemovePageGroup)

	register("createPlainWindow", handleCreatePlainWindow)
	register("updatePlainWindow", handleUpdatePlainWindow)
	register("destroyPlainWindow", handleDestroyPlainWindow)

	register("createWidget", handleCreateWidget)
	register("updateWidget", handleUpdateWidget)
	register("destroyWidget", handleDestroyWidget)

	register("load", handleLoad)
	register("loadFromUrl", handleLoadFromURL)

	register("writeBegin", handleWriteBegin)
	register("writeMore", handleWriteMore)
	register("writeEnd", handleWriteEnd)

	register("register", handleRegisterCoroutine)
	register("revoke", handleRevokeCoroutine)

	register("append", handleDOMMutation("append"))
	register("prepend", handleDOMMutation("prepend"))
	register("insertAfter", handleDOMMutation("insertAfter"))
	register("insertBefore", handleDOMMutation("insertBefore"))
	register("displace", handleDOMMutation("displace"))
	register("clear", handleDOMMutation("clear"))
	register("erase", handleDOMMutation("erase"))
	register("update", handleDOMMutation("update"))

	register("callMethod", handleCallMethod)
	register("getProperty", handleGetProperty)
	register("setProperty", handleSetProperty)

	sort.Slice(table, func(i, j int) bool { return table[i].operation < table[j].operation })
}

// lookup finds the handler for operation via binary search over the
// sorted table, per spec.md §4.F.
func lookup(operation string) (Handler, bool) {
	i := sort.Search(len(table), func(i int) bool { return table[i].operation >= operation })
	if i < len(table) && table[i].operation == operation {
		return table[i].handler, true
	}
	return nil, false
}

// Dispatch looks up and invokes the handler for req.Operation, translating
// an unknown operation to BadRequest and a known-but-nil handler to
// NotImplemented, per spec.md §4.F.
func Dispatch(ctx *Context, req *message.Message) Result {
	h, ok := lookup(req.Operation)
	if !ok {
		return errorResult(req, message.RetBadRequest)
	}
	if h == nil {
		return errorResult(req, message.RetNotImplemented)
	}
	res, err := h(ctx, req)
	if err == nil {
		return res
	}
	return errorResult(req, classifyError(err))
}

func classifyError(err error) message.RetCode {
	switch {
	case errors.Is(err, model.ErrInvalidIdentifier):
		return message.RetBadRequest
	case errors.Is(err, model.ErrAlreadySet):
		return message.RetConflict
	case errors.Is(err, model.ErrLayouterAbsent):
		return message.RetPreconditionFailed
	case errors.Is(err, session.ErrUnknownHandle):
		return message.RetNotFound
	case errors.Is(err, session.ErrWrongHandleKind):
		return message.RetBadRequest
	case errors.Is(err, session.ErrRequestIDInUse):
		return message.RetConflict
	case errors.Is(err, backend.ErrNotImplemented):
		return message.RetNotImplemented
	default:
		return message.RetInternalServerError
	}
}

// errorResult builds an immediate error response for req, honoring the
// "no response for requestId == -" invariant.
func errorResult(req *message.Message, code message.RetCode) Result {
	if !req.WantsResponse() {
		return Result{}
	}
	return Result{Resp: &message.Message{
		Type:      message.TypeResponse,
		RequestID: req.RequestID,
		RetCode:   code,
	}}
}

// okResult builds an immediate success response carrying resultValue and
// an optional plaintext body.
func okResult(req *message.Message, resultValue model.Handle, plaintext string) Result {
	if !req.WantsResponse() {
		return Result{}
	}
	resp := &message.Message{
		Type:        message.TypeResponse,
		RequestID:   req.RequestID,
		RetCode:     message.RetOK,
		ResultValue: uint64(resultValue),
	}
	if plaintext != "" {
		resp.DataType = message.DataPlain
		resp.Data = []byte(plaintext)
	}
	return Result{Resp: resp}
}
