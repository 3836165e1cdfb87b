package dispatch

import (
	"strconv"

	"github.com/HVML/purcmc-renderer/internal/domsink"
	"github.com/HVML/purcmc-renderer/internal/events"
	"github.com/HVML/purcmc-renderer/internal/message"
	"github.com/HVML/purcmc-renderer/internal/model"
	"github.com/HVML/purcmc-renderer/internal/session"
)

// coroutineHandle extracts the coroutine handle a load/loadFromUrl/
// writeBegin/register/revoke request carries in its element designator
// (ElementHandle, hex-encoded value), per spec.md §3's handle-form element
// encoding.
func coroutineHandle(req *message.Message) (uint64, error) {
	v, err := strconv.ParseUint(req.Element.Value, 16, 64)
	if err != nil {
		return 0, message.ErrMalformed
	}
	return v, nil
}

// assignOwnerAndReport is shared by load/loadFromUrl/writeBegin/register:
// it pushes (session, coroutine) onto the target page's owner stack and
// either reports a same-session suppression in the response body or
// posts a suppressPage event cross-session, per spec.md §4.G and
// SUPPLEMENTED FEATURES #4.
func assignOwnerAndReport(ctx *Context, req *message.Message, page *model.Page, coroutine uint64) (Result, error) {
	suppressed, had, ok := ctx.Workspace.AssignOwner(page.ID, model.OwnerEntry{Session: ctx.Session.Handle, Coroutine: coroutine})
	if !ok {
		return Result{}, session.ErrUnknownHandle
	}
	if !had {
		return okResult(req, page.WebView.Handle, ""), nil
	}
	if suppressed.Session == ctx.Session.Handle {
		return okResult(req, page.WebView.Handle, strconv.FormatUint(suppressed.Coroutine, 16)), nil
	}
	if ctx.EventSink != nil {
		target := message.TargetPlainWindow
		if page.Variant == model.PageWidget {
			target = message.TargetWidget
		}
		ctx.EventSink(suppressed.Session, events.SuppressPage(target, uint64(page.ContainerHandle), ctx.Session.URIPrefix()))
	}
	return okResult(req, page.WebView.Handle, ""), nil
}

func targetPage(ctx *Context, req *message.Message, kind model.HandleKind) (*model.Page, error) {
	container := model.Handle(req.TargetValue)
	if _, err := ctx.Session.ValidateHandle(container, kind); err != nil {
		return nil, err
	}
	page, _, ok := ctx.Workspace.LookupPageByContainer(container)
	if !ok {
		return nil, session.ErrUnknownHandle
	}
	return page, nil
}

func containerKindForTarget(target message.Target) model.HandleKind {
	if target == message.TargetWidget {
		return model.HandlePaneOrTab
	}
	return model.HandlePlainWin
}

func mutationForLoad(op string, req *message.Message) domsink.MutationEnvelope {
	return domsink.MutationEnvelope{
		Operation: op,
		RequestID: message.NoResponseRequestID,
		DataType:  string(req.DataType),
		Data:      string(req.Data),
	}
}

func handleLoad(ctx *Context, req *message.Message) (Result, error) {
	page, err := targetPage(ctx, req, containerKindForTarget(req.Target))
	if err != nil {
		return Result{}, err
	}
	coroutine, err := coroutineHandle(req)
	if err != nil {
		return errorResult(req, message.RetBadRequest), nil
	}
	if ctx.Pipeline != nil {
		if err := ctx.Pipeline.SendMutation(page.WebView.Handle, mutationForLoad("load", req)); err != nil {
			return Result{}, err
		}
	}
	return assignOwnerAndReport(ctx, req, page, coroutine)
}

func handleLoadFromURL(ctx *Context, req *message.Message) (Result, error) {
	page, err := targetPage(ctx, req, containerKindForTarget(req.Target))
	if err != nil {
		return Result{}, err
	}
	coroutine, err := coroutineHandle(req)
	if err != nil {
		return errorResult(req, message.RetBadRequest), nil
	}
	if ctx.Pipeline != nil {
		if err := ctx.Pipeline.SendMutation(page.WebView.Handle, mutationForLoad("loadFromUrl", req)); err != nil {
			return Result{}, err
		}
	}
	return assignOwnerAndReport(ctx, req, page, coroutine)
}

func handleWriteBegin(ctx *Context, req *message.Message) (Result, error) {
	page, err := targetPage(ctx, req, containerKindForTarget(req.Target))
	if err != nil {
		return Result{}, err
	}
	coroutine, err := coroutineHandle(req)
	if err != nil {
		return errorResult(req, message.RetBadRequest), nil
	}
	if ctx.Pipeline != nil {
		if err := ctx.Pipeline.SendMutation(page.WebView.Handle, mutationForLoad("writeBegin", req)); err != nil {
			return Result{}, err
		}
	}
	return assignOwnerAndReport(ctx, req, page, coroutine)
}

func handleWriteMore(ctx *Context, req *message.Message) (Result, error) {
	page, err := targetPage(ctx, req, containerKindForTarget(req.Target))
	if err != nil {
		return Result{}, err
	}
	if ctx.Pipeline != nil {
		if err := ctx.Pipeline.SendMutation(page.WebView.Handle, mutationForLoad("writeMore", req)); err != nil {
			return Result{}, err
		}
	}
	return okResult(req, page.WebView.Handle, ""), nil
}

func handleWriteEnd(ctx *Context, req *message.Message) (Result, error) {
	page, err := targetPage(ctx, req, containerKindForTarget(req.Target))
	if err != nil {
		return Result{}, err
	}
	if ctx.Pipeline != nil {
		if err := ctx.Pipeline.SendMutation(page.WebView.Handle, mutationForLoad("writeEnd", req)); err != nil {
			return Result{}, err
		}
	}
	return okResult(req, page.WebView.Handle, ""), nil
}

func handleRegisterCoroutine(ctx *Context, req *message.Message) (Result, error) {
	page, err := targetPage(ctx, req, containerKindForTarget(req.Target))
	if err != nil {
		return Result{}, err
	}
	coroutine, err := coroutineHandle(req)
	if err != nil {
		return errorResult(req, message.RetBadRequest), nil
	}
	return assignOwnerAndReport(ctx, req, page, coroutine)
}

func handleRevokeCoroutine(ctx *Context, req *message.Message) (Result, error) {
	page, err := targetPage(ctx, req, containerKindForTarget(req.Target))
	if err != nil {
		return Result{}, err
	}
	coroutine, err := coroutineHandle(req)
	if err != nil {
		return errorResult(req, message.RetBadRequest), nil
	}
	stack, ok := ctx.Workspace.OwnerStackFor(page.ID)
	if !ok {
		return Result{}, session.ErrUnknownHandle
	}
	newTop, reload := stack.Revoke(model.OwnerEntry{Session: ctx.Session.Handle, Coroutine: coroutine})
	if reload && ctx.EventSink != nil && newTop.Session != ctx.Session.Handle {
		target := message.TargetPlainWindow
		if page.Variant == model.PageWidget {
			target = message.TargetWidget
		}
		ctx.EventSink(newTop.Session, events.ReloadPage(target, uint64(page.ContainerHandle), ctx.Session.URIPrefix()))
	}
	return okResult(req, page.WebView.Handle, ""), nil
}
