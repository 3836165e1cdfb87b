package dispatch

import (
	"encoding/json"

	"github.com/HVML/purcmc-renderer/internal/domsink"
	"github.com/HVML/purcmc-renderer/internal/message"
	"github.com/HVML/purcmc-renderer/internal/model"
	"github.com/HVML/purcmc-renderer/internal/session"
)

// domTargetWebView resolves the web view backing a DOM-addressed request:
// targetValue names the page's web view handle directly, per spec.md §4.H.
func domTargetWebView(ctx *Context, req *message.Message) (model.Handle, error) {
	view := model.Handle(req.TargetValue)
	if _, err := ctx.Session.ValidateHandle(view, model.HandleWebView); err != nil {
		return 0, err
	}
	return view, nil
}

// handleDOMMutation builds the handler for one of the eight DOM-mutation
// operations (append, prepend, insertAfter, insertBefore, displace, clear,
// erase, update). Per spec.md §4.F/§4.H, a mutation is marshaled to the
// rendering subprocess and its response resolved asynchronously, so the
// handler installs a pending-response slot (unless requestId == "-") before
// returning Result{} to let the event loop continue.
func handleDOMMutation(op string) Handler {
	return func(ctx *Context, req *message.Message) (Result, error) {
		view, err := domTargetWebView(ctx, req)
		if err != nil {
			return Result{}, err
		}
		env := domsink.MutationEnvelope{
			Operation:   op,
			RequestID:   req.RequestID,
			ElementType: string(req.Element.Kind),
			Element:     req.Element.Value,
			Property:    req.Property,
			DataType:    string(req.DataType),
			Data:        string(req.Data),
		}
		if req.WantsResponse() {
			if err := ctx.Session.PendResponse(req.RequestID, session.PendingResponse{ResultValue: model.Handle(req.TargetValue)}); err != nil {
				return Result{}, err
			}
		}
		if ctx.Pipeline == nil {
			return Result{}, nil
		}
		if err := ctx.Pipeline.SendMutation(view, env); err != nil {
			ctx.Session.ResolvePending(req.RequestID)
			return Result{}, err
		}
		return Result{}, nil
	}
}

func handleCallMethod(ctx *Context, req *message.Message) (Result, error) {
	var body struct {
		Method string          `json:"method"`
		Arg    json.RawMessage `json:"arg"`
	}
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &body); err != nil {
			return errorResult(req, message.RetBadRequest), nil
		}
	}

	if req.Target == message.TargetSession {
		result, err := ctx.Backend.SessionCallMethod(ctx.Session.Handle, body.Method, body.Arg)
		if err != nil {
			return Result{}, err
		}
		return jsonResult(req, ctx.Session.Handle, result), nil
	}

	view, err := domTargetWebView(ctx, req)
	if err != nil {
		return Result{}, err
	}
	env := domsink.MethodEnvelope{
		Operation: "callMethod",
		RequestID: req.RequestID,
		Element:   req.Element.Value,
		Method:    body.Method,
		Arg:       body.Arg,
	}
	if req.WantsResponse() {
		if err := ctx.Session.PendResponse(req.RequestID, session.PendingResponse{ResultValue: model.Handle(req.TargetValue)}); err != nil {
			return Result{}, err
		}
	}
	if ctx.Pipeline == nil {
		return Result{}, nil
	}
	if err := ctx.Pipeline.SendMethod(view, env); err != nil {
		ctx.Session.ResolvePending(req.RequestID)
		return Result{}, err
	}
	return Result{}, nil
}

func handleGetProperty(ctx *Context, req *message.Message) (Result, error) {
	if req.Target == message.TargetSession {
		value, err := ctx.Backend.SessionGetProperty(ctx.Session.Handle, req.Property)
		if err != nil {
			return Result{}, err
		}
		return jsonResult(req, ctx.Session.Handle, value), nil
	}

	view, err := domTargetWebView(ctx, req)
	if err != nil {
		return Result{}, err
	}
	env := domsink.PropertyEnvelope{
		Operation: "getProperty",
		RequestID: req.RequestID,
		Element:   req.Element.Value,
		Property:  req.Property,
	}
	if req.WantsResponse() {
		if err := ctx.Session.PendResponse(req.RequestID, session.PendingResponse{ResultValue: model.Handle(req.TargetValue)}); err != nil {
			return Result{}, err
		}
	}
	if ctx.Pipeline == nil {
		return Result{}, nil
	}
	if err := ctx.Pipeline.SendProperty(view, env); err != nil {
		ctx.Session.ResolvePending(req.RequestID)
		return Result{}, err
	}
	return Result{}, nil
}

// handleSetProperty mirrors handleGetProperty, carrying the new value in
// place of getProperty's empty value field. Per spec.md §4.H, requestId ==
// "-" is common here (fire-and-forget style assignment), in which case no
// pending-response slot is installed and no reply is ever expected.
func handleSetProperty(ctx *Context, req *message.Message) (Result, error) {
	if req.Target == message.TargetSession {
		if err := ctx.Backend.SessionSetProperty(ctx.Session.Handle, req.Property, req.Data); err != nil {
			return Result{}, err
		}
		return jsonResult(req, ctx.Session.Handle, nil), nil
	}

	view, err := domTargetWebView(ctx, req)
	if err != nil {
		return Result{}, err
	}
	env := domsink.PropertyEnvelope{
		Operation: "setProperty",
		RequestID: req.RequestID,
		Element:   req.Element.Value,
		Property:  req.Property,
		Value:     json.RawMessage(req.Data),
	}
	if req.WantsResponse() {
		if err := ctx.Session.PendResponse(req.RequestID, session.PendingResponse{ResultValue: model.Handle(req.TargetValue)}); err != nil {
			return Result{}, err
		}
	}
	if ctx.Pipeline == nil {
		return Result{}, nil
	}
	if err := ctx.Pipeline.SendProperty(view, env); err != nil {
		ctx.Session.ResolvePending(req.RequestID)
		return Result{}, err
	}
	return Result{}, nil
}
