package dispatch

import (
	"encoding/json"

	"github.com/HVML/purcmc-renderer/internal/events"
	"github.com/HVML/purcmc-renderer/internal/message"
	"github.com/HVML/purcmc-renderer/internal/model"
	"github.com/HVML/purcmc-renderer/internal/session"
)

// startSessionBody is the JSON shape of a startSession request payload,
// per spec.md §4.E.
type startSessionBody struct {
	ProtoName             string `json:"protocolName"`
	ProtoVersion          int    `json:"protocolVersion"`
	Host                  string `json:"host"`
	App                   string `json:"app"`
	Runner                string `json:"runner"`
	Label                 string `json:"label"`
	Description           string `json:"description"`
	IconURL               string `json:"iconUrl"`
	Signature             string `json:"signature"`
	AllowSwitchingRdr     bool   `json:"allowSwitchingRdr"`
	AllowScalingByDensity bool   `json:"allowScalingByDensity"`
	Duplicate             bool   `json:"duplicate"`
}

func handleStartSession(ctx *Context, req *message.Message) (Result, error) {
	var body startSessionBody
	if err := json.Unmarshal(req.Data, &body); err != nil {
		return errorResult(req, message.RetBadRequest), nil
	}

	out := ctx.Handshake.Begin(ctx.Endpoint, session.StartSessionRequest{
		ProtoName: body.ProtoName, ProtoVersion: body.ProtoVersion,
		Host: body.Host, App: body.App, Runner: body.Runner,
		Label: body.Label, Description: body.Description,
		IconURL: body.IconURL, Signature: body.Signature,
		AllowSwitchingRdr: body.AllowSwitchingRdr, AllowScalingByDensity: body.AllowScalingByDensity,
		Duplicate: body.Duplicate,
	}, req.RequestID, ctx.Now)

	if out.Deferred {
		return Result{}, nil
	}
	if out.RetCode != message.RetOK {
		return errorResult(req, out.RetCode), nil
	}
	ctx.Session = out.Session
	return okResult(req, out.Session.Handle, ""), nil
}

func handleEndSession(ctx *Context, req *message.Message) (Result, error) {
	if ctx.Session == nil {
		return Result{}, nil
	}
	if ctx.Workspace != nil {
		notices := ctx.Workspace.RevokeSessionEverywhere(ctx.Session.Handle)
		for _, n := range notices {
			if ctx.EventSink == nil {
				continue
			}
			page, ok := ctx.Workspace.LookupPage(n.Page)
			if !ok {
				continue
			}
			target := message.TargetPlainWindow
			if page.Variant == model.PageWidget {
				target = message.TargetWidget
			}
			ctx.EventSink(n.Owner.Session, events.ReloadPage(target, uint64(page.ContainerHandle), ctx.Session.URIPrefix()))
		}
	}
	ctx.Session.Close()
	ctx.Sessions.Delete(ctx.Session.Handle)
	return Result{}, nil
}
