package dispatch

import (
	"github.com/HVML/purcmc-renderer/internal/message"
	"github.com/HVML/purcmc-renderer/internal/model"
)

func handleCreateWorkspace(ctx *Context, req *message.Message) (Result, error) {
	if err := ctx.Backend.CreateWorkspace(ctx.Workspace.Host, ctx.Workspace.App, req.Data); err != nil {
		return Result{}, err
	}
	return okResult(req, 0, ""), nil
}

func handleUpdateWorkspace(ctx *Context, req *message.Message) (Result, error) {
	if err := ctx.Backend.UpdateWorkspace(ctx.Workspace.Host, ctx.Workspace.App, req.Property, req.Data); err != nil {
		return Result{}, err
	}
	return okResult(req, 0, ""), nil
}

func handleDestroyWorkspace(ctx *Context, req *message.Message) (Result, error) {
	if err := ctx.Backend.DestroyWorkspace(ctx.Workspace.Host, ctx.Workspace.App); err != nil {
		return Result{}, err
	}
	return okResult(req, 0, ""), nil
}

func handleSetPageGroups(ctx *Context, req *message.Message) (Result, error) {
	layouter, err := ctx.NewLayouter(string(req.Data))
	if err != nil {
		return errorResult(req, message.RetBadRequest), nil
	}
	if err := ctx.Workspace.SetLayouter(layouter); err != nil {
		return Result{}, err
	}
	return okResult(req, 0, ""), nil
}

func handleAddPageGroups(ctx *Context, req *message.Message) (Result, error) {
	l := ctx.Workspace.GetLayouter()
	if l == nil {
		return Result{}, model.ErrLayouterAbsent
	}
	if err := l.AddPageGroups(string(req.Data)); err != nil {
		return errorResult(req, message.RetBadRequest), nil
	}
	return okResult(req, 0, ""), nil
}

func handleRemovePageGroup(ctx *Context, req *message.Message) (Result, error) {
	l := ctx.Workspace.GetLayouter()
	if l == nil {
		return Result{}, model.ErrLayouterAbsent
	}
	if err := l.RemovePageGroup(req.Element.Value); err != nil {
		return errorResult(req, message.RetNotFound), nil
	}
	return okResult(req, 0, ""), nil
}
