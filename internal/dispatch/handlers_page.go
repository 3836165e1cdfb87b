package dispatch

import (
	"encoding/json"
	"sort"

	"github.com/HVML/purcmc-renderer/internal/message"
	"github.com/HVML/purcmc-renderer/internal/model"
)

const (
	prefixPlainWindow = "plainwin"
	prefixWidget      = "widget"
)

// resolvePageID turns an element value ("name", "name@group", or a
// reserved name) into the concrete PageID it names. The name must pass
// model.ValidIdentifier. Reserved page names are resolved by the
// workspace's installed Layouter; with none installed they fail with
// model.ErrLayouterAbsent.
func resolvePageID(ctx *Context, prefix, value string) (model.PageID, error) {
	name, group := parseNameGroup(value)
	if !model.ValidIdentifier(name) {
		return "", model.ErrInvalidIdentifier
	}
	if !model.ReservedPageNames[name] {
		return model.MakePageID(prefix, name, group), nil
	}
	l := ctx.Workspace.GetLayouter()
	if l == nil {
		return "", model.ErrLayouterAbsent
	}
	candidates := ctx.Workspace.PagesInGroup(group)
	return l.ResolveReserved(group, name, candidates)
}

func handleCreatePlainWindow(ctx *Context, req *message.Message) (Result, error) {
	name, group := parseNameGroup(req.Element.Value)
	id, err := resolvePageID(ctx, prefixPlainWindow, req.Element.Value)
	if err != nil {
		return Result{}, err
	}

	if existing, ok := ctx.Workspace.LookupPage(id); ok {
		return okResult(req, existing.WebView.Handle, ""), nil
	}

	win, view, err := ctx.Backend.CreatePlainWindow(ctx.Workspace, name, group, req.Data)
	if err != nil {
		return Result{}, err
	}
	page := &model.Page{
		ID: id, Variant: model.PagePlainWindow,
		ContainerHandle: win, ContainerKind: model.HandlePlainWin,
		WebView: model.WebView{Handle: view},
		Name:    name, Group: group,
	}
	page, created := ctx.Workspace.CreatePage(id, page)
	if created {
		ctx.Session.RegisterHandle(win, model.HandlePlainWin)
		ctx.Session.RegisterHandle(view, model.HandleWebView)
		if ctx.Pipeline != nil {
			ctx.Pipeline.Subscribe(view, ctx.Session, ctx.Session.URIPrefix(), win)
		}
	}
	return okResult(req, page.WebView.Handle, ""), nil
}

func handleUpdatePlainWindow(ctx *Context, req *message.Message) (Result, error) {
	win := model.Handle(req.TargetValue)
	if _, err := ctx.Session.ValidateHandle(win, model.HandlePlainWin); err != nil {
		return Result{}, err
	}
	err := applyUpdate(req, func(property string, data []byte) error {
		return ctx.Backend.UpdatePlainWindow(win, property, data)
	})
	if err != nil {
		return Result{}, err
	}
	return okResult(req, 0, ""), nil
}

func handleDestroyPlainWindow(ctx *Context, req *message.Message) (Result, error) {
	return destroyContainer(ctx, req, model.HandlePlainWin, ctx.Backend.DestroyPlainWindow)
}

func handleCreateWidget(ctx *Context, req *message.Message) (Result, error) {
	name, group := parseNameGroup(req.Element.Value)
	id, err := resolvePageID(ctx, prefixWidget, req.Element.Value)
	if err != nil {
		return Result{}, err
	}

	if existing, ok := ctx.Workspace.LookupPage(id); ok {
		return okResult(req, existing.WebView.Handle, ""), nil
	}

	container := model.Handle(req.TargetValue)
	widget, view, err := ctx.Backend.CreateWidget(ctx.Workspace, container, name, group, req.Data)
	if err != nil {
		return Result{}, err
	}
	page := &model.Page{
		ID: id, Variant: model.PageWidget,
		ContainerHandle: widget, ContainerKind: model.HandlePaneOrTab,
		WebView: model.WebView{Handle: view},
		Name:    name, Group: group,
	}
	page, created := ctx.Workspace.CreatePage(id, page)
	if created {
		ctx.Session.RegisterHandle(widget, model.HandlePaneOrTab)
		ctx.Session.RegisterHandle(view, model.HandleWebView)
		if ctx.Pipeline != nil {
			ctx.Pipeline.Subscribe(view, ctx.Session, ctx.Session.URIPrefix(), widget)
		}
	}
	return okResult(req, page.WebView.Handle, ""), nil
}

func handleUpdateWidget(ctx *Context, req *message.Message) (Result, error) {
	widget := model.Handle(req.TargetValue)
	if _, err := ctx.Session.ValidateHandle(widget, model.HandlePaneOrTab); err != nil {
		return Result{}, err
	}
	err := applyUpdate(req, func(property string, data []byte) error {
		return ctx.Backend.UpdateWidget(widget, property, data)
	})
	if err != nil {
		return Result{}, err
	}
	return okResult(req, 0, ""), nil
}

// applyUpdate drives one or more backend property updates from an
// updatePlainWindow/updateWidget request. A request naming an explicit
// `property` header updates just that one key, as before. A request with
// no `property` header but a JSON object body applies every key in the
// object, in alphabetical order, stopping at the first key whose apply
// call errors — the Open Question spec.md §9 resolves as "iterate in a
// deterministic order (recommend: alphabetical) and stop on the first
// error", grounded on original_source/source/bin/gtk/PurcmcCallbacks.c's
// gtk_update_plainwin multi-key body handling.
func applyUpdate(req *message.Message, apply func(property string, data []byte) error) error {
	if req.Property != "" || req.DataType != message.DataJSON {
		return apply(req.Property, req.Data)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(req.Data, &obj); err != nil {
		return apply(req.Property, req.Data)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := apply(k, obj[k]); err != nil {
			return err
		}
	}
	return nil
}

func handleDestroyWidget(ctx *Context, req *message.Message) (Result, error) {
	return destroyContainer(ctx, req, model.HandlePaneOrTab, ctx.Backend.DestroyWidget)
}

// destroyContainer is the shared destroy path for plain windows and
// widgets: validate the handle, call the backend, de-register both the
// container and its web view, and drop the page-owner stack.
func destroyContainer(ctx *Context, req *message.Message, kind model.HandleKind, destroy func(model.Handle) error) (Result, error) {
	container := model.Handle(req.TargetValue)
	if _, err := ctx.Session.ValidateHandle(container, kind); err != nil {
		return Result{}, err
	}
	if err := destroy(container); err != nil {
		return Result{}, err
	}

	if page, pageID, ok := ctx.Workspace.LookupPageByContainer(container); ok {
		if ctx.Pipeline != nil {
			ctx.Pipeline.Unsubscribe(page.WebView.Handle)
		}
		ctx.Session.ForgetHandle(page.WebView.Handle)
		ctx.Workspace.DestroyPage(pageID)
	}
	ctx.Session.ForgetHandle(container)
	return okResult(req, 0, ""), nil
}
