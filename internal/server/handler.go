package server

import (
	"context"
	"encoding/json"

	"github.com/lotas/tabspeicher/internal/applog"
	"github.com/lotas/tabspeicher/internal/types"
)

// dispatch runs one surface action and builds its response. Mutations
// publish to the hub only after the store has confirmed the write, so
// surfaces never refresh into stale data.
func (s *Server) dispatch(ctx context.Context, conn *surfaceConn, msg IncomingMsg) Response {
	switch msg.Action {
	case "saveCurrentTab":
		return s.saveCurrentTab(ctx, conn, msg)
	case "saveAllTabs":
		return s.saveAllTabs(ctx, conn, msg)
	case "deleteTab":
		return s.deleteTab(ctx, msg)
	case "exportTabsToFile":
		return s.exportTabs(ctx)
	case "setStorageFile":
		return s.setStorageFile(ctx, msg)
	case "createStorageFile":
		return s.createStorageFile(ctx)
	case "listTabs":
		return s.listTabs(ctx)
	default:
		return Response{Success: false, Error: "unknown action"}
	}
}

func fail(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

func (s *Server) saveCurrentTab(ctx context.Context, conn *surfaceConn, msg IncomingMsg) Response {
	if len(msg.Tab) == 0 {
		return Response{Success: false, Error: "no tab data provided"}
	}
	var tab types.WireTab
	if err := json.Unmarshal(msg.Tab, &tab); err != nil {
		return fail(err)
	}
	if err := s.deps.Capture.One(ctx, tab, msg.CloseAfterSave, conn); err != nil {
		return fail(err)
	}
	s.deps.Hub.Publish()
	s.maybeShowTabList(conn, msg)
	return Response{Success: true, Count: 1}
}

func (s *Server) saveAllTabs(ctx context.Context, conn *surfaceConn, msg IncomingMsg) Response {
	var tabs []types.WireTab
	if err := json.Unmarshal(msg.Tabs, &tabs); err != nil {
		return fail(err)
	}
	count, err := s.deps.Capture.All(ctx, tabs, msg.CloseAfterSave, conn)
	if err != nil {
		return fail(err)
	}
	if count > 0 {
		s.deps.Hub.Publish()
	}
	s.maybeShowTabList(conn, msg)
	return Response{Success: true, Count: count}
}

func (s *Server) deleteTab(ctx context.Context, msg IncomingMsg) Response {
	if err := s.deps.Store.Remove(ctx, msg.TabID); err != nil {
		return fail(err)
	}
	s.deps.Hub.Publish()
	return Response{Success: true}
}

// exportTabs is deliberately quiet about failure: an interrupted or
// timed-out file save is logged by the exchanger, not shown as an error.
func (s *Server) exportTabs(ctx context.Context) Response {
	path, ok := s.deps.Exchange.ExportDetached(ctx)
	return Response{Success: ok, Path: path}
}

func (s *Server) setStorageFile(ctx context.Context, msg IncomingMsg) Response {
	if msg.FileContent == "" {
		return Response{Success: false, Error: "no file content provided"}
	}
	count, err := s.deps.Exchange.ImportReplace(ctx, []byte(msg.FileContent), msg.Filename)
	if err != nil {
		return fail(err)
	}
	s.deps.Hub.Publish()
	return Response{Success: true, Count: count}
}

func (s *Server) createStorageFile(ctx context.Context) Response {
	path, err := s.deps.Exchange.CreateBlank(ctx)
	if err != nil {
		return fail(err)
	}
	s.deps.Hub.Publish()
	return Response{Success: true, Path: path}
}

func (s *Server) listTabs(ctx context.Context) Response {
	records, err := s.deps.Store.GetAll(ctx)
	if err != nil {
		return fail(err)
	}
	if records == nil {
		records = []types.Record{}
	}
	return Response{Success: true, Count: len(records), Tabs: records}
}

// maybeShowTabList asks the requesting surface to open its list page.
func (s *Server) maybeShowTabList(conn *surfaceConn, msg IncomingMsg) {
	if !msg.ShowTabList {
		return
	}
	if err := conn.send(Command{Action: "showTabList"}); err != nil {
		applog.Error("ws.showtablist", err)
	}
}
