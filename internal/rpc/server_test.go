// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/wingedpig/unbound/internal/agentproc"
	"github.com/wingedpig/unbound/internal/authfsm"
	"github.com/wingedpig/unbound/internal/engine"
	"github.com/wingedpig/unbound/internal/store"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	eng, err := engine.InMemory(nil)
	if err != nil {
		t.Fatalf("engine.InMemory: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return Deps{
		Engine:   eng,
		Registry: agentproc.NewRegistry(),
		Auth:     authfsm.New(),
	}
}

func TestDispatchMethodNotFound(t *testing.T) {
	s := New()
	resp := s.dispatch(context.Background(), &Conn{ID: "c1"}, []byte(`{"id":1,"method":"nope"}`))
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method_not_found, got %+v", resp)
	}
}

func TestDispatchParseError(t *testing.T) {
	s := New()
	resp := s.dispatch(context.Background(), &Conn{ID: "c1"}, []byte(`not json`))
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Fatalf("expected parse_error, got %+v", resp)
	}
}

func TestHealthAndSessionLifecycle(t *testing.T) {
	deps := newTestDeps(t)
	s := New()
	RegisterAll(s, deps)
	conn := &Conn{ID: "c1"}

	resp := s.dispatch(context.Background(), conn, []byte(`{"id":1,"method":"health"}`))
	if resp.Error != nil {
		t.Fatalf("health: unexpected error %+v", resp.Error)
	}

	repo, err := deps.Engine.Store().CreateRepository("/tmp/repo", "repo", false)
	if err != nil {
		t.Fatalf("CreateRepository: %v", err)
	}

	createParams, _ := json.Marshal(map[string]string{"repository_id": repo.ID, "title": "t"})
	resp = s.dispatch(context.Background(), conn, rawRequest(2, "session.create", createParams))
	if resp.Error != nil {
		t.Fatalf("session.create: unexpected error %+v", resp.Error)
	}
	if resp.Result == nil {
		t.Fatal("session.create: expected a non-nil result")
	}

	listResp := s.dispatch(context.Background(), conn, []byte(`{"id":3,"method":"session.list"}`))
	if listResp.Error != nil {
		t.Fatalf("session.list: unexpected error %+v", listResp.Error)
	}
}

func TestRepositoryListAndRemove(t *testing.T) {
	deps := newTestDeps(t)
	s := New()
	RegisterAll(s, deps)
	conn := &Conn{ID: "c1"}

	repo, err := deps.Engine.Store().CreateRepository("/tmp/repo", "repo", false)
	if err != nil {
		t.Fatalf("CreateRepository: %v", err)
	}

	listResp := s.dispatch(context.Background(), conn, []byte(`{"id":1,"method":"repository.list"}`))
	if listResp.Error != nil {
		t.Fatalf("repository.list: unexpected error %+v", listResp.Error)
	}
	repos, ok := listResp.Result.([]*store.Repository)
	if !ok || len(repos) != 1 || repos[0].ID != repo.ID {
		t.Fatalf("repository.list: got %+v, want one entry for %s", listResp.Result, repo.ID)
	}

	removeParams, _ := json.Marshal(map[string]string{"repository_id": repo.ID})
	removeResp := s.dispatch(context.Background(), conn, rawRequest(2, "repository.remove", removeParams))
	if removeResp.Error != nil {
		t.Fatalf("repository.remove: unexpected error %+v", removeResp.Error)
	}

	if _, err := deps.Engine.Store().GetRepository(repo.ID); err == nil {
		t.Fatal("expected repository to be gone after repository.remove")
	}

	missingParams, _ := json.Marshal(map[string]string{"repository_id": repo.ID})
	missingResp := s.dispatch(context.Background(), conn, rawRequest(3, "repository.remove", missingParams))
	if missingResp.Error == nil || missingResp.Error.Code != CodeNotFound {
		t.Fatalf("repository.remove on missing id: got %+v, want not_found", missingResp.Error)
	}
}

func rawRequest(id int, method string, params json.RawMessage) []byte {
	req := Request{ID: json.RawMessage(strconv.Itoa(id)), Method: method, Params: params}
	b, _ := json.Marshal(req)
	return b
}
