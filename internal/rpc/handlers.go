package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/wingedpig/unbound/internal/agentproc"
	"github.com/wingedpig/unbound/internal/authfsm"
	"github.com/wingedpig/unbound/internal/engine"
	"github.com/wingedpig/unbound/internal/store"
	"github.com/wingedpig/unbound/internal/workspace"
)

// Deps is the set of daemon components the method surface dispatches
// into. Every field mirrors one of the SPEC_FULL.md components (C4, C6,
// C10, C13); handlers.go is the only file that is allowed to know about
// all of them at once.
type Deps struct {
	Engine   *engine.Engine
	Registry *agentproc.Registry
	Manager  *agentproc.Manager
	Auth     *authfsm.Machine
	Shutdown func()
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// RegisterAll binds every method named in spec.md §6 onto s.
func RegisterAll(s *Server, deps Deps) {
	s.Register("health", handleHealth)
	s.Register("shutdown", deps.handleShutdown)

	s.Register("auth.status", deps.handleAuthStatus)
	s.Register("auth.login", deps.handleAuthLogin)
	s.Register("auth.logout", deps.handleAuthLogout)

	s.Register("session.list", deps.handleSessionList)
	s.Register("session.create", deps.handleSessionCreate)
	s.Register("session.get", deps.handleSessionGet)
	s.Register("session.delete", deps.handleSessionDelete)
	s.Register("session.subscribe", deps.handleSessionSubscribe)
	s.Register("session.unsubscribe", deps.handleSessionUnsubscribe)

	s.Register("message.list", deps.handleMessageList)
	s.Register("message.send", deps.handleMessageSend)

	s.Register("repository.list", deps.handleRepositoryList)
	s.Register("repository.add", deps.handleRepositoryAdd)
	s.Register("repository.remove", deps.handleRepositoryRemove)
	s.Register("repository.list_files", deps.handleRepositoryListFiles)
	s.Register("repository.read_file", deps.handleRepositoryReadFile)
	s.Register("repository.read_file_slice", deps.handleRepositoryReadFileSlice)
	s.Register("repository.write_file", deps.handleRepositoryWriteFile)
	s.Register("repository.replace_file_range", deps.handleRepositoryReplaceFileRange)

	s.Register("claude.send", deps.handleClaudeSend)
	s.Register("claude.status", deps.handleClaudeStatus)
	s.Register("claude.stop", deps.handleClaudeStop)

	s.Register("git.status", deps.handleGitStatus)
	s.Register("git.diff_file", deps.handleGitDiffFile)
	s.Register("git.log", deps.handleGitLog)
	s.Register("git.branches", deps.handleGitBranches)
	s.Register("git.stage", deps.handleGitStage)
	s.Register("git.unstage", deps.handleGitUnstage)
	s.Register("git.discard", deps.handleGitDiscard)

	s.Register("terminal.run", deps.handleTerminalRun)
	s.Register("terminal.status", deps.handleTerminalStatus)
	s.Register("terminal.stop", deps.handleTerminalStop)
}

func handleHealth(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	return map[string]string{"status": "ok"}, nil
}

func (d Deps) handleShutdown(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	if d.Shutdown != nil {
		go d.Shutdown()
	}
	return map[string]string{"status": "shutting_down"}, nil
}

// --- auth.* -----------------------------------------------------------

func (d Deps) handleAuthStatus(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	return map[string]any{
		"state":          d.Auth.State().String(),
		"authenticated":  d.Auth.IsAuthenticated(),
	}, nil
}

type authLoginParams struct {
	Input string `json:"input"`
}

func (d Deps) handleAuthLogin(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p authLoginParams
	if err := decodeParams(params, &p); err != nil {
		return nil, NewError(CodeInvalidParams, "malformed params")
	}
	input, ok := authInputs[p.Input]
	if !ok {
		return nil, NewError(CodeInvalidParams, "unknown auth input: "+p.Input)
	}
	next, err := d.Auth.Apply(input)
	if err != nil {
		return nil, NewError(CodeConflict, err.Error())
	}
	return map[string]string{"state": next.String()}, nil
}

func (d Deps) handleAuthLogout(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	next, err := d.Auth.Apply(authfsm.LogoutRequested)
	if err != nil {
		return nil, NewError(CodeConflict, err.Error())
	}
	return map[string]string{"state": next.String()}, nil
}

var authInputs = map[string]authfsm.Input{
	"SessionDetected":  authfsm.SessionDetected,
	"LoginAttempt":     authfsm.LoginAttempt,
	"ValidateSession":  authfsm.ValidateSession,
	"NoSession":        authfsm.NoSession,
	"TokenNotExpired":  authfsm.TokenNotExpired,
	"SessionExpired":   authfsm.SessionExpired,
	"ServerVerified":   authfsm.ServerVerified,
	"ServerRejected":   authfsm.ServerRejected,
	"LoginSuccess":     authfsm.LoginSuccess,
	"LoginFailed":      authfsm.LoginFailed,
	"TokenExpired":     authfsm.TokenExpired,
	"LogoutRequested":  authfsm.LogoutRequested,
	"RefreshSuccess":   authfsm.RefreshSuccess,
	"RefreshRetry":     authfsm.RefreshRetry,
	"RefreshFailed":    authfsm.RefreshFailed,
	"LogoutComplete":   authfsm.LogoutComplete,
}

// --- session.* ----------------------------------------------------------

func (d Deps) handleSessionList(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	snap := d.Engine.Snapshot()
	ids := snap.Sessions()
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		sv, _ := snap.Session(id)
		out = append(out, map[string]any{
			"session_id":    id,
			"closed":        sv.Closed,
			"message_count": len(sv.Messages),
		})
	}
	return out, nil
}

type sessionCreateParams struct {
	RepositoryID string `json:"repository_id"`
	Title        string `json:"title"`
}

func (d Deps) handleSessionCreate(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p sessionCreateParams
	if err := decodeParams(params, &p); err != nil || p.RepositoryID == "" {
		return nil, NewError(CodeInvalidParams, "repository_id is required")
	}
	sess, err := d.Engine.CreateSession(p.RepositoryID, p.Title)
	if err != nil {
		return nil, fmt.Errorf("session.create: %w", err)
	}
	return sess, nil
}

type sessionIDParams struct {
	SessionID string `json:"session_id"`
}

func (d Deps) handleSessionGet(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p sessionIDParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	sv, ok := d.Engine.Snapshot().Session(p.SessionID)
	if !ok {
		return nil, NewError(CodeNotFound, "session not found")
	}
	return sv, nil
}

func (d Deps) handleSessionDelete(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p sessionIDParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	if err := d.Engine.DeleteSession(p.SessionID); err != nil {
		return nil, fmt.Errorf("session.delete: %w", err)
	}
	return map[string]string{"status": "deleted"}, nil
}

// subKey namespaces a connection's stashed live subscriptions by session.
func subKey(sessionID string) string { return "sub:" + sessionID }

func (d Deps) handleSessionSubscribe(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p sessionIDParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	sub := d.Engine.Subscribe(p.SessionID)
	conn.Set(subKey(p.SessionID), sub)
	return map[string]string{"status": "subscribed"}, nil
}

func (d Deps) handleSessionUnsubscribe(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p sessionIDParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	v, ok := conn.Get(subKey(p.SessionID))
	if !ok {
		return map[string]string{"status": "not_subscribed"}, nil
	}
	d.Engine.Unsubscribe(p.SessionID, v.(*engine.LiveSubscription))
	return map[string]string{"status": "unsubscribed"}, nil
}

// --- message.* ----------------------------------------------------------

func (d Deps) handleMessageList(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p sessionIDParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	sv, ok := d.Engine.Snapshot().Session(p.SessionID)
	if !ok {
		return nil, NewError(CodeNotFound, "session not found")
	}
	delta := d.Engine.Delta(p.SessionID)
	return append(append([]store.Message{}, sv.Messages...), delta.Messages...), nil
}

type messageSendParams struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

func (d Deps) handleMessageSend(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p messageSendParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	msg, err := d.Engine.Append(p.SessionID, []byte(p.Content))
	if err != nil {
		if err == engine.ErrSessionNotFound {
			return nil, NewError(CodeNotFound, "session not found")
		}
		if err == engine.ErrSessionClosed {
			return nil, NewError(CodeConflict, "session is closed")
		}
		return nil, fmt.Errorf("message.send: %w", err)
	}
	return msg, nil
}

// --- repository.* ---------------------------------------------------------
// Repository handlers operate on the plain filesystem via the session's
// resolved working directory (C13), the same "resolve, then os/*" shape
// the teacher's internal/worktree.Manager uses for worktree-relative paths.

type repositoryAddParams struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

func (d Deps) handleRepositoryList(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	repos, err := d.Engine.Store().ListRepositories()
	if err != nil {
		return nil, fmt.Errorf("repository.list: %w", err)
	}
	return repos, nil
}

func (d Deps) handleRepositoryAdd(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p repositoryAddParams
	if err := decodeParams(params, &p); err != nil || p.Path == "" {
		return nil, NewError(CodeInvalidParams, "path is required")
	}
	repo, err := d.Engine.Store().CreateRepository(p.Path, p.Name, isGitRepo(p.Path))
	if err != nil {
		return nil, fmt.Errorf("repository.add: %w", err)
	}
	return repo, nil
}

func isGitRepo(path string) bool {
	cmd := exec.Command("git", "-C", path, "rev-parse", "--git-dir")
	return cmd.Run() == nil
}

type repositoryIDParams struct {
	RepositoryID string `json:"repository_id"`
}

func (d Deps) handleRepositoryRemove(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p repositoryIDParams
	if err := decodeParams(params, &p); err != nil || p.RepositoryID == "" {
		return nil, NewError(CodeInvalidParams, "repository_id is required")
	}
	if _, err := d.Engine.Store().GetRepository(p.RepositoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewError(CodeNotFound, "repository not found")
		}
		return nil, fmt.Errorf("repository.remove: %w", err)
	}
	if err := d.Engine.Store().DeleteRepository(p.RepositoryID); err != nil {
		return nil, fmt.Errorf("repository.remove: %w", err)
	}
	return map[string]string{"status": "deleted"}, nil
}

type repositoryPathParams struct {
	SessionID string `json:"session_id"`
	RelPath   string `json:"path"`
}

func (d Deps) resolveWorkspacePath(sessionID, relPath string) (string, error) {
	res, err := workspace.Resolve(d.Engine.Store(), sessionID)
	if err != nil {
		return "", err
	}
	return joinWorkspace(res.WorkingDir, relPath), nil
}

func (d Deps) handleRepositoryListFiles(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p sessionIDParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	res, err := workspace.Resolve(d.Engine.Store(), p.SessionID)
	if err != nil {
		return nil, workspaceErr(err)
	}
	return listFiles(res.WorkingDir)
}

func (d Deps) handleRepositoryReadFile(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p repositoryPathParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" || p.RelPath == "" {
		return nil, NewError(CodeInvalidParams, "session_id and path are required")
	}
	full, err := d.resolveWorkspacePath(p.SessionID, p.RelPath)
	if err != nil {
		return nil, workspaceErr(err)
	}
	return readFile(full)
}

type repositoryReadSliceParams struct {
	SessionID  string `json:"session_id"`
	RelPath    string `json:"path"`
	StartByte  int64  `json:"start_byte"`
	EndByte    int64  `json:"end_byte"`
}

func (d Deps) handleRepositoryReadFileSlice(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p repositoryReadSliceParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" || p.RelPath == "" {
		return nil, NewError(CodeInvalidParams, "session_id and path are required")
	}
	full, err := d.resolveWorkspacePath(p.SessionID, p.RelPath)
	if err != nil {
		return nil, workspaceErr(err)
	}
	return readFileSlice(full, p.StartByte, p.EndByte)
}

type repositoryWriteParams struct {
	SessionID string `json:"session_id"`
	RelPath   string `json:"path"`
	Content   string `json:"content"`
}

func (d Deps) handleRepositoryWriteFile(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p repositoryWriteParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" || p.RelPath == "" {
		return nil, NewError(CodeInvalidParams, "session_id and path are required")
	}
	full, err := d.resolveWorkspacePath(p.SessionID, p.RelPath)
	if err != nil {
		return nil, workspaceErr(err)
	}
	before, _ := readFile(full)
	if err := writeFile(full, []byte(p.Content)); err != nil {
		return nil, fmt.Errorf("repository.write_file: %w", err)
	}
	d.recordDiffSummary(p.SessionID, p.RelPath, before, p.Content)
	return map[string]string{"status": "written"}, nil
}

// recordDiffSummary best-effort renders a unified diff of a repository
// write and stores it as the session's diff-summary singleton. Failures
// are logged and swallowed — a missing diff summary never fails the write
// that produced it.
func (d Deps) recordDiffSummary(sessionID, relPath, before, after string) {
	diff, err := unifiedDiff(relPath, before, after)
	if err != nil || diff == nil {
		return
	}
	if d.Engine == nil {
		return
	}
	_ = d.Engine.Store().SetDiffSummary(sessionID, diff)
}

type repositoryReplaceRangeParams struct {
	SessionID string `json:"session_id"`
	RelPath   string `json:"path"`
	StartByte int64  `json:"start_byte"`
	EndByte   int64  `json:"end_byte"`
	Content   string `json:"content"`
}

func (d Deps) handleRepositoryReplaceFileRange(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p repositoryReplaceRangeParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" || p.RelPath == "" {
		return nil, NewError(CodeInvalidParams, "session_id and path are required")
	}
	full, err := d.resolveWorkspacePath(p.SessionID, p.RelPath)
	if err != nil {
		return nil, workspaceErr(err)
	}
	before, _ := readFile(full)
	if err := replaceFileRange(full, p.StartByte, p.EndByte, []byte(p.Content)); err != nil {
		return nil, fmt.Errorf("repository.replace_file_range: %w", err)
	}
	after, _ := readFile(full)
	d.recordDiffSummary(p.SessionID, p.RelPath, before, after)
	return map[string]string{"status": "replaced"}, nil
}

func workspaceErr(err error) error {
	if rpcErr, ok := asLegacyWorktree(err); ok {
		return NewError(CodeConflict, rpcErr)
	}
	if err == workspace.ErrSessionNotFound || err == workspace.ErrRepositoryNotFound {
		return NewError(CodeNotFound, err.Error())
	}
	return fmt.Errorf("workspace resolve: %w", err)
}

func asLegacyWorktree(err error) (string, bool) {
	if lw, ok := err.(*workspace.ErrLegacyWorktreeUnsupported); ok {
		return lw.Error(), true
	}
	return "", false
}

// --- claude.* -------------------------------------------------------------
// claude.* drives the agentproc registry/bridge (C6): send queues a line on
// the running bridge's stdin, status/stop reflect registry membership.

type claudeSendParams struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

func (d Deps) handleClaudeSend(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p claudeSendParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	if d.Manager == nil {
		return nil, NewError(CodeInternal, "agent manager unavailable")
	}
	res, err := workspace.Resolve(d.Engine.Store(), p.SessionID)
	if err != nil {
		return nil, workspaceErr(err)
	}
	if err := d.Manager.SendClaude(ctx, p.SessionID, res.WorkingDir, []byte(p.Content)); err != nil {
		return nil, fmt.Errorf("claude.send: %w", err)
	}
	return map[string]string{"status": "sent"}, nil
}

func (d Deps) handleClaudeStatus(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p sessionIDParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	return map[string]bool{"running": d.Registry.Status(p.SessionID)}, nil
}

func (d Deps) handleClaudeStop(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p sessionIDParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	if err := d.Registry.Stop(p.SessionID); err != nil {
		return nil, NewError(CodeNotFound, err.Error())
	}
	return map[string]string{"status": "stopping"}, nil
}

// --- git.* ------------------------------------------------------------
// git.* shells out to the system git binary against the session's resolved
// working directory, the same exec.Command("git", "-C", dir, ...) shape
// the teacher's internal/worktree.Manager uses for worktree operations.

func (d Deps) gitDir(sessionID string) (string, error) {
	res, err := workspace.Resolve(d.Engine.Store(), sessionID)
	if err != nil {
		return "", err
	}
	return res.WorkingDir, nil
}

func (d Deps) handleGitStatus(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p sessionIDParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	dir, err := d.gitDir(p.SessionID)
	if err != nil {
		return nil, workspaceErr(err)
	}
	out, err := runGit(ctx, dir, "status", "--porcelain=v1")
	if err != nil {
		return nil, fmt.Errorf("git.status: %w", err)
	}
	return map[string]string{"porcelain": out}, nil
}

type gitDiffFileParams struct {
	SessionID string `json:"session_id"`
	RelPath   string `json:"path"`
}

func (d Deps) handleGitDiffFile(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p gitDiffFileParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" || p.RelPath == "" {
		return nil, NewError(CodeInvalidParams, "session_id and path are required")
	}
	dir, err := d.gitDir(p.SessionID)
	if err != nil {
		return nil, workspaceErr(err)
	}
	out, err := runGit(ctx, dir, "diff", "--", p.RelPath)
	if err != nil {
		return nil, fmt.Errorf("git.diff_file: %w", err)
	}
	return map[string]string{"diff": out}, nil
}

func (d Deps) handleGitLog(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p sessionIDParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	dir, err := d.gitDir(p.SessionID)
	if err != nil {
		return nil, workspaceErr(err)
	}
	out, err := runGit(ctx, dir, "log", "--oneline", "-n", "50")
	if err != nil {
		return nil, fmt.Errorf("git.log: %w", err)
	}
	return map[string][]string{"commits": strings.Split(strings.TrimRight(out, "\n"), "\n")}, nil
}

func (d Deps) handleGitBranches(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p sessionIDParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	dir, err := d.gitDir(p.SessionID)
	if err != nil {
		return nil, workspaceErr(err)
	}
	out, err := runGit(ctx, dir, "branch", "--list")
	if err != nil {
		return nil, fmt.Errorf("git.branches: %w", err)
	}
	return map[string][]string{"branches": strings.Split(strings.TrimRight(out, "\n"), "\n")}, nil
}

type gitPathsParams struct {
	SessionID string   `json:"session_id"`
	RelPaths  []string `json:"paths"`
}

func (d Deps) handleGitStage(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	return d.gitPathsOp(ctx, params, "add")
}

func (d Deps) handleGitUnstage(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	return d.gitPathsOp(ctx, params, "restore", "--staged")
}

func (d Deps) handleGitDiscard(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	return d.gitPathsOp(ctx, params, "checkout", "--")
}

func (d Deps) gitPathsOp(ctx context.Context, params json.RawMessage, gitArgs ...string) (any, error) {
	var p gitPathsParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" || len(p.RelPaths) == 0 {
		return nil, NewError(CodeInvalidParams, "session_id and paths are required")
	}
	dir, err := d.gitDir(p.SessionID)
	if err != nil {
		return nil, workspaceErr(err)
	}
	args := append(append([]string{}, gitArgs...), p.RelPaths...)
	if _, err := runGit(ctx, dir, args...); err != nil {
		return nil, fmt.Errorf("git: %w", err)
	}
	return map[string]string{"status": "ok"}, nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// --- terminal.* ---------------------------------------------------------
// terminal.* spawns the PTY-backed shell bridge (internal/agentproc, C6)
// through the shared Manager, same registry as claude.*. Command/Args are
// accepted for forward-compatibility with a future per-call shell
// override but the current terminal bridge always launches the daemon's
// configured shell.

type terminalRunParams struct {
	SessionID string   `json:"session_id"`
	Command   string   `json:"command"`
	Args      []string `json:"args"`
}

func (d Deps) handleTerminalRun(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p terminalRunParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	if d.Manager == nil {
		return nil, NewError(CodeInternal, "agent manager unavailable")
	}
	res, err := workspace.Resolve(d.Engine.Store(), p.SessionID)
	if err != nil {
		return nil, workspaceErr(err)
	}
	if err := d.Manager.RunTerminal(ctx, p.SessionID, res.WorkingDir); err != nil {
		return nil, NewError(CodeConflict, err.Error())
	}
	return map[string]string{"status": "started"}, nil
}

func (d Deps) handleTerminalStatus(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p sessionIDParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	return map[string]bool{"running": d.Registry.Status(p.SessionID)}, nil
}

func (d Deps) handleTerminalStop(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p sessionIDParams
	if err := decodeParams(params, &p); err != nil || p.SessionID == "" {
		return nil, NewError(CodeInvalidParams, "session_id is required")
	}
	if err := d.Registry.Stop(p.SessionID); err != nil {
		return nil, NewError(CodeNotFound, err.Error())
	}
	return map[string]string{"status": "stopping"}, nil
}
