// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command unbound-daemon is the multi-device agent-coding session daemon
// described by spec.md. It wires the durable store and session engine
// (C1-C5), the process registry/bridge and stream ring (C6-C7), the secret
// cache and hybrid device codec (C8-C9), the auth state machine (C10), the
// backend sync workers and remote-command broker (C11-C12), the workspace
// resolver (C13), the token broker (C14), and the RPC surface (§6) into one
// running process — the same flag-parse-then-Run-then-signal-wait shape as
// cmd/trellis/main.go, generalized from a single HTTP server to this
// daemon's several listeners.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wingedpig/unbound/internal/agentproc"
	"github.com/wingedpig/unbound/internal/authfsm"
	"github.com/wingedpig/unbound/internal/backend"
	"github.com/wingedpig/unbound/internal/daemonconfig"
	"github.com/wingedpig/unbound/internal/daemonpaths"
	"github.com/wingedpig/unbound/internal/devicecrypto"
	"github.com/wingedpig/unbound/internal/engine"
	"github.com/wingedpig/unbound/internal/remotebroker"
	"github.com/wingedpig/unbound/internal/rpc"
	"github.com/wingedpig/unbound/internal/secretcache"
	"github.com/wingedpig/unbound/internal/store"
	"github.com/wingedpig/unbound/internal/streamring"
	"github.com/wingedpig/unbound/internal/syncworkers"
	"github.com/wingedpig/unbound/internal/tokenbroker"
)

// Exit codes, per spec.md §6.6.
const (
	exitOK            = 0
	exitGeneric       = 1
	exitAlreadyRunning = 2
	exitCorruptStore  = 3
	exitConfigError   = 64
)

var version = "0.1.0"

func main() {
	var (
		configPath  string
		userID      string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to the daemon settings file (hjson or json)")
	flag.StringVar(&userID, "user", "", "authenticated user id (normally set after auth.login)")
	flag.BoolVar(&showVersion, "version", false, "print the version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("unbound-daemon %s\n", version)
		os.Exit(exitOK)
	}

	os.Exit(run(configPath, userID))
}

func run(configPath, userID string) int {
	cfg := daemonconfig.Default()
	if configPath != "" {
		loaded, err := daemonconfig.Load(configPath)
		if err != nil {
			log.Printf("config: %v", err)
			return exitConfigError
		}
		cfg = loaded
	}

	paths, err := daemonpaths.Resolve()
	if err != nil {
		log.Printf("daemonpaths: %v", err)
		return exitConfigError
	}
	if err := paths.EnsureDirs(); err != nil {
		log.Printf("daemonpaths: %v", err)
		return exitConfigError
	}

	if alreadyRunning(paths.RPCSocket) {
		log.Printf("unbound-daemon: socket %s is already held by a running daemon", paths.RPCSocket)
		return exitAlreadyRunning
	}

	d, err := newDaemon(cfg, paths, userID)
	if err != nil {
		if errors.Is(err, errStoreCorrupt) {
			log.Printf("store: %v", err)
			return exitCorruptStore
		}
		log.Printf("startup: %v", err)
		return exitGeneric
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		log.Printf("daemon: %v", err)
		return exitGeneric
	}
	return exitOK
}

// alreadyRunning reports whether another process currently holds the RPC
// socket, the same "dial before listen" check used to decide between a
// stale leftover socket file (safe to remove) and a live daemon.
func alreadyRunning(socketPath string) bool {
	conn, err := net.DialTimeout("unix", socketPath, 200*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

var errStoreCorrupt = errors.New("durable store appears corrupt")

// daemon owns every long-lived component and their shutdown order.
type daemon struct {
	eng          *engine.Engine
	registry     *agentproc.Registry
	manager      *agentproc.Manager
	streamHub    *streamring.Hub
	auth         *authfsm.Machine
	secrets      *secretcache.Cache
	backendClient *backend.Client
	levi         *syncworkers.Levi
	distributor  *syncworkers.Distributor
	tokenBroker  *tokenbroker.Broker
	remoteBroker *remotebroker.Broker
	rpcServer    *rpc.Server
	paths        *daemonpaths.Paths
	ks           *fileKeyStore
}

func newDaemon(cfg *daemonconfig.Config, paths *daemonpaths.Paths, userID string) (*daemon, error) {
	ks, err := newFileKeyStore(paths.BaseDir + "/keys")
	if err != nil {
		return nil, err
	}

	identity, err := devicecrypto.LoadIdentity(ks, userID, userID)
	if errors.Is(err, devicecrypto.ErrIdentityNotFound) {
		identity, err = devicecrypto.GenerateIdentity(ks, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("device identity: %w", err)
	}

	secrets := secretcache.New()
	be := backend.New(cfg.BackendURL, cfg.BackendAPIKey, "")

	dbKey, err := devicecrypto.DeriveDatabaseKey(identity.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("derive database key: %w", err)
	}

	registry := agentproc.NewRegistry()
	streamHub := streamring.NewHub()
	auth := authfsm.New()

	eng, err := engine.Open(paths.StoreFile, nil)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return nil, fmt.Errorf("%w: %v", errStoreCorrupt, err)
		}
		return nil, fmt.Errorf("open store: %w", err)
	}
	distributor := syncworkers.NewDistributor(eng.Store(), be, secrets, dbKey, userID, *identity)
	eng.SetSink(distributor)

	manager := agentproc.NewManager(eng, streamHub, registry, cfg.AgentCommand, cfg.AgentArgs, cfg.TerminalShell)

	levi := syncworkers.NewLevi(eng.Store(), be, secrets, dbKey)
	if tuning, err := daemonconfig.LoadTuning(paths.TuningFile); err != nil {
		log.Printf("daemonconfig: worker tuning: %v", err)
	} else {
		levi.WithTuning(tuning)
	}

	lookup := &deviceLookup{be: be, userID: userID}
	responses := &backendResponsePublisher{be: be}
	remote := remotebroker.New(identity.DeviceID, lookup, responses, responses)
	remote.Register(remotebroker.CommandSessionSecretRequest,
		remotebroker.NewSessionSecretHandler(remote, eng.Store(), secrets, dbKey, lookup, identity.DeviceID))

	upstream := &realtimeUpstream{be: be}
	tb, err := tokenbroker.New(upstream, lookup)
	if err != nil {
		return nil, fmt.Errorf("token broker: %w", err)
	}

	rpcServer := rpc.New()
	rpc.RegisterAll(rpcServer, rpc.Deps{
		Engine:   eng,
		Registry: registry,
		Manager:  manager,
		Auth:     auth,
	})

	return &daemon{
		eng:           eng,
		registry:      registry,
		manager:       manager,
		streamHub:     streamHub,
		auth:          auth,
		secrets:       secrets,
		backendClient: be,
		levi:          levi,
		distributor:   distributor,
		tokenBroker:   tb,
		remoteBroker:  remote,
		rpcServer:     rpcServer,
		paths:         paths,
		ks:            ks,
	}, nil
}

// Run starts every listener and worker and blocks until ctx is cancelled.
func (d *daemon) Run(ctx context.Context) error {
	if err := d.rpcServer.Listen(d.paths.RPCSocket); err != nil {
		return err
	}
	if err := d.tokenBroker.Listen(d.paths.TokenBrokerSocket); err != nil {
		return err
	}

	d.levi.Start(ctx)

	go func() {
		if err := d.rpcServer.Serve(ctx); err != nil {
			log.Printf("rpc: serve: %v", err)
		}
	}()
	go func() {
		if err := d.tokenBroker.Serve(ctx); err != nil {
			log.Printf("tokenbroker: serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("unbound-daemon: shutting down")
	return nil
}

// Close releases every component's resources, in reverse dependency order.
func (d *daemon) Close() {
	d.levi.Stop()
	for _, id := range d.registry.SessionIDs() {
		d.registry.Remove(id)
	}
	d.streamHub.CloseAll()
	d.rpcServer.Close()
	d.tokenBroker.Close()
	if err := d.eng.Close(); err != nil {
		log.Printf("engine: close: %v", err)
	}
}
