package pluginrpc

import (
	"fmt"
	"os/exec"

	goplugin "github.com/hashicorp/go-plugin"
)

// WorkerHandle owns one spawned plugin worker process and its dispensed
// CallbackWorker stub. Load() (see the plugin package) replaces the handle
// wholesale on every reload: there is no partial-update path, mirroring the
// mtime-triggered full-respawn semantics of a hot-reloaded plugin.
type WorkerHandle struct {
	client *goplugin.Client
	Worker CallbackWorker
}

// Spawn starts binaryPath as a plugin worker subprocess, performs the
// go-plugin handshake, and dispenses its CallbackWorker client stub.
func Spawn(binaryPath string, args ...string) (*WorkerHandle, error) {
	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         PluginMap,
		Cmd:             exec.Command(binaryPath, args...),
		AllowedProtocols: []goplugin.Protocol{
			goplugin.ProtocolNetRPC,
		},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("pluginrpc: handshake with %s: %w", binaryPath, err)
	}

	raw, err := rpcClient.Dispense("callback_worker")
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("pluginrpc: dispense callback_worker from %s: %w", binaryPath, err)
	}

	worker, ok := raw.(CallbackWorker)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("pluginrpc: %s did not dispense a CallbackWorker", binaryPath)
	}

	return &WorkerHandle{client: client, Worker: worker}, nil
}

// Alive reports whether the underlying worker process is still reachable.
func (h *WorkerHandle) Alive() bool {
	return !h.client.Exited()
}

// CallbackWorker returns the dispensed client stub, satisfying the plugin
// package's spawnedWorker interface alongside Alive and Kill.
func (h *WorkerHandle) CallbackWorker() CallbackWorker {
	return h.Worker
}

// Kill terminates the worker process. Safe to call more than once.
func (h *WorkerHandle) Kill() {
	h.client.Kill()
}
