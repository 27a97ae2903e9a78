package pluginrpc

import (
	goplugin "github.com/hashicorp/go-plugin"
)

// Serve blocks forever, serving impl as this process's CallbackWorker. Every
// plugin binary's main() is expected to build its CallbackWorker
// implementation and call this as its last statement.
func Serve(impl CallbackWorker) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]goplugin.Plugin{
			"callback_worker": &CallbackWorkerPlugin{Impl: impl},
		},
	})
}
