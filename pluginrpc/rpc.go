package pluginrpc

import (
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"
)

// rpcServer adapts a CallbackWorker implementation to net/rpc's calling
// convention (exported methods of shape func(Args, *Reply) error).
type rpcServer struct {
	Impl CallbackWorker
}

func (s *rpcServer) RegisterCallbacks(args RegisterCallbacksArgs, reply *RegisterCallbacksReply) error {
	callbacks, err := s.Impl.RegisterCallbacks()
	if err != nil {
		return err
	}
	reply.Callbacks = callbacks
	return nil
}

func (s *rpcServer) CanProcess(args CanProcessArgs, reply *CanProcessReply) error {
	matches, err := s.Impl.CanProcess(args.Event, args.Index)
	if err != nil {
		return err
	}
	reply.Matches = matches
	return nil
}

func (s *rpcServer) Invoke(args InvokeArgs, reply *InvokeReply) error {
	active, failure := s.Impl.Invoke(args.Event, args.Index)
	reply.Active = active
	reply.Failure = failure
	return nil
}

// rpcClient is the engine-side stub returned to the Plugin's consumer. It
// implements CallbackWorker by making blocking net/rpc calls against the
// worker process.
type rpcClient struct {
	client *rpc.Client
}

func (c *rpcClient) RegisterCallbacks() ([]CallbackDescriptor, error) {
	var reply RegisterCallbacksReply
	if err := c.client.Call("Plugin.RegisterCallbacks", RegisterCallbacksArgs{}, &reply); err != nil {
		return nil, err
	}
	return reply.Callbacks, nil
}

func (c *rpcClient) CanProcess(event WireEvent, index int) (bool, error) {
	var reply CanProcessReply
	args := CanProcessArgs{Event: event, Index: index}
	if err := c.client.Call("Plugin.CanProcess", args, &reply); err != nil {
		return false, err
	}
	return reply.Matches, nil
}

func (c *rpcClient) Invoke(event WireEvent, index int) (bool, *CallbackFailure) {
	var reply InvokeReply
	args := InvokeArgs{Event: event, Index: index}
	if err := c.client.Call("Plugin.Invoke", args, &reply); err != nil {
		return false, &CallbackFailure{Message: err.Error()}
	}
	return reply.Active, reply.Failure
}

// CallbackWorkerPlugin is the go-plugin Plugin implementation shared by both
// halves of the protocol: the worker binary registers it with its concrete
// CallbackWorker implementation; the engine registers a zero-value one and
// receives a client stub from Client().
type CallbackWorkerPlugin struct {
	Impl CallbackWorker
}

func (p *CallbackWorkerPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &rpcServer{Impl: p.Impl}, nil
}

func (p *CallbackWorkerPlugin) Client(b *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &rpcClient{client: c}, nil
}

// PluginMap is the plugin set every worker Serve call and every engine
// NewClient call must agree on.
var PluginMap = map[string]goplugin.Plugin{
	"callback_worker": &CallbackWorkerPlugin{},
}
