package plugin

import (
	"fmt"

	"gitlab.com/vfx-pipeline/trackerd/pluginrpc"
)

// fakeWorkerHandle is an in-process stand-in for a spawned plugin worker,
// letting tests drive Plugin.Load/Process without a real subprocess.
type fakeWorkerHandle struct {
	impl  pluginrpc.CallbackWorker
	alive bool
	kills int
}

func (f *fakeWorkerHandle) CallbackWorker() pluginrpc.CallbackWorker { return f.impl }
func (f *fakeWorkerHandle) Alive() bool                              { return f.alive }
func (f *fakeWorkerHandle) Kill()                                    { f.alive = false; f.kills++ }

// fakeCallbackWorker is a directly-programmable CallbackWorker: tests set
// Descriptors and a per-index Handler to control CanProcess/Invoke without
// any RPC transport.
type fakeCallbackWorker struct {
	descriptors   []pluginrpc.CallbackDescriptor
	registerErr   error
	handlers      map[int]func(pluginrpc.WireEvent) (bool, *pluginrpc.CallbackFailure)
	registerCalls int
}

func (f *fakeCallbackWorker) RegisterCallbacks() ([]pluginrpc.CallbackDescriptor, error) {
	f.registerCalls++
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.descriptors, nil
}

func (f *fakeCallbackWorker) CanProcess(event pluginrpc.WireEvent, index int) (bool, error) {
	for _, d := range f.descriptors {
		if d.Index == index {
			return CanProcess(d.Filter, event.EventType, event.AttributeName), nil
		}
	}
	return false, fmt.Errorf("no such callback index %d", index)
}

func (f *fakeCallbackWorker) Invoke(event pluginrpc.WireEvent, index int) (bool, *pluginrpc.CallbackFailure) {
	if h, ok := f.handlers[index]; ok {
		return h(event)
	}
	return true, nil
}

// newTestPlugin builds a Plugin wired to a fake worker instead of a spawned
// subprocess. path must exist on disk (tests use t.TempDir() + a touched
// file) so Load's mtime check has something to stat.
func newTestPlugin(path string, worker *fakeCallbackWorker) *Plugin {
	p := New(path, discardLogger(), nil)
	p.spawn = func(string) (spawnedWorker, error) {
		return &fakeWorkerHandle{impl: worker, alive: true}, nil
	}
	return p
}
