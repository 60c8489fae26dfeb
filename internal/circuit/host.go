package circuit

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// execKey is the context key of the per-call execution state.
type execKey struct{}

// execContext holds the execution state for a single circuit invocation.
type execContext struct {
	input        []byte // input is the request passed to the guest
	output       []byte // output is the last buffer written by the guest
	gasLimit     uint64 // gasLimit is the maximum gas allowed
	gasUsed      uint64 // gasUsed tracks consumed gas
	gasExhausted bool   // gasExhausted is true if gas limit was exceeded
}

// withExec attaches the execution state to ctx.
func withExec(ctx context.Context, ec *execContext) context.Context {
	return context.WithValue(ctx, execKey{}, ec)
}

// execFrom returns the execution state of the current call.
func execFrom(ctx context.Context) *execContext {
	ec, _ := ctx.Value(execKey{}).(*execContext)
	return ec
}

// instantiateHost creates the shared "env" module.
// Host functions resolve their state from the call context, so a single
// instance serves every concurrent invocation.
func (p *Pool) instantiateHost(ctx context.Context) (api.Module, error) {
	return p.runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(hostGas).
		Export("gas").
		NewFunctionBuilder().
		WithFunc(hostInputLen).
		Export("input_len").
		NewFunctionBuilder().
		WithFunc(hostReadInput).
		Export("read_input").
		NewFunctionBuilder().
		WithFunc(hostWriteOutput).
		Export("write_output").
		Instantiate(ctx)
}

// hostGas charges cost units.
// Panics if the limit is exceeded to abort execution.
func hostGas(ctx context.Context, cost uint32) {
	ec := execFrom(ctx)
	if ec == nil {
		return
	}

	ec.gasUsed += uint64(cost)

	if ec.gasUsed > ec.gasLimit {
		ec.gasExhausted = true
		panic("gas exhausted")
	}
}

// hostInputLen returns the length of the request.
func hostInputLen(ctx context.Context) uint32 {
	ec := execFrom(ctx)
	if ec == nil {
		return 0
	}

	return uint32(len(ec.input))
}

// hostReadInput copies the request into guest memory at ptr.
func hostReadInput(ctx context.Context, m api.Module, ptr uint32) {
	ec := execFrom(ctx)
	if ec == nil || len(ec.input) == 0 || m.Memory() == nil {
		return
	}

	m.Memory().Write(ptr, ec.input)
}

// hostWriteOutput copies length bytes at ptr out of guest memory.
func hostWriteOutput(ctx context.Context, m api.Module, ptr, length uint32) {
	ec := execFrom(ctx)
	if ec == nil || length == 0 || m.Memory() == nil {
		return
	}

	data, ok := m.Memory().Read(ptr, length)
	if !ok {
		return
	}

	ec.output = make([]byte, length)
	copy(ec.output, data)
}
