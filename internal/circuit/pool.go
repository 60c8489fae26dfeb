package circuit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/zeebo/blake3"
)

var (
	// ErrModuleNotFound is returned when a module ID is not loaded.
	ErrModuleNotFound = errors.New("module not found")

	// ErrGasExhausted is returned when execution runs out of gas.
	ErrGasExhausted = errors.New("gas exhausted")

	// ErrNoEntrypoint is returned when a module does not export execute.
	ErrNoEntrypoint = errors.New("execute function not exported")
)

// Pool holds compiled circuit modules.
// Modules are compiled once; every call runs in a fresh anonymous instance.
type Pool struct {
	runtime wazero.Runtime                     // runtime is the wazero runtime instance
	host    api.Module                         // host is the shared env module
	modules map[[32]byte]wazero.CompiledModule // modules maps blake3 hash to compiled module
	mu      sync.RWMutex                       // mu protects modules
}

// NewPool creates a pool with an initialized runtime and host module.
func NewPool(ctx context.Context) (*Pool, error) {
	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)

	p := &Pool{
		runtime: wazero.NewRuntimeWithConfig(ctx, cfg),
		modules: make(map[[32]byte]wazero.CompiledModule),
	}

	host, err := p.instantiateHost(ctx)
	if err != nil {
		p.runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate host module:\n%w", err)
	}

	p.host = host

	return p, nil
}

// Load compiles and stores a module, returning its blake3 ID.
// Loading the same bytes twice is a no-op.
func (p *Pool) Load(ctx context.Context, wasm []byte) ([32]byte, error) {
	id := blake3.Sum256(wasm)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.modules[id]; exists {
		return id, nil
	}

	compiled, err := p.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return [32]byte{}, fmt.Errorf("compile module:\n%w", err)
	}

	p.modules[id] = compiled

	return id, nil
}

// Execute runs a module's execute export with input and a gas limit.
// Returns the output written by the guest and the gas consumed.
func (p *Pool) Execute(ctx context.Context, id [32]byte, input []byte, gasLimit uint64) ([]byte, uint64, error) {
	p.mu.RLock()
	compiled, exists := p.modules[id]
	p.mu.RUnlock()

	if !exists {
		return nil, 0, ErrModuleNotFound
	}

	ec := &execContext{input: input, gasLimit: gasLimit}
	ctx = withExec(ctx, ec)

	cfg := wazero.NewModuleConfig().WithName("").WithStartFunctions()

	instance, err := p.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, ec.gasUsed, fmt.Errorf("instantiate module:\n%w", err)
	}
	defer instance.Close(ctx)

	fn := instance.ExportedFunction("execute")
	if fn == nil {
		return nil, ec.gasUsed, ErrNoEntrypoint
	}

	if _, err := fn.Call(ctx); err != nil {
		if ec.gasExhausted {
			return nil, ec.gasUsed, ErrGasExhausted
		}

		return nil, ec.gasUsed, fmt.Errorf("execute:\n%w", err)
	}

	return ec.output, ec.gasUsed, nil
}

// Unload removes a module from the pool.
func (p *Pool) Unload(ctx context.Context, id [32]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if compiled, exists := p.modules[id]; exists {
		compiled.Close(ctx)
		delete(p.modules, id)
	}
}

// Close releases every module and the runtime.
func (p *Pool) Close() error {
	ctx := context.Background()

	p.mu.Lock()
	defer p.mu.Unlock()

	for id, compiled := range p.modules {
		compiled.Close(ctx)
		delete(p.modules, id)
	}

	return p.runtime.Close(ctx)
}
