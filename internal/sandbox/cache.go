package sandbox

import (
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/agentworld/runtime/internal/domain"
)

// compiledModule pairs a compiled wasmer.Module with the store it was
// compiled against, since wasmer modules are only valid for instantiation
// against their own store.
type compiledModule struct {
	store *wasmer.Store
	mod   *wasmer.Module
}

// ModuleCache memoizes compiled WASM modules keyed by content hash, the way
// the teacher's mode flag picks a VM once per process but generalized to
// per-artifact reuse: compilation is the expensive step, so every call for
// the same wasm_hash after the first reuses the compiled wasmer.Module
// (spec §4.2 "compiled-module cache").
type ModuleCache struct {
	mu       sync.Mutex
	engine   *wasmer.Engine
	entries  *lru.Cache[domain.Hash, *compiledModule]
	diskDir  string
}

// NewModuleCache builds a cache holding up to capacity compiled modules in
// memory. diskDir, if non-empty, is an optional secondary cache of raw wasm
// bytes on disk keyed by hash, so a cold process can skip re-fetching an
// artifact it already validated once.
func NewModuleCache(capacity int, diskDir string) (*ModuleCache, error) {
	entries, err := lru.New[domain.Hash, *compiledModule](capacity)
	if err != nil {
		return nil, err
	}
	if diskDir != "" {
		if err := os.MkdirAll(diskDir, 0o755); err != nil {
			return nil, err
		}
	}
	return &ModuleCache{
		engine:  wasmer.NewEngine(),
		entries: entries,
		diskDir: diskDir,
	}, nil
}

// Get returns the compiled module for hash, compiling wasmBytes and
// inserting it if this is the first call for that hash. The caller supplies
// wasmBytes so the cache never needs to know how artifacts are fetched.
func (c *ModuleCache) Get(hash domain.Hash, wasmBytes []byte) (*compiledModule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cm, ok := c.entries.Get(hash); ok {
		return cm, nil
	}

	store := wasmer.NewStore(c.engine)
	mod, err := wasmer.NewModule(store, wasmBytes)
	if err != nil {
		return nil, errAbiIncompatible(err.Error())
	}
	cm := &compiledModule{store: store, mod: mod}
	c.entries.Add(hash, cm)

	if c.diskDir != "" {
		_ = os.WriteFile(filepath.Join(c.diskDir, string(hash)+".wasm"), wasmBytes, 0o644)
	}
	return cm, nil
}

// DiskBytes returns previously cached raw wasm bytes for hash from the disk
// sidecar, if present.
func (c *ModuleCache) DiskBytes(hash domain.Hash) ([]byte, bool) {
	if c.diskDir == "" {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(c.diskDir, string(hash)+".wasm"))
	if err != nil {
		return nil, false
	}
	return data, true
}
