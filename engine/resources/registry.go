package resources

import (
	"fmt"
	"sync"
)

// Deserializer decodes a typed binary blob into its in-memory resource payload.
type Deserializer func(data []byte) (any, error)

// registry is the process-wide table of blob deserializers keyed by file
// extension (".mesh_data", ".material_data", ...). It has an explicit
// lifecycle: the host calls InitRegistry at startup and TeardownRegistry at
// exit; nothing is registered by package initialization order.
type registry struct {
	mu            sync.RWMutex
	deserializers map[string]Deserializer
}

var globalRegistry *registry

// InitRegistry initializes the process-wide deserializer registry.
// Calling it twice is an error surfaced to the host.
//
// Returns:
//   - error: an error if the registry is already initialized
func InitRegistry() error {
	if globalRegistry != nil {
		return fmt.Errorf("resource registry already initialized")
	}
	globalRegistry = &registry{deserializers: make(map[string]Deserializer)}
	return nil
}

// TeardownRegistry releases the process-wide registry. Safe to call when the
// registry was never initialized.
func TeardownRegistry() {
	globalRegistry = nil
}

// RegisterDeserializer associates a blob file extension with its decoder.
//
// Parameters:
//   - extension: the blob extension including the leading dot (e.g. ".mesh_data")
//   - d: the decoder for that blob type
//
// Returns:
//   - error: an error if the registry is not initialized or the extension is taken
func RegisterDeserializer(extension string, d Deserializer) error {
	if globalRegistry == nil {
		return fmt.Errorf("resource registry not initialized")
	}
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	if _, exists := globalRegistry.deserializers[extension]; exists {
		return fmt.Errorf("deserializer for %q already registered", extension)
	}
	globalRegistry.deserializers[extension] = d
	return nil
}

// Deserialize decodes a blob using the deserializer registered for its extension.
//
// Parameters:
//   - extension: the blob extension including the leading dot
//   - data: the raw blob bytes
//
// Returns:
//   - any: the decoded resource payload
//   - error: an error if no deserializer is registered or decoding fails
func Deserialize(extension string, data []byte) (any, error) {
	if globalRegistry == nil {
		return nil, fmt.Errorf("resource registry not initialized")
	}
	globalRegistry.mu.RLock()
	d, ok := globalRegistry.deserializers[extension]
	globalRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no deserializer registered for %q", extension)
	}
	return d(data)
}
