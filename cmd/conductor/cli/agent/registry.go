package agent

import (
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[AgentType]Parser)
)

// Register adds a parser for an agent type. Called from init() in parser
// subpackages; last registration wins.
func Register(t AgentType, p Parser) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = p
}

// Lookup returns the registered parser for an agent type.
func Lookup(t AgentType) (Parser, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[t]
	return p, ok
}

// ParserFor returns the registered parser for an agent type, degrading to
// the generic fallback parser when none is registered. The terminal type
// has no protocol and gets no parser at all.
func ParserFor(t AgentType) Parser {
	if t == AgentTypeTerminal {
		return nil
	}
	if p, ok := Lookup(t); ok {
		return p
	}
	return GenericParser{}
}

// RegisteredTypes returns the agent types with a registered parser, sorted.
func RegisteredTypes() []AgentType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]AgentType, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
