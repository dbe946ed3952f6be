// Package memory contains core.MemoryStore implementations. Crews with memory
// enabled store every task result here so later agents can recall it through
// the memory tool.
package memory
