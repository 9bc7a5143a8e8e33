// Package cache provides a fixed-capacity LRU cache.
//
// Drivers use it to share compiled shader modules between libraries built
// from the same source:
//
//	modules := cache.New[string, *Module](64)
//	m, err := modules.GetOrCreate(source, compile)
//
// Cache is safe for concurrent use and must not be copied.
package cache
