// Package netcache tracks the export groups declared in a replay and maps
// session-local object handles onto them.
package netcache

import (
	"strings"

	"github.com/elliotchance/orderedmap/v3"
)

// GameplayTagGroup is the group whose field names are the gameplay tags
const GameplayTagGroup = "NetworkGameplayTagNodeIndex"

// Stats counts the work done by group resolution
type Stats struct {
	Lookups      uint64 // ResolveGroup calls
	CacheHits    uint64 // answered from the positive cache
	NegativeHits uint64 // answered from a negative cache
	Scans        uint64 // fuzzy scans started
	Resolved     uint64 // scans that found a group
	Failed       uint64 // scans that found nothing
}

type classNetCacheKey struct {
	path        string
	useFullName bool
}

// Registry owns every handle and group mapping of one decode session.
// It is not safe for concurrent use; give each session its own Registry.
type Registry struct {
	groups       *orderedmap.OrderedMap[string, *ExportGroup] // path -> group, registration order
	indexToPath  map[uint32]string
	handleToPath map[uint32]string

	resolved       map[uint32]*ExportGroup // positive cache
	cleanedPaths   map[uint32]string       // group path index -> prefix-stripped path
	classNetCache  map[classNetCacheKey]string
	failedPaths    map[string]struct{}
	unknownHandles map[uint32]struct{}

	stats Stats
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		groups:         orderedmap.NewOrderedMap[string, *ExportGroup](),
		indexToPath:    make(map[uint32]string),
		handleToPath:   make(map[uint32]string),
		resolved:       make(map[uint32]*ExportGroup),
		cleanedPaths:   make(map[uint32]string),
		classNetCache:  make(map[classNetCacheKey]string),
		failedPaths:    make(map[string]struct{}),
		unknownHandles: make(map[uint32]struct{}),
	}
}

// Register installs group under path. Registering a path again replaces the
// earlier group; cached resolutions pointing at it follow the replacement.
// Groups registered under a ClassNetCache path get their PathName stripped
// of package prefixes.
func (c *Registry) Register(path string, group *ExportGroup) {
	if strings.HasSuffix(path, "ClassNetCache") {
		group.PathName = RemoveAllPathPrefixes(group.PathName)
	}

	if old, ok := c.groups.Get(path); ok && old != group {
		delete(c.cleanedPaths, old.PathNameIndex)
		if c.indexToPath[old.PathNameIndex] == path {
			delete(c.indexToPath, old.PathNameIndex)
		}
		for handle, g := range c.resolved {
			if g == old {
				c.resolved[handle] = group
			}
		}
	}

	c.groups.Set(path, group)
	c.indexToPath[group.PathNameIndex] = path
	delete(c.cleanedPaths, group.PathNameIndex)
}

// RegisterPath records the path declared for an object handle
func (c *Registry) RegisterPath(handle uint32, path string) {
	c.handleToPath[handle] = path
	delete(c.unknownHandles, handle)
}

// PathName returns the path declared for handle
func (c *Registry) PathName(handle uint32) (string, bool) {
	path, ok := c.handleToPath[handle]
	return path, ok
}

// GroupByIndex returns the group registered with the given path index
func (c *Registry) GroupByIndex(index uint32) (*ExportGroup, bool) {
	path, ok := c.indexToPath[index]
	if !ok {
		return nil, false
	}
	return c.groups.Get(path)
}

// GroupByPath returns the group registered under path
func (c *Registry) GroupByPath(path string) (*ExportGroup, bool) {
	return c.groups.Get(path)
}

// ResolveGroup finds the group of an object handle that was not explicitly
// associated with one.
//
// The handle's declared path is matched against the registered groups in two
// passes: first the path must contain a group's prefix-stripped path, then a
// group's prefix-stripped path must contain the path with its instance
// suffix removed. Hits are cached per handle, misses per path, so each
// distinct path is scanned at most once.
func (c *Registry) ResolveGroup(handle uint32) (*ExportGroup, bool) {
	c.stats.Lookups++

	if group, ok := c.resolved[handle]; ok {
		c.stats.CacheHits++
		return group, true
	}
	if _, ok := c.unknownHandles[handle]; ok {
		c.stats.NegativeHits++
		return nil, false
	}

	path, ok := c.handleToPath[handle]
	if !ok {
		c.unknownHandles[handle] = struct{}{}
		return nil, false
	}
	if _, ok := c.failedPaths[path]; ok {
		c.stats.NegativeHits++
		return nil, false
	}

	c.stats.Scans++
	for el := c.groups.Front(); el != nil; el = el.Next() {
		cleaned := c.cleanedPath(el.Key, el.Value)
		if cleaned == "" {
			continue
		}
		if strings.Contains(path, cleaned) {
			return c.remember(handle, el.Value), true
		}
	}

	if suffixless := CleanPathSuffix(path); suffixless != "" {
		for el := c.groups.Front(); el != nil; el = el.Next() {
			cleaned, ok := c.cleanedPaths[el.Value.PathNameIndex]
			if !ok || cleaned == "" {
				continue
			}
			if strings.Contains(cleaned, suffixless) {
				return c.remember(handle, el.Value), true
			}
		}
	}

	c.stats.Failed++
	c.failedPaths[path] = struct{}{}
	return nil, false
}

func (c *Registry) cleanedPath(path string, group *ExportGroup) string {
	if cleaned, ok := c.cleanedPaths[group.PathNameIndex]; ok {
		return cleaned
	}
	cleaned := RemoveAllPathPrefixes(path)
	c.cleanedPaths[group.PathNameIndex] = cleaned
	return cleaned
}

func (c *Registry) remember(handle uint32, group *ExportGroup) *ExportGroup {
	c.stats.Resolved++
	c.resolved[handle] = group
	return group
}

// ResolveClassNetCache returns the RPC table of a class path. With
// useFullName the path is used as is, otherwise its prefixes are stripped
// first. No fuzzy matching is done.
func (c *Registry) ResolveClassNetCache(path string, useFullName bool) (*ExportGroup, bool) {
	if path == "" {
		return nil, false
	}
	key := classNetCacheKey{path: path, useFullName: useFullName}
	cachePath, ok := c.classNetCache[key]
	if !ok {
		if useFullName {
			cachePath = path + ClassNetCacheSuffix
		} else {
			cachePath = RemoveAllPathPrefixes(path) + ClassNetCacheSuffix
		}
		c.classNetCache[key] = cachePath
	}
	return c.groups.Get(cachePath)
}

// TagName returns the gameplay tag with the given index
func (c *Registry) TagName(index uint32) (string, bool) {
	group, ok := c.groups.Get(GameplayTagGroup)
	if !ok {
		return "", false
	}
	field, ok := group.Field(index)
	if !ok {
		return "", false
	}
	return field.Name, true
}

// Len returns the number of registered groups
func (c *Registry) Len() int {
	return c.groups.Len()
}

// Stats returns a snapshot of the resolution counters
func (c *Registry) Stats() Stats {
	return c.stats
}

// Reset clears every mapping and cache, including the counters
func (c *Registry) Reset() {
	c.groups = orderedmap.NewOrderedMap[string, *ExportGroup]()
	clear(c.indexToPath)
	clear(c.handleToPath)
	clear(c.resolved)
	clear(c.cleanedPaths)
	clear(c.classNetCache)
	clear(c.failedPaths)
	clear(c.unknownHandles)
	c.stats = Stats{}
}
