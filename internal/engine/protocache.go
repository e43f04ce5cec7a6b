package engine

// ProtoAttrCache is a process-wide, lazily populated two-level mapping
// (prototypeCategory, prototypeName) -> attributeName -> value, amortizing
// world-attribute lookups (§4.11). It is cleared at engine (re)initialization
// by constructing a fresh cache; values reflect the world's current
// configuration for the lifetime of the process.
type ProtoAttrCache struct {
	byCategory map[string]map[string]map[string]any
	world      WorldAdapter
}

func NewProtoAttrCache(world WorldAdapter) *ProtoAttrCache {
	return &ProtoAttrCache{byCategory: map[string]map[string]map[string]any{}, world: world}
}

// Get returns the named attribute for (category, name), consulting the
// World Adapter only on a cache miss.
func (c *ProtoAttrCache) Get(category, name, attribute string) (any, bool) {
	byName, ok := c.byCategory[category]
	if !ok {
		byName = map[string]map[string]any{}
		c.byCategory[category] = byName
	}
	attrs, ok := byName[name]
	if !ok {
		attrs = map[string]any{}
		byName[name] = attrs
	}
	if v, ok := attrs[attribute]; ok {
		return v, true
	}
	v, ok := c.world.PrototypeAttribute(category, name, attribute)
	if !ok {
		return nil, false
	}
	attrs[attribute] = v
	return v, true
}

// MiningTime returns the "mining_time" attribute for an entity prototype, in
// seconds, defaulting to 1.0 when absent (matching the host's own default
// for entities with no explicit mining_time).
func (c *ProtoAttrCache) MiningTime(entityName string) float64 {
	v, ok := c.Get("entity", entityName, "mining_time")
	if !ok {
		return 1.0
	}
	f, ok := v.(float64)
	if !ok {
		return 1.0
	}
	return f
}
