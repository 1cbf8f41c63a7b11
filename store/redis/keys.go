package redis

// Key prefixes for primary entity storage.
const (
	prefixEndpoint = "tollgate:ep:"
	prefixCall     = "tollgate:call:"
	prefixProof    = "tollgate:proof:"
)

// Key prefixes for sorted set indexes.
const (
	zEndpointAll = "tollgate:z:ep:all"
	zCallEP      = "tollgate:z:call:ep:" // + endpoint ID
)

// Counter keys.
const (
	cCallsTotal = "tollgate:c:calls:total"
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}
