package planner

// AssetRecord describes one file of the build output: where it lives locally,
// the object key it uploads to, and the headers the storage sink must set
// verbatim. Records are immutable once planned.
type AssetRecord struct {
	// SourcePath is the absolute path of the local file.
	SourcePath string

	// Key is the path relative to the site root, slash-separated. Unique
	// within a plan.
	Key string

	// ContentHash is the hex SHA-256 of the file's raw bytes. The sink uses
	// it to skip uploads whose remote copy is already identical.
	ContentHash string

	CacheControl string
	ContentType  string
}

// SyncPlan holds one record per file in the site tree, ordered by Key.
type SyncPlan []*AssetRecord

// Keys returns the object keys of the plan, in plan order.
func (p SyncPlan) Keys() []string {
	keys := make([]string, len(p))
	for i, rec := range p {
		keys[i] = rec.Key
	}
	return keys
}

// InvalidationConfig controls whether and how the edge cache is invalidated
// after an upload. The zero value disables invalidation.
type InvalidationConfig struct {
	Enabled bool

	// Wait blocks the deployment until the CDN reports the invalidation
	// complete.
	Wait bool

	// All invalidates everything ("/*"). Set when the config names no
	// explicit paths.
	All bool

	// Paths are explicit CDN path patterns. Ignored when All is set. An
	// explicitly empty list means nothing to invalidate.
	Paths []string
}

// InvalidationRequest is handed to the CDN-control collaborator once per
// deployment. VersionToken is the hex MD5 over the byte contents of every
// file in the site tree, in lexicographic key order; byte-identical trees
// always produce the same token.
type InvalidationRequest struct {
	Paths        []string
	VersionToken string
	Wait         bool
}
