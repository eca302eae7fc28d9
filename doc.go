// Package entcache is the cache half of the entity write path: a small Store
// interface over pluggable byte providers, a versioned type-tagged value
// format, and a no-op Store for deployments without a cache.
//
// Components:
//   - Provider: byte store with TTL (Redis, Ristretto, BigCache).
//   - Value: closed union of bytes, text, blob, integer and boolean.
//   - Encoder: maps Go values to Values; non-scalar values become blobs
//     serialized with a codec.Codec (CBOR by default).
//
// Wire format:
//
//	[1B version][1B tag][payload]
//
//	tag 0 bytes | 1 text | 2 blob | 3 int (LE minimal two's complement) | 4 bool
//
// Reads never fail on bad data. A corrupt entry is a miss and is deleted; an
// entry written by another format version is a miss and is left alone.
//
// Usage:
//
//	st, _ := entcache.New(entcache.Options{Provider: p, Namespace: "tba"})
//	_, _ = st.Set(ctx, "team:frc254", entcache.Text("The Cheesy Poofs"), time.Hour)
//	v, ok, err := st.Get(ctx, "team:frc254")
package entcache
