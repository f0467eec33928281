// Package probecache stores raw identify replies keyed by the window they
// were produced for, so rescanning an unchanged file does not spend API
// quota. Keys are xxhash64 digests of the source identity (path, size,
// modification time) and the window bounds; values live in badger with a
// TTL.
package probecache
