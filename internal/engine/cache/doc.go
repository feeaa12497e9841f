// Package cache persists terminal emission results as JSON files so repeated
// CLI runs do not call the compute service again for unchanged activities.
//
// Keys have the form "namespace/name". Each namespace is a directory under the
// cache root, so every result of one activity can be dropped with a single
// DeleteNamespace call. Entries carry an optional TTL; zero means the entry
// lives until it is deleted.
package cache
