// Package catalog resolves caller-supplied model keys to upstream model ids.
//
// A Catalog is built once from configuration and never mutated, so a single
// instance is shared by every request without locking.
package catalog
