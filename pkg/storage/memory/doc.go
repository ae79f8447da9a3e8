// Package memory provides in-process plugin and user repositories.
//
// Every key has its own mutex, so concurrent mutations of one plugin are
// serialized while unrelated plugins proceed in parallel.
package memory
