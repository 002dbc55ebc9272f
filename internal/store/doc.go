// Package store implements IndexStore, the data-access layer that buffers
// document writes and sends them to a search backend in bulk.
//
// Writes go through ImportEvent. Each non-empty event becomes one
// header/payload pair in the pending buffer and bumps the "events" counter;
// whenever the counter reaches a multiple of the flush interval the whole
// buffer goes out in a single bulk request. Calling ImportEvent with an
// empty event, or Drain, sends whatever is left.
//
// An IndexStore is not safe for concurrent use.
package store
