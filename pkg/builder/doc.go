// Package builder exposes the mutation operations a form builder surface
// uses: add, remove, move and update fields, plus form metadata. Operations
// load the current schema into a flat arena (id -> node, parent and children
// as ids), edit it there and commit through the store in one Replace.
package builder
