// Package registry catalogs the field kinds a form schema may reference.
// Each kind is described by a Descriptor: the JSON value type it produces,
// default options applied when the builder adds a field, a pure validator and
// a render descriptor telling renderers which widget to use.
//
// Default returns the process-wide catalog with the built-in kinds (text,
// textarea, email, number, integer, select, multiselect, checkbox, date,
// group, repeater). Custom catalogs start from New or NewWithBuiltins and
// should be frozen once populated.
package registry
