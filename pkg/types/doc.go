// Package types defines the property type, property value and field
// definition model shared by the chadostore packages, together with the
// standard error values returned by the catalog, registry and storage engine.
//
// A field of a content entity is described by a set of PropertyType values.
// Each PropertyType carries StorageSettings telling the storage engine how
// the property maps onto a Chado table column. Callers hand the engine a
// Values map (field name, delta, property key) whose PropertyValue cells are
// read for writes and populated on loads.
package types
