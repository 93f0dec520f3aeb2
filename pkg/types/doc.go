// Package types defines the schema model, the metadata store and schema
// contributor interfaces, the value shapes returned by the aggregation
// engine, and the standard error types for metafields.
//
// A Schema is an ordered list of Groups; a Group is an ordered list of
// FieldDefinitions and may be repeatable. Raw metadata is a flat,
// multi-valued key/value store per entity (MetaStore). The engine reshapes
// that flat data into Values according to the resolved schemas.
package types
