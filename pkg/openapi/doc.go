// Package openapi describes form submissions as OpenAPI 3 schemas. The
// submission payload is the flat map produced by preview.Instance.Snapshot:
// one property per value-holding field, groups contributing their children
// and repeaters an array of entry objects. Schemas are built with
// kin-openapi so they can be embedded in API documents or used to validate
// payloads received from outside the preview.
package openapi
