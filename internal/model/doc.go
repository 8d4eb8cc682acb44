// Package model defines shared data types used across the Limoo driver.
//
// Conventions:
//   - IDs: opaque strings as issued by the Limoo server
//   - Event payloads: raw JSON of the envelope "data" object, left undecoded
//   - Event IDs: uuid.UUID assigned locally when the event is normalized
package model
