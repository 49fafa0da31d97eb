// Package codec converts configuration documents to and from the exchange
// formats envswitch supports: JSON, ENV (KEY=VALUE lines) and YAML.
//
// JSON is the only lossless format. YAML mirrors the JSON shape. ENV
// output without metadata is the flattened union of every selected
// configuration; keys defined by more than one alias are reported in
// EncodeResult.Collisions rather than resolved silently.
package codec
