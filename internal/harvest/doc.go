// Package harvest defines the daily salmon harvest record, the canonical
// district enumeration, and the normalization helpers shared by the
// extractor and the stores.
//
// Numeric cells are normalized with a default-to-zero policy: a blank cell,
// a dash, and a real zero all become 0. Downstream consumers cannot tell
// "no fishing that day" apart from "value not published".
package harvest
