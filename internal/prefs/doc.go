// Package prefs decodes user preferences from an untyped key-value store.
//
// The store is shared with other writers (older front-ends, the CLI, a Redis
// hash edited by hand) and none of them agree on types. A latitude may be a
// native double, a float, the raw bit pattern of a double stored as an
// integer, or a string such as "VGhpcyBpcyB0aGUgcHJlZml4IGZvciBEb3VibGUu40.7".
//
// FromRaw classifies a raw value into the tagged union Value
// {Number, Bool, Text, Absent} exactly once, at the boundary. Reader.Load
// then produces a typed Settings value; nothing past this package sees raw
// values. Decoding never fails: an undecodable value is logged with code
// DECODE_FALLBACK and replaced by its documented default.
package prefs
