// Package prayer models the five daily prayers and computes their times.
//
// The scheduling engine treats prayer-time computation as a pure function:
// (coordinates, method, date) -> DailyTimes. Provider is that function's
// interface; Calculator is the built-in astronomical implementation.
//
// Method names arrive from an untyped preference store, so ParseMethod never
// fails: unrecognized input resolves to DefaultMethod (NorthAmerica), and the
// unsupported "tehran" and "turkey" conventions resolve to MuslimWorldLeague.
package prayer
