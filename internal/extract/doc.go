// Package extract implements lazy contract extraction from compiled
// units.
//
// Three extractors cooperate, composed by construction:
//
//   - LazyExtractor decompiles a routine's body on first request and
//     splits it into a contract prefix and residual executable code.
//   - ProxyExtractor wraps another extractor and resolves contracts for
//     abstract routines via companion proxy classes, rewriting the
//     proxy's contract into the abstract routine's context.
//   - AggregateExtractor composes a primary extractor with out-of-band
//     providers for other compiled units that describe the same logical
//     symbols, merging every finding into one contract expressed in the
//     primary unit's vocabulary.
//
// All extractors share a three-state contract store (unresolved, absent,
// present) so a symbol is decompiled or proxy-resolved at most once.
// Sentinels never escape this package: callers see a contract or nil.
//
// Thread-safety: extractors are single-threaded, call-and-return. Stores
// and the aggregator's cycle guard are owned by one extractor instance
// with no internal locking; a concurrent integrator must add its own
// synchronization around each instance.
package extract
