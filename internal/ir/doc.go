// Package ir provides the object model for compiled units and the
// behavioral contracts embedded in them.
//
// This package contains type definitions and structural operations only
// (resolution, merge, copy, canonical keys). All other internal packages
// import ir; ir imports nothing internal. This ensures ir remains the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Units are immutable once loaded; extraction never mutates a unit
//   - Contract merge is monoidal: concatenation plus purity OR, never
//     replacement
//   - Deep copies are fully fresh trees - a copied contract shares no
//     nodes with its source
//   - Symbol keys are content-addressed (domain-separated SHA-256 over a
//     canonical, NFC-normalized rendering)
package ir
