// Package placedb holds the static placement database consumed by the
// optimization core: object geometry and kinds, the placement region, the
// net/pin connectivity index in both of its encodings, and the optional
// pin-to-object offset map.
//
// Position arrays are flat: the x coordinates of all objects followed by the
// y coordinates, so object i lives at pos[i] and pos[n+i].
package placedb
