// Package bundling groups co-occurring service needs into a single depot
// visit and recommends charge-start timing against the energy price
// schedule. Bundled steps run shortest first so partial capacity frees up
// as early as possible.
package bundling
