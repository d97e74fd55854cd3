// Package geometry maps map coordinates onto the zone grid.
//
// Everything here is pure: positions, viewports, cells, and the distance
// tests used by proximity clustering. Cells use floor division so that
// negative coordinates land in negative cells instead of collapsing onto
// cell zero.
package geometry
