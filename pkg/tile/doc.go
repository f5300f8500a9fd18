// Package tile converts a bounding box and zoom level into an ordered list of
// tile ids covering it.
//
// Two tiling schemas are supported:
//
//   - SchemaHere: linear equirectangular grid. Level L has 2^(L+1) columns and
//     2^L rows; row 0 is the southernmost row.
//   - SchemaWeb: spherical mercator grid. Level L has 2^L columns and rows;
//     row 0 is the northernmost row. Latitudes are clamped to MaxLatitude.
//
// Tile ids have the form "{level}_{col}_{row}". Tiles are returned in a square
// spiral starting at the centre of the requested area, so the tiles a user is
// most likely looking at are loaded first:
//
//	ids, err := tile.Decompose(geom.Extent{5.8, 47.2, 15.1, 55.1}, 8, tile.SchemaHere)
package tile
