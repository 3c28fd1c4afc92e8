package tiler

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrInvalidConfiguration is returned when a tile size and overlap cannot produce a positive step
var ErrInvalidConfiguration = errors.New("invalid tiling configuration")

// ErrImageTooSmall is returned when tiles-per-image sizing leaves no room for a tile
var ErrImageTooSmall = errors.New("image too small for requested tile count")

// Overlap is the span shared by consecutive tiles along one axis, either in
// pixels or as a fraction of the tile size. At most one of the two is set.
type Overlap struct {
	Pixels   int
	Fraction float64
}

// OverlapPixels returns an overlap of n pixels
func OverlapPixels(n int) Overlap {
	return Overlap{Pixels: n}
}

// OverlapFraction returns an overlap of f times the tile size
func OverlapFraction(f float64) Overlap {
	return Overlap{Fraction: f}
}

// Resolve converts the overlap to pixels for a tile of the given size
func (o Overlap) Resolve(tileSize int) (int, error) {
	if o.Pixels != 0 && o.Fraction != 0 {
		return 0, fmt.Errorf("%w: overlap set both in pixels (%d) and as fraction (%g)", ErrInvalidConfiguration, o.Pixels, o.Fraction)
	}
	if o.Pixels < 0 || o.Fraction < 0 {
		return 0, fmt.Errorf("%w: negative overlap", ErrInvalidConfiguration)
	}
	if o.Fraction >= 1 {
		return 0, fmt.Errorf("%w: overlap fraction %g must be below 1", ErrInvalidConfiguration, o.Fraction)
	}
	if o.Fraction > 0 {
		return int(o.Fraction * float64(tileSize)), nil
	}
	return o.Pixels, nil
}

// Config describes how source images are cut into tiles
type Config struct {
	TileWidth  int
	TileHeight int
	Overlap    Overlap

	// TilesPerImage, when positive, derives a square tile size per image
	// from the shorter side instead of using TileWidth/TileHeight.
	TilesPerImage int
}

// Validate checks the parts of the configuration that do not depend on a particular image
func (c Config) Validate() error {
	if c.TilesPerImage < 0 {
		return fmt.Errorf("%w: tiles per image must not be negative", ErrInvalidConfiguration)
	}
	if c.TilesPerImage > 0 {
		_, err := c.Overlap.Resolve(1)
		return err
	}
	if c.TileWidth <= 0 || c.TileHeight <= 0 {
		return fmt.Errorf("%w: tile size %dx%d must be positive", ErrInvalidConfiguration, c.TileWidth, c.TileHeight)
	}
	if _, err := Step(c.TileWidth, c.Overlap); err != nil {
		return err
	}
	_, err := Step(c.TileHeight, c.Overlap)
	return err
}

// TileSize returns the tile size used for an image of the given dimensions
func (c Config) TileSize(width, height int) (int, int, error) {
	if c.TilesPerImage <= 0 {
		return c.TileWidth, c.TileHeight, nil
	}
	perSide := int(math.Sqrt(float64(c.TilesPerImage)))
	if perSide < 1 {
		perSide = 1
	}
	size := min(width, height) / perSide
	if size <= 0 {
		return 0, 0, fmt.Errorf("%w: %dx%d with %d tiles", ErrImageTooSmall, width, height, c.TilesPerImage)
	}
	return size, size, nil
}

// Step returns the distance between consecutive tile origins along an axis
func Step(tileSize int, overlap Overlap) (int, error) {
	px, err := overlap.Resolve(tileSize)
	if err != nil {
		return 0, err
	}
	step := tileSize - px
	if step <= 0 {
		return 0, fmt.Errorf("%w: step %d (tile %d - overlap %d) must be positive", ErrInvalidConfiguration, step, tileSize, px)
	}
	return step, nil
}

// TileSpec is one tile rectangle inside the source pixel grid
type TileSpec struct {
	Index int
	Rect  image.Rectangle
}

// AxisStarts returns the tile origins along one axis and the tile length used on it.
// The first origin is 0, consecutive origins are step apart and the last one is
// shifted back to dim-tile so it ends exactly on the edge. An axis shorter than
// the tile gets a single origin and the full axis length.
func AxisStarts(dim, tile, step int) ([]int, int) {
	if dim <= tile {
		return []int{0}, dim
	}
	var starts []int
	for s := 0; s+tile < dim; s += step {
		starts = append(starts, s)
	}
	last := dim - tile
	if starts[len(starts)-1] != last {
		starts = append(starts, last)
	}
	return starts, tile
}

// Grid computes the row-major tile specs covering a width x height image
func Grid(width, height int, cfg Config) ([]TileSpec, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}
	tw, th, err := cfg.TileSize(width, height)
	if err != nil {
		return nil, err
	}
	stepX, err := Step(tw, cfg.Overlap)
	if err != nil {
		return nil, err
	}
	stepY, err := Step(th, cfg.Overlap)
	if err != nil {
		return nil, err
	}

	xs, w := AxisStarts(width, tw, stepX)
	ys, h := AxisStarts(height, th, stepY)

	specs := make([]TileSpec, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			specs = append(specs, TileSpec{
				Index: len(specs),
				Rect:  image.Rect(x, y, x+w, y+h),
			})
		}
	}
	return specs, nil
}

// Tileable reports whether an axis of length dim is covered by whole steps,
// i.e. the last tile needs no backward shift.
func Tileable(dim, tile, step int) bool {
	return dim >= tile && (dim-tile)%step == 0
}

// RecommendedLength returns the largest length not above dim that tiles
// without a shifted last tile. An axis shorter than a tile is returned as is.
func RecommendedLength(dim, tile, step int) int {
	if dim < tile || step <= 0 {
		return dim
	}
	return min(((dim-tile)/step)*step+tile, dim)
}

// RecommendedCrop returns the largest size not above width x height that tiles
// without a shifted last tile. Images smaller than a tile are returned as is.
func RecommendedCrop(width, height, tile, step int) (int, int) {
	if width < tile || height < tile {
		return width, height
	}
	return RecommendedLength(width, tile, step), RecommendedLength(height, tile, step)
}
