// Package imaging provides the pixel-level operations of the detection node.
//
// This package implements frame preprocessing (letterbox resize and 180 degree
// flip), bounds-checked region cropping, HSV colour thresholding, bounding box
// measurement, and annotation drawing. All operations work with standard Go
// image.Image types and use a coordinate system where (0,0) is at the top-left
// corner, X increases rightward, and Y increases downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Thread Safety
//
// Every function is stateless and may be called concurrently on different
// images. Functions that draw (DrawRect, DrawLine, DrawLabel) mutate their
// destination and must not race with readers of that image.
//
// # Colour Representation
//
// HSV values follow the 8-bit convention used by camera tuning tools:
//   - H: 0-179 (degrees halved)
//   - S: 0-255
//   - V: 0-255
//
// Annotation colours are configured as hex strings "#RRGGBB" or "#RRGGBBAA".
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Regions outside image bounds (ErrRegionOutOfBounds)
//   - Empty regions (x1 >= x2 or y1 >= y2)
//   - File I/O and decoding errors during image loading
//   - Encoding errors during image output
package imaging
