// Package detection validates and measures object-detector output.
//
// This package is the decision core of the node. It takes the raw boxes an
// external Detector produced for a cached frame, applies a mode-specific gate
// to each one, measures the survivors relative to the frame, and draws an
// annotated debug frame.
//
// # Modes
//
// A request names one of three targets:
//
//   - "stop": stop signs. Each box is cropped and read by a TextReader; boxes
//     whose text does not contain STOP are rejected as fakes.
//   - "person": people. Each box is cropped and thresholded for a
//     high-visibility vest colour; the mask is published but never gates.
//   - "tire": tires. No extra gate.
//
// Any other target is answered with a zero result and leaves the frame cache
// untouched.
//
// # Pipeline
//
//  1. Handler parses the target and takes the cached frame (consume once).
//  2. The mode's Route selects the detector model and class filter.
//  3. Detector.Predict runs synchronously on the frame.
//  4. Analyzer gates, counts and measures each box, then publishes the
//     annotated frame.
//  5. Detector transient resources are released.
//
// # Results
//
// A Result carries Count and Size. Count is -1 when no frame was cached, 0
// for an unknown mode or when nothing qualified. Size is the largest box area
// as a percentage (0-100) of the frame area; ties keep the first box.
//
// # Error Handling
//
// Boxes that fall outside the frame are skipped and logged (ErrRegionCrop).
// Failures of the external Detector or TextReader abort the request and are
// returned wrapped in ErrInference or ErrTextRecognition. The frame has
// already been consumed at that point, so a retry needs a fresh frame.
package detection
