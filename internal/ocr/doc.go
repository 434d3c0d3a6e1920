// Package ocr reads text from small image regions using Tesseract.
//
// The Reader wraps a single gosseract client and serializes access to it;
// Tesseract handles are not safe for concurrent use. Regions are handed to
// Tesseract as in-memory PNG data, so no temporary files are written.
//
// # Prerequisites
//
// Tesseract and the language data must be installed on the host:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// A non-default data directory can be configured with Config.TessdataPrefix.
//
// # Results
//
// Read returns one string per recognised word, in reading order. Words below
// Config.MinConfidence are dropped. When Tesseract cannot produce word boxes
// the full page text is split on whitespace instead.
package ocr
