// Package scenes detects visual scene changes in a decoded frame sequence.
//
// Each frame is reduced to a 256-bucket luminance histogram, normalized to
// unit length, and compared with the previous frame's histogram using the
// Bhattacharyya distance. A distance above threshold/100 records the frame's
// presentation timestamp as a scene change. The returned list always starts
// at 0 and is strictly increasing.
//
// Frame decoding lives behind the Reader and Source interfaces; see
// internal/media/frames for the ffmpeg and image-directory implementations.
package scenes
