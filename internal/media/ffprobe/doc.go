// Package ffprobe runs ffprobe against an uploaded video and exposes the
// fields the subtitle pipeline needs: the primary video stream, its frame
// rate and dimensions, and a duration estimate used to bound SRT validation.
//
// Inspect shells out; Parse decodes captured JSON and is what tests use.
package ffprobe
