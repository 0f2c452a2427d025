// Package frames decodes video into grayscale frames for scene detection.
//
// FFmpegSource pipes raw 8-bit gray frames out of ffmpeg and reads each
// frame's presentation timestamp from the showinfo filter on stderr.
// ImageDirSource replays a directory of still images at a fixed rate.
// Both implement scenes.Source.
package frames
