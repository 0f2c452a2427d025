// Package subtitles turns transcript segments and scene-change timestamps into
// SubRip subtitles.
//
// Compose clips each segment at the first scene change that falls strictly
// inside it, so a caption never lingers across a cut. FormatTimestamp and
// WriteSRT serialize the resulting cues; ParseSRT and ValidateSRT read them
// back for verification.
//
// Service wires the whole pipeline for a video: ffprobe, scene detection and
// WhisperX transcription in parallel, composition, and an atomic SRT write.
package subtitles
