// Package whisperx runs WhisperX through uvx to transcribe the audio track of
// a video. Audio is first extracted with ffmpeg as mono 16 kHz PCM, then
// WhisperX writes a JSON transcript whose segments are loaded back.
package whisperx
