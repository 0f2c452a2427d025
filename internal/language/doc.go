// Package language normalizes user-supplied language names and codes into the
// ISO 639-1 codes WhisperX accepts.
package language
