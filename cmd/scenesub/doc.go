// Command scenesub generates SRT subtitles whose cue end times are clipped
// at visual scene changes.
//
// Subcommands cover one-shot generation from a local file (generate), scene
// detection on its own (scenes), the HTTP upload service (serve), job history
// (jobs), configuration management (config), and environment checks (status).
package main
