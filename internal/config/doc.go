// Package config reads scenesub's TOML settings.
//
// Load searches ~/.config/scenesub/config.toml and ./scenesub.toml when no
// path is given, fills unset keys from Default, expands ~ in paths, and takes
// SCENESUB_API_TOKEN and HF_TOKEN from the environment when the file leaves
// them blank. Validate rejects thresholds outside [0, 100], bind addresses
// without a port, and VAD settings WhisperX cannot run with.
package config
