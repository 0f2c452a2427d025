// Package preflight provides readiness checks for the external binaries,
// directories, and job database scenesub depends on.
//
// These checks run in two contexts:
//   - "scenesub serve" calls RunAll before accepting uploads and refuses to
//     start when a required directory is unusable.
//   - The CLI "scenesub status" command renders every result, including the
//     optional ones.
package preflight
