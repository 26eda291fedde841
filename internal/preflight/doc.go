// Package preflight provides readiness checks for the library directory and
// the external tools libconv depends on.
//
// These checks run in two contexts:
//   - `libconv check` runs RunAll and renders every result.
//   - `libconv run` runs RunAll first and logs failures as warnings; the run
//     itself decides what is fatal (only an unlistable catalog is).
package preflight
