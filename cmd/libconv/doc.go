// Package main hosts the libconv CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration, builds the catalog client,
// converter, and library mutator, and hands them to the pipeline driver.
// `run` performs one pass, `schedule` repeats passes on a cron expression,
// `plan` previews decisions without touching the library, and `check`
// verifies the environment. The process exits non-zero only when the catalog
// cannot be listed, the run lock is held, or configuration is invalid;
// per-document failures are reported in the summary.
package main
