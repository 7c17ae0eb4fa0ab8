// Package fsl wraps the FSL command-line tools the pipeline sequences:
// bet2, fast, flirt, fnirt, fslroi, fslstats, applywarp, and probtrackx2.
// Clients validate inputs before invoking anything and route every call
// through the shared executor so tests can intercept argv.
package fsl
