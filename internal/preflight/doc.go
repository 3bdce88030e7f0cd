// Package preflight provides readiness checks for the directories, external
// binaries, and services the pipeline depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll and CheckSystemDeps at startup and logs every
//     failure before the first job is claimed, so a missing binary or an
//     unwritable directory surfaces immediately instead of mid-pipeline.
//   - The CLI "fieldpress status --full" command renders the same results
//     plus the content service connectivity check, which is kept out of the
//     startup path because it spends a paid API request.
//
// All checks report a result rather than returning an error; callers decide
// whether a failure is fatal.
package preflight
