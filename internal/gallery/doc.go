// Package gallery models the shared asset library: the asset records kept in
// data/assets.json and the publisher that mutates the library through sparse
// git working copies. A publish is commit-then-push with bounded optimistic
// retry; when the remote gained commits first, the local work is rebased on
// top and pushed again.
package gallery
