// Package gitcli wraps the git CLI with the handful of primitives the
// repository publisher needs: sparse blobless clone, add, commit, push,
// fetch, and rebase. Push rejections caused by a diverged remote are
// classified as ErrPushConflict so the publisher can run its optimistic
// fetch-rebase-push retry loop.
package gitcli
