package search

// Tracker hands out monotonically increasing request tokens. A response is
// only actionable while its token is still the latest one issued.
//
// The zero value is ready to use. Tracker is not safe for concurrent use; it
// lives inside a bubbletea model and is only touched from Update.
type Tracker struct {
	latest uint64
}

// Next issues a new token, superseding every earlier one
func (t *Tracker) Next() uint64 {
	t.latest++
	return t.latest
}

// Current reports whether tok is the latest token issued
func (t *Tracker) Current(tok uint64) bool {
	return tok != 0 && tok == t.latest
}

// Invalidate supersedes every outstanding token without issuing a usable one
func (t *Tracker) Invalidate() {
	t.latest++
}
