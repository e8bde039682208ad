package domain

// Trigger is a repository event that may start a pipeline run
type Trigger struct {
	Event  EventKind
	Branch string
}

// Matches reports whether the trigger's branch is on the watch-list.
// Branch comparison is exact; there is no glob or prefix matching.
func (t Trigger) Matches(watch []string) bool {
	if t.Event != EventPush && t.Event != EventPullRequest {
		return false
	}
	for _, b := range watch {
		if t.Branch == b {
			return true
		}
	}
	return false
}
