package video

// CanAccess decides whether a viewer may stream a video. It is the
// server-side gate consulted before any playback information leaves the
// API; whatever the UI shows, a video passes through here first.
//
// Hidden videos are never playable, regardless of every other flag:
// instructors stage unpublished content behind Visible=false. Free
// previews and wholly free courses bypass the enrollment check.
func CanAccess(v Video, coursePrice int, isEnrolled bool) bool {
	if !v.Visible {
		return false
	}

	if v.FreePreview {
		return true
	}

	if coursePrice == 0 {
		return true
	}

	return isEnrolled
}
