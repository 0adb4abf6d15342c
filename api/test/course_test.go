package test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/hanifm/coursery/core/course"
	"github.com/hanifm/coursery/core/file"
	"github.com/hanifm/coursery/core/video"
)

type courseTest struct {
	*TestEnv

	seq int
}

// createDraftOK creates a course as the instructor and leaves it in
// draft. The env client ends up logged out.
func (ct *courseTest) createDraftOK(t *testing.T, price int) course.Course {
	t.Helper()

	if err := Login(ct.TestEnv, ct.InstructorEmail, ct.InstructorPass); err != nil {
		t.Fatal(err)
	}

	ct.seq++
	body := jsonBody(course.CourseNew{
		Name:        fmt.Sprintf("Course %d", ct.seq),
		Description: fmt.Sprintf("Description of course %d", ct.seq),
		Price:       price,
	})

	w, err := ct.Client().Post(ct.URL+"/courses", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusCreated {
		t.Fatalf("can't create course: status code %s", w.Status)
	}

	var c course.Course
	if err := json.NewDecoder(w.Body).Decode(&c); err != nil {
		t.Fatalf("cannot unmarshal created course: %v", err)
	}

	if err := Logout(ct.TestEnv); err != nil {
		t.Fatal(err)
	}

	return c
}

// createCourseOK creates a course as the instructor, has the admin
// approve it and returns the published course. The env client ends up
// logged out.
func (ct *courseTest) createCourseOK(t *testing.T, price int) course.Course {
	t.Helper()

	c := ct.createDraftOK(t, price)
	ct.reviewCourseOK(t, c.ID, true)

	return ct.showCourseOK(t, c.ID)
}

// listReviewQueueOK returns the courses waiting for an admin decision.
// The env client ends up logged out.
func (ct *courseTest) listReviewQueueOK(t *testing.T) []course.Course {
	t.Helper()

	if err := Login(ct.TestEnv, ct.AdminEmail, ct.AdminPass); err != nil {
		t.Fatal(err)
	}

	w, err := ct.Client().Get(ct.URL + "/courses/review")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't list review queue: status code %s", w.Status)
	}

	var queue []course.Course
	if err := json.NewDecoder(w.Body).Decode(&queue); err != nil {
		t.Fatalf("cannot unmarshal review queue: %v", err)
	}

	if err := Logout(ct.TestEnv); err != nil {
		t.Fatal(err)
	}

	return queue
}

func (ct *courseTest) inReviewQueue(t *testing.T, courseID string) bool {
	t.Helper()

	for _, c := range ct.listReviewQueueOK(t) {
		if c.ID == courseID {
			return true
		}
	}
	return false
}

func (ct *courseTest) reviewCourseOK(t *testing.T, courseID string, approved bool) {
	t.Helper()

	if err := Login(ct.TestEnv, ct.AdminEmail, ct.AdminPass); err != nil {
		t.Fatal(err)
	}

	body := jsonBody(course.Decision{Approved: approved})
	w, err := ct.Client().Post(ct.URL+"/courses/"+courseID+"/review", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("can't review course: status code %s", w.Status)
	}

	if err := Logout(ct.TestEnv); err != nil {
		t.Fatal(err)
	}
}

func (ct *courseTest) showCourseOK(t *testing.T, courseID string) course.Course {
	t.Helper()

	w, err := ct.Client().Get(ct.URL + "/courses/" + courseID)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't fetch course: status code %s", w.Status)
	}

	var c course.Course
	if err := json.NewDecoder(w.Body).Decode(&c); err != nil {
		t.Fatalf("cannot unmarshal course: %v", err)
	}
	return c
}

func (ct *courseTest) listCoursesOwnedOK(t *testing.T, want []course.Course) {
	t.Helper()

	if err := Login(ct.TestEnv, ct.InstructorEmail, ct.InstructorPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(ct.TestEnv)

	w, err := ct.Client().Get(ct.URL + "/courses/owned")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't list owned courses: status code %s", w.Status)
	}

	var got []course.Course
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("cannot unmarshal owned courses: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d owned courses, want %d", len(got), len(want))
	}

	ids := make(map[string]bool, len(got))
	for _, c := range got {
		ids[c.ID] = true
	}
	for _, c := range want {
		if !ids[c.ID] {
			t.Fatalf("owned courses are missing %s", c.ID)
		}
	}
}

func TestCourseLifecycle(t *testing.T) {
	env, err := NewTestEnv(t, "course_lifecycle_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{TestEnv: env}

	// A fresh course is a draft: invisible to the public until an
	// admin approves it.
	if err := Login(env, env.InstructorEmail, env.InstructorPass); err != nil {
		t.Fatal(err)
	}

	body := jsonBody(course.CourseNew{
		Name:        "Unreviewed",
		Description: "Not yet reviewed",
		Price:       100,
	})
	w, err := env.Client().Post(env.URL+"/courses", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusCreated {
		t.Fatalf("can't create course: status code %s", w.Status)
	}

	var draft course.Course
	if err := json.NewDecoder(w.Body).Decode(&draft); err != nil {
		t.Fatal(err)
	}

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}

	if w, err := env.Client().Get(env.URL + "/courses/" + draft.ID); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusNotFound {
			t.Fatalf("draft visible to the public: status code %s", w.Status)
		}
	}

	ct.reviewCourseOK(t, draft.ID, true)

	published := ct.showCourseOK(t, draft.ID)
	if published.Status != course.Published || !published.Approved {
		t.Fatalf("reviewed course is %s approved=%t, want published and approved", published.Status, published.Approved)
	}

	// Soft delete hides it again; restore brings it back as a draft.
	if err := Login(env, env.InstructorEmail, env.InstructorPass); err != nil {
		t.Fatal(err)
	}

	r, err := http.NewRequest(http.MethodDelete, env.URL+"/courses/"+draft.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if w, err := env.Client().Do(r); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusNoContent {
			t.Fatalf("can't delete course: status code %s", w.Status)
		}
	}

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}

	if w, err := env.Client().Get(env.URL + "/courses/" + draft.ID); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusNotFound {
			t.Fatalf("deleted course still visible: status code %s", w.Status)
		}
	}

	if err := Login(env, env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}

	if w, err := env.Client().Post(env.URL+"/courses/"+draft.ID+"/restore", "application/json", nil); err != nil {
		t.Fatal(err)
	} else {
		defer w.Body.Close()
		if w.StatusCode != http.StatusOK {
			t.Fatalf("can't restore course: status code %s", w.Status)
		}

		var restored course.Course
		if err := json.NewDecoder(w.Body).Decode(&restored); err != nil {
			t.Fatal(err)
		}
		if restored.Status != course.Draft {
			t.Fatalf("restored course is %s, want draft", restored.Status)
		}
	}

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}
}

func TestCourseResubmission(t *testing.T) {
	env, err := NewTestEnv(t, "course_resubmission_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{TestEnv: env}

	draft := ct.createDraftOK(t, 150)

	if !ct.inReviewQueue(t, draft.ID) {
		t.Fatal("new draft is missing from the review queue")
	}

	// Rejection takes the course out of the queue but doesn't kill it:
	// the owner can rework the draft and submit it again.
	ct.reviewCourseOK(t, draft.ID, false)

	if ct.inReviewQueue(t, draft.ID) {
		t.Fatal("rejected course is still in the review queue")
	}

	if err := Login(env, env.InstructorEmail, env.InstructorPass); err != nil {
		t.Fatal(err)
	}

	w, err := env.Client().Get(env.URL + "/courses/" + draft.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("owner can't see rejected course: status code %s", w.Status)
	}

	var rejected course.Course
	if err := json.NewDecoder(w.Body).Decode(&rejected); err != nil {
		t.Fatal(err)
	}
	if !rejected.Rejected || rejected.Status != course.Draft {
		t.Fatalf("course after rejection is %s rejected=%t, want draft and rejected", rejected.Status, rejected.Rejected)
	}

	desc := "Reworked after the review notes"
	r, err := http.NewRequest(http.MethodPut, env.URL+"/courses/"+draft.ID, jsonBody(course.CourseUp{Description: &desc}))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")

	if w, err := env.Client().Do(r); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusOK {
			t.Fatalf("can't update rejected course: status code %s", w.Status)
		}
	}

	w, err = env.Client().Post(env.URL+"/courses/"+draft.ID+"/submit", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't resubmit course: status code %s", w.Status)
	}

	var resubmitted course.Course
	if err := json.NewDecoder(w.Body).Decode(&resubmitted); err != nil {
		t.Fatal(err)
	}
	if resubmitted.Rejected {
		t.Fatal("resubmitted course is still flagged rejected")
	}

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}

	if !ct.inReviewQueue(t, draft.ID) {
		t.Fatal("resubmitted course is missing from the review queue")
	}

	ct.reviewCourseOK(t, draft.ID, true)

	published := ct.showCourseOK(t, draft.ID)
	if published.Status != course.Published || !published.Approved {
		t.Fatalf("resubmitted course after approval is %s approved=%t, want published and approved", published.Status, published.Approved)
	}
	if published.Description != desc {
		t.Fatalf("published description is %q, want %q", published.Description, desc)
	}

	// Published courses have nothing to submit.
	if err := Login(env, env.InstructorEmail, env.InstructorPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(env)

	if w, err := env.Client().Post(env.URL+"/courses/"+draft.ID+"/submit", "application/json", nil); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("published course accepted for review: status code %s", w.Status)
		}
	}
}

func TestCoursePurge(t *testing.T) {
	env, err := NewTestEnv(t, "course_purge_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{TestEnv: env}
	vt := &videoTest{env}
	ft := &fileTest{env}

	c := ct.createCourseOK(t, 400)

	if err := Login(env, env.InstructorEmail, env.InstructorPass); err != nil {
		t.Fatal(err)
	}

	up := vt.initUploadOK(t, c.ID)
	body := jsonBody(video.UploadComplete{
		Videos: []video.VideoNew{{Title: "Intro", AssetID: up.AssetID}},
	})
	if w, err := env.Client().Post(env.URL+"/courses/"+c.ID+"/videos", "application/json", body); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusCreated {
			t.Fatalf("can't complete video upload: status code %s", w.Status)
		}
	}

	key := ft.initFileUploadOK(t, c.ID, "notes.pdf")
	body = jsonBody(file.UploadComplete{
		Files: []file.FileNew{{StorageKey: key, OriginalName: "notes.pdf", Size: 512}},
	})
	if w, err := env.Client().Post(env.URL+"/courses/"+c.ID+"/files", "application/json", body); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusCreated {
			t.Fatalf("can't register file: status code %s", w.Status)
		}
	}

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}

	// Purge only removes courses that were soft-deleted first.
	if err := Login(env, env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}

	purge := func() int {
		r, err := http.NewRequest(http.MethodDelete, env.URL+"/courses/"+c.ID+"/purge", nil)
		if err != nil {
			t.Fatal(err)
		}
		w, err := env.Client().Do(r)
		if err != nil {
			t.Fatal(err)
		}
		w.Body.Close()
		return w.StatusCode
	}

	if code := purge(); code != http.StatusNotFound {
		t.Fatalf("purged a live course: status code %d", code)
	}

	r, err := http.NewRequest(http.MethodDelete, env.URL+"/courses/"+c.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if w, err := env.Client().Do(r); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusNoContent {
			t.Fatalf("can't delete course: status code %s", w.Status)
		}
	}

	if code := purge(); code != http.StatusNoContent {
		t.Fatalf("can't purge deleted course: status code %d", code)
	}

	// The payload is gone for good: restore finds nothing and the
	// cascade took the videos and files rows with it.
	if w, err := env.Client().Post(env.URL+"/courses/"+c.ID+"/restore", "application/json", nil); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusNotFound {
			t.Fatalf("purged course restored: status code %s", w.Status)
		}
	}

	if code := purge(); code != http.StatusNotFound {
		t.Fatalf("second purge found the course: status code %d", code)
	}

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}

	if w, err := env.Client().Get(env.URL + "/courses/" + c.ID); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusNotFound {
			t.Fatalf("purged course still visible: status code %s", w.Status)
		}
	}

	var n int
	if err := env.DB.Get(&n, `SELECT count(*) FROM videos WHERE course_id = $1`, c.ID); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("purge left %d videos rows behind", n)
	}

	if err := env.DB.Get(&n, `SELECT count(*) FROM course_files WHERE course_id = $1`, c.ID); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("purge left %d course_files rows behind", n)
	}
}
