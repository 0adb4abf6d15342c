package test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/hanifm/coursery/core/file"
)

type fileTest struct {
	*TestEnv
}

// initFileUploadOK asks for a presigned upload; the instructor must be
// logged in.
func (ft *fileTest) initFileUploadOK(t *testing.T, courseID, name string) string {
	t.Helper()

	body := jsonBody(file.UploadInit{OriginalName: name})
	w, err := ft.Client().Post(ft.URL+"/courses/"+courseID+"/files/upload", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusCreated {
		t.Fatalf("can't init file upload: status code %s", w.Status)
	}

	var resp struct {
		StorageKey string `json:"storageKey"`
		UploadURL  string `json:"uploadUrl"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("cannot unmarshal upload init: %v", err)
	}

	if !strings.HasPrefix(resp.StorageKey, "courses/"+courseID+"/") {
		t.Fatalf("storage key %s is not scoped to the course", resp.StorageKey)
	}
	if resp.UploadURL == "" {
		t.Fatal("upload init returned no presigned URL")
	}

	return resp.StorageKey
}

func TestFileAttachments(t *testing.T) {
	env, err := NewTestEnv(t, "file_attachments_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ft := &fileTest{env}
	ct := &courseTest{TestEnv: env}
	wt := &walletTest{env}

	c := ct.createCourseOK(t, 300)

	if err := Login(env, env.InstructorEmail, env.InstructorPass); err != nil {
		t.Fatal(err)
	}

	key1 := ft.initFileUploadOK(t, c.ID, "slides.pdf")
	key2 := ft.initFileUploadOK(t, c.ID, "exercises.zip")

	body := jsonBody(file.UploadComplete{
		Files: []file.FileNew{
			{StorageKey: key1, OriginalName: "slides.pdf", Size: 1024},
			{StorageKey: key2, OriginalName: "exercises.zip", Size: 2048},
		},
	})

	w, err := env.Client().Post(env.URL+"/courses/"+c.ID+"/files", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusCreated {
		t.Fatalf("can't register files: status code %s", w.Status)
	}

	var created []file.File
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}

	if len(created) != 2 || created[0].ID != "file_1" || created[1].ID != "file_2" {
		t.Fatalf("unexpected created files: %+v", created)
	}

	// Keys outside the course prefix are rejected outright.
	bad := jsonBody(file.UploadComplete{
		Files: []file.FileNew{{StorageKey: "secrets/../../etc/passwd", OriginalName: "x", Size: 1}},
	})
	if w, err := env.Client().Post(env.URL+"/courses/"+c.ID+"/files", "application/json", bad); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusBadRequest {
			t.Fatalf("traversal key accepted: status code %s", w.Status)
		}
	}

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}

	// A logged-in but unenrolled student cannot download.
	if err := Login(env, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(env)

	if w, err := env.Client().Get(env.URL + "/courses/" + c.ID + "/files/file_1/download"); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusForbidden {
			t.Fatalf("unenrolled download allowed: status code %s", w.Status)
		}
	}

	wt.topupApprovedOK(t, 300)

	if err := Login(env, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}

	if status := wt.purchase(t, c.ID); status != http.StatusOK {
		t.Fatalf("can't purchase course: status code %d", status)
	}

	w, err = env.Client().Get(env.URL + "/courses/" + c.ID + "/files/file_1/download")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("enrolled download denied: status code %s", w.Status)
	}

	var resp struct {
		DownloadURL string `json:"downloadUrl"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.DownloadURL == "" {
		t.Fatal("download returned no presigned URL")
	}
}
