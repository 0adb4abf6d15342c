package test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/hanifm/coursery/core/token"
	"github.com/hanifm/coursery/core/user"
)

func TestSignupAndRecovery(t *testing.T) {
	env, err := NewTestEnv(t, "signup_recovery_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	const email = "newcomer@test.dev"
	const pass = "first-password"
	const newPass = "second-password"

	body := jsonBody(user.UserNew{
		Name:     "Newcomer",
		Email:    email,
		Password: pass,
	})
	w, err := env.Client().Post(env.URL+"/auth/signup", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	w.Body.Close()

	if w.StatusCode != http.StatusCreated {
		t.Fatalf("can't sign up: status code %s", w.Status)
	}

	// Duplicate emails are rejected.
	dup := jsonBody(user.UserNew{Name: "Clone", Email: email, Password: pass})
	if w, err := env.Client().Post(env.URL+"/auth/signup", "application/json", dup); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusConflict {
			t.Fatalf("duplicate signup: status code %s", w.Status)
		}
	}

	// Nobody may sign themselves up as an admin: the role is silently
	// downgraded to student.
	adm := jsonBody(user.UserNew{Name: "Sneaky", Email: "sneaky@test.dev", Password: pass, Role: "ADMIN"})
	if w, err := env.Client().Post(env.URL+"/auth/signup", "application/json", adm); err != nil {
		t.Fatal(err)
	} else {
		defer w.Body.Close()
		if w.StatusCode != http.StatusCreated {
			t.Fatalf("can't sign up: status code %s", w.Status)
		}

		var u user.User
		if err := json.NewDecoder(w.Body).Decode(&u); err != nil {
			t.Fatal(err)
		}
		if u.Role != "STUDENT" {
			t.Fatalf("signup granted role %s, want STUDENT", u.Role)
		}
	}

	if err := Login(env, email, pass); err != nil {
		t.Fatal(err)
	}
	if err := Logout(env); err != nil {
		t.Fatal(err)
	}

	// Password recovery: request a token, mail lands in the fake
	// mailer, reset, log in with the new password.
	tok := jsonBody(token.TokenNew{Email: email, Scope: token.ScopeRecovery})
	if w, err := env.Client().Post(env.URL+"/tokens", "application/json", tok); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusAccepted {
			t.Fatalf("can't request recovery token: status code %s", w.Status)
		}
	}

	// The mail goes out on a background goroutine.
	var plaintext string
	deadline := time.Now().Add(5 * time.Second)
	for {
		env.Mailer.mu.Lock()
		plaintext = env.Mailer.Recovery[email]
		env.Mailer.mu.Unlock()

		if plaintext != "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("recovery email never sent")
		}
		time.Sleep(25 * time.Millisecond)
	}

	rec := jsonBody(token.Recovery{Token: plaintext, Password: newPass})
	if w, err := env.Client().Post(env.URL+"/tokens/recover", "application/json", rec); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode != http.StatusNoContent {
			t.Fatalf("can't recover password: status code %s", w.Status)
		}
	}

	// The old password is gone, the token is single-use.
	if err := Login(env, email, pass); err == nil {
		t.Fatal("old password still works after recovery")
	}
	if err := Login(env, email, newPass); err != nil {
		t.Fatal(err)
	}
	if err := Logout(env); err != nil {
		t.Fatal(err)
	}

	replay := jsonBody(token.Recovery{Token: plaintext, Password: "third-password"})
	if w, err := env.Client().Post(env.URL+"/tokens/recover", "application/json", replay); err != nil {
		t.Fatal(err)
	} else {
		w.Body.Close()
		if w.StatusCode == http.StatusNoContent {
			t.Fatal("recovery token was accepted twice")
		}
	}
}
