package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newBackendStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/internal/lessons/5", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer svc-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":5,"course_id":10,"is_free":false,"target_gender":"both"}`))
	})
	mux.HandleFunc("/internal/subscriptions/active", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("user_id") == "7" && r.URL.Query().Get("course_id") == "10" {
			w.Write([]byte(`{"active":true}`))
			return
		}
		w.Write([]byte(`{"active":false}`))
	})
	return httptest.NewServer(mux)
}

func TestLessonAPI_Lesson(t *testing.T) {
	srv := newBackendStub(t)
	defer srv.Close()
	api := NewLessonAPI(srv.URL, "svc-token", srv.Client())

	lesson, ok, err := api.Lesson(context.Background(), 5)
	if err != nil {
		t.Fatalf("Lesson: %v", err)
	}
	if !ok {
		t.Fatal("expected lesson 5 to exist")
	}
	if lesson.CourseID != 10 || lesson.Free || lesson.TargetGender != GenderBoth {
		t.Errorf("unexpected lesson: %+v", lesson)
	}
}

func TestLessonAPI_LessonNotFound(t *testing.T) {
	srv := newBackendStub(t)
	defer srv.Close()
	api := NewLessonAPI(srv.URL, "svc-token", srv.Client())

	_, ok, err := api.Lesson(context.Background(), 404)
	if err != nil {
		t.Fatalf("Lesson: %v", err)
	}
	if ok {
		t.Error("unknown lesson should report ok=false")
	}
}

func TestLessonAPI_HasActiveSubscription(t *testing.T) {
	srv := newBackendStub(t)
	defer srv.Close()
	api := NewLessonAPI(srv.URL, "svc-token", srv.Client())

	active, err := api.HasActiveSubscription(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("HasActiveSubscription: %v", err)
	}
	if !active {
		t.Error("user 7 should have an active subscription to course 10")
	}

	active, err = api.HasActiveSubscription(context.Background(), 8, 10)
	if err != nil {
		t.Fatalf("HasActiveSubscription: %v", err)
	}
	if active {
		t.Error("user 8 should not have an active subscription")
	}
}
