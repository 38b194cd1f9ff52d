package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctellolasalle/RondinLS/internal/agent/prefs"
	"github.com/ctellolasalle/RondinLS/internal/agent/session"
	"github.com/ctellolasalle/RondinLS/internal/models"
)

func newLoggedInSession(t *testing.T) *session.Session {
	t.Helper()
	sess := session.New(prefs.NewFileStore(filepath.Join(t.TempDir(), "agent.json")))
	if err := sess.Save("device-token", models.User{ID: 7}); err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestSubmitScanWireFormat(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/scans" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("body not JSON: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, newLoggedInSession(t), slog.New(slog.NewTextHandler(io.Discard, nil)))

	lat := -34.6
	rec := models.ScanRecord{
		LocalID:    "local-1",
		SiteID:     3,
		OperatorID: 7,
		Fecha:      "2025-08-18 01:00:00",
		Latitud:    &lat,
		SyncStatus: models.SyncPending,
	}
	if err := c.SubmitScan(context.Background(), rec); err != nil {
		t.Fatalf("SubmitScan() failed: %v", err)
	}

	if gotAuth != "Bearer device-token" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotBody["id_sitio"] != float64(3) || gotBody["fecha"] != "2025-08-18 01:00:00" {
		t.Fatalf("payload = %v", gotBody)
	}
	// Device-local bookkeeping never crosses the wire.
	for _, key := range []string{"localId", "syncStatus", "id_usuario"} {
		if _, ok := gotBody[key]; ok {
			t.Errorf("payload leaks %q", key)
		}
	}
	if _, ok := gotBody["longitud"]; ok {
		t.Error("unset longitud serialized")
	}
}

func TestSubmitScanUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, newLoggedInSession(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := c.SubmitScan(context.Background(), models.ScanRecord{SiteID: 1, Fecha: "2025-08-18 01:00:00"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestLoginDoesNotStoreCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"token": "fresh-token",
			"user":  models.User{ID: 9, Nombre: "Guardia", Rol: models.RolUsuario},
		})
	}))
	defer srv.Close()

	sess := session.New(prefs.NewFileStore(filepath.Join(t.TempDir(), "agent.json")))
	c := New(srv.URL, 5*time.Second, sess, slog.New(slog.NewTextHandler(io.Discard, nil)))

	token, user, err := c.Login(context.Background(), "g@lasalle.edu", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if token != "fresh-token" || user.ID != 9 {
		t.Fatalf("login = %q, %+v", token, user)
	}

	// Persisting is the caller's job; Login itself must not touch the session.
	if _, err := sess.Token(); !errors.Is(err, session.ErrNoCredentials) {
		t.Fatalf("session token err = %v, want ErrNoCredentials", err)
	}
}

func TestOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("OK"))
	}))

	c := New(srv.URL, 5*time.Second, newLoggedInSession(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !c.Online(context.Background()) {
		t.Fatal("Online() = false against a healthy server")
	}

	srv.Close()
	if c.Online(context.Background()) {
		t.Fatal("Online() = true against a closed server")
	}
}
