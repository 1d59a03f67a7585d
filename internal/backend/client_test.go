package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dotflow/internal/models"
)

func TestClientPlannedRoundTrip(t *testing.T) {
	t.Parallel()
	var gotOrder []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /api/planned/2025-03-10":
			json.NewEncoder(w).Encode([]models.PlannedQueueItem{
				{ID: "p1", TaskID: "t1", Date: "2025-03-10", Position: 1, Status: models.PlannedPending},
			})
		case "POST /api/planned/2025-03-10/generate":
			var body struct {
				Order []string `json:"order"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			gotOrder = body.Order
			w.WriteHeader(http.StatusAccepted)
		case "DELETE /api/planned/2025-03-10":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 60)
	ctx := context.Background()

	items, err := c.GetPlannedForDate(ctx, "2025-03-10")
	if err != nil {
		t.Fatalf("GetPlannedForDate: %v", err)
	}
	if len(items) != 1 || items[0].TaskID != "t1" {
		t.Fatalf("unexpected items: %+v", items)
	}

	if err := c.GeneratePlannedForDate(ctx, "2025-03-10", []string{"t1", "t2"}); err != nil {
		t.Fatalf("GeneratePlannedForDate: %v", err)
	}
	if len(gotOrder) != 2 || gotOrder[0] != "t1" {
		t.Fatalf("order not sent in full: %v", gotOrder)
	}

	if err := c.ClearPlannedForDate(ctx, "2025-03-10"); err != nil {
		t.Fatalf("ClearPlannedForDate: %v", err)
	}
}

func TestClientErrorIncludesBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "task not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 60)
	err := c.DeleteTask(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "task not found"; !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q does not carry backend message %q", err, want)
	}
}

func TestClientUpdatePrioritiesSendsWholeList(t *testing.T) {
	t.Parallel()
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/priorities" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			OrderedIDs []string `json:"ordered_ids"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		got = body.OrderedIDs
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 60)
	if err := c.UpdatePriorities(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatalf("UpdatePriorities: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("backend received %v, want the full ordered list", got)
	}
}
