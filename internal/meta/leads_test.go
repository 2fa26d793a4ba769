package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
)

// endlessLeads serves pages of pageSize leads that always advertise a next page.
func endlessLeads(t *testing.T, pageSize int, requests *int32) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(requests, 1)
		if r.URL.Path != "/v19.0/form1/leads" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("after"))
		data := make([]Lead, pageSize)
		for i := range data {
			data[i] = Lead{ID: strconv.Itoa(offset + i)}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data":   data,
			"paging": map[string]any{"next": fmt.Sprintf("%s/v19.0/form1/leads?after=%d&page=%d", srv.URL, offset+pageSize, n)},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchAllLeadsStopsAtCap(t *testing.T) {
	tests := []struct {
		name         string
		pageSize     int
		wantRequests int32
	}{
		{"pages divide cap", 100, 10},
		{"last page truncated", 30, 34},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests int32
			srv := endlessLeads(t, tt.pageSize, &requests)
			c := NewGraphClient(Config{GraphBase: srv.URL, GraphVersion: "v19.0", PageSize: tt.pageSize})

			leads, err := c.FetchAllLeads(context.Background(), "tok", "form1")
			if err != nil {
				t.Fatal(err)
			}
			if len(leads) != DefaultMaxLeads {
				t.Fatalf("got %d leads, want %d", len(leads), DefaultMaxLeads)
			}
			if requests != tt.wantRequests {
				t.Errorf("requests = %d, want %d", requests, tt.wantRequests)
			}
			if leads[999].ID != "999" {
				t.Errorf("last lead = %q", leads[999].ID)
			}
		})
	}
}

func TestFetchAllLeadsPartialOnPageError(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"data":   []Lead{{ID: "1"}, {ID: "2"}},
				"paging": map[string]any{"next": srv.URL + "/v19.0/form1/leads?after=2"},
			})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid cursor","type":"OAuthException","code":100}}`))
	}))
	defer srv.Close()

	c := NewGraphClient(Config{GraphBase: srv.URL, GraphVersion: "v19.0"})
	leads, err := c.FetchAllLeads(context.Background(), "tok", "form1")
	if err != nil {
		t.Fatalf("page error leaked: %v", err)
	}
	if len(leads) != 2 {
		t.Errorf("got %d leads, want the 2 collected before the error", len(leads))
	}
}

func TestFetchAllLeadsErrorFieldOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"expired","type":"OAuthException","code":190}}`))
	}))
	defer srv.Close()

	c := NewGraphClient(Config{GraphBase: srv.URL, GraphVersion: "v19.0"})
	leads, err := c.FetchAllLeads(context.Background(), "tok", "form1")
	if err != nil || len(leads) != 0 {
		t.Errorf("leads=%d err=%v", len(leads), err)
	}
}

func TestFetchAllLeadsExhausts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("access_token"); got != "tok" {
			t.Errorf("access_token = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []Lead{{ID: "a"}, {ID: "b"}, {ID: "c"}}})
	}))
	defer srv.Close()

	c := NewGraphClient(Config{GraphBase: srv.URL, GraphVersion: "v19.0"})
	leads, _ := c.FetchAllLeads(context.Background(), "tok", "form1")
	if len(leads) != 3 {
		t.Errorf("got %d leads", len(leads))
	}
}

func TestGraphAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`))
	}))
	defer srv.Close()

	c := NewGraphClient(Config{GraphBase: srv.URL})
	_, err := c.FetchLead(context.Background(), "bad", "123")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %T %v", err, err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Code != 190 {
		t.Errorf("api error = %+v", apiErr)
	}
}
