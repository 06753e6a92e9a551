package grounding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestConstrue_SendsRequestAndDecodes(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody construeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"codes":[{"code":"R51","description":"Headache"}]}`))
	}))
	defer srv.Close()

	c := NewPhenoMLClient(srv.URL+"/", "tok", time.Second)
	doc, err := c.Construe(context.Background(), "my head hurts")
	if err != nil {
		t.Fatalf("Construe: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("unexpected Authorization header %q", gotAuth)
	}
	if gotPath != "/construe/extract" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotBody.Text != "my head hurts" || !reflect.DeepEqual(gotBody.TargetSystems, []string{"ICD10", "SNOMED"}) {
		t.Errorf("unexpected body %+v", gotBody)
	}
	if terms := ExtractTerms(doc); !reflect.DeepEqual(terms, []string{"Headache"}) {
		t.Errorf("unexpected terms %v", terms)
	}
}

func TestConstrue_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewPhenoMLClient(srv.URL, "tok", time.Second).Construe(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestConstrue_NonObjectIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["not", "an", "object"]`))
	}))
	defer srv.Close()

	doc, err := NewPhenoMLClient(srv.URL, "tok", time.Second).Construe(context.Background(), "x")
	if err != nil {
		t.Fatalf("Construe: %v", err)
	}
	if len(doc) != 0 {
		t.Errorf("expected empty document, got %v", doc)
	}
}

func TestConstrue_NotConfigured(t *testing.T) {
	_, err := NewPhenoMLClient("", "", 0).Construe(context.Background(), "x")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
