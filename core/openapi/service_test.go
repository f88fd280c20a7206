package openapi

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/schemagate/core/exporter"
)

// mockSource implements Source for testing
type mockSource struct {
	doc        exporter.Document
	generation uint64
	err        error
	calls      int
}

func (m *mockSource) Document(name, version string) (exporter.Document, uint64, error) {
	m.calls++
	if m.err != nil {
		return exporter.Document{}, 0, m.err
	}
	return m.doc, m.generation, nil
}

func newTestService(src *mockSource) *Service {
	return NewService(ServiceConfig{
		Source: src,
		Logger: zerolog.Nop(),
	})
}

func TestNewService(t *testing.T) {
	svc := newTestService(&mockSource{})

	if svc == nil {
		t.Fatal("NewService returned nil")
	}
	if svc.generator == nil {
		t.Error("default generator should be set")
	}
}

func TestGetSpec(t *testing.T) {
	svc := newTestService(&mockSource{doc: createTestDocument(), generation: 1})

	spec, err := svc.GetSpec("foo", "v1", "")
	if err != nil {
		t.Fatalf("GetSpec failed: %v", err)
	}
	if _, ok := spec.Components.Schemas["Widget"]; !ok {
		t.Error("Widget schema missing")
	}
}

func TestGetSpec_Error(t *testing.T) {
	svc := newTestService(&mockSource{err: errors.New("unknown api")})

	if _, err := svc.GetSpec("nope", "v1", ""); err == nil {
		t.Error("expected error")
	}
}

func TestGetSpec_Caching(t *testing.T) {
	src := &mockSource{doc: createTestDocument(), generation: 1}
	svc := newTestService(src)

	first, _ := svc.GetSpec("foo", "v1", "")
	second, _ := svc.GetSpec("foo", "v1", "")
	if first != second {
		t.Error("same generation should return the cached spec")
	}

	src.generation = 2
	third, _ := svc.GetSpec("foo", "v1", "")
	if third == first {
		t.Error("new generation should regenerate the spec")
	}
}

func TestGetSpec_DifferentServerURLs(t *testing.T) {
	svc := newTestService(&mockSource{doc: createTestDocument(), generation: 1})

	a, err := svc.GetSpec("foo", "v1", "http://a.example.com")
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.GetSpec("foo", "v1", "http://b.example.com")
	if err != nil {
		t.Fatal(err)
	}

	if a.Servers[0].URL != "http://a.example.com" {
		t.Errorf("expected server a, got %s", a.Servers[0].URL)
	}
	if b.Servers[0].URL != "http://b.example.com" {
		t.Errorf("expected server b, got %s", b.Servers[0].URL)
	}

	plain, _ := svc.GetSpec("foo", "v1", "")
	if plain.Servers[0].URL != "https://example.com/api" {
		t.Errorf("cached spec must not be modified, got %s", plain.Servers[0].URL)
	}
}

func TestInvalidateCache(t *testing.T) {
	svc := newTestService(&mockSource{doc: createTestDocument(), generation: 1})

	first, _ := svc.GetSpec("foo", "v1", "")
	svc.InvalidateCache()
	second, _ := svc.GetSpec("foo", "v1", "")

	if first == second {
		t.Error("invalidated cache should regenerate the spec")
	}
}
