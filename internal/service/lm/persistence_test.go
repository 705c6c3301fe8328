package lm

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func assertSameModel(t *testing.T, expected, actual ConditionalModel) {
	t.Helper()

	if expected.Kind() != actual.Kind() || expected.N() != actual.N() {
		t.Fatalf("Expected %s n=%d, got %s n=%d", expected.Kind(), expected.N(), actual.Kind(), actual.N())
	}
	if expected.Counts().Stats() != actual.Counts().Stats() {
		t.Fatalf("Expected store stats %+v, got %+v", expected.Counts().Stats(), actual.Counts().Stats())
	}

	for _, context := range expected.Counts().Contexts(expected.N() - 1) {
		for _, token := range expected.Support(context) {
			want := expected.CondProb(token, context)
			got := actual.CondProb(token, context)
			if want != got {
				t.Fatalf("Expected P(%s | %v) = %v after reload, got %v", token, context, want, got)
			}
		}
	}
}

func TestPersistence_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	models := []ConditionalModel{
		mustUnsmoothed(t, 3),
		mustAddOne(t, 2),
		mustInterpolated(t, 3, 2.5),
		mustBackOff(t, 3, 0.4),
	}

	for _, m := range models {
		path := filepath.Join(dir, string(m.Kind())+modelSuffix)
		meta := ModelMetadata{Name: string(m.Kind()), Sentences: 2, Tokens: 10}
		if err := SaveToFile(path, m, meta); err != nil {
			t.Fatalf("Failed to save %s: %v", m.Kind(), err)
		}

		loaded, loadedMeta, err := LoadFromFile(path)
		if err != nil {
			t.Fatalf("Failed to load %s: %v", m.Kind(), err)
		}
		if loadedMeta.Name != meta.Name || loadedMeta.Tokens != 10 {
			t.Fatalf("Expected metadata %+v, got %+v", meta, loadedMeta)
		}
		assertSameModel(t, m, loaded)
	}
}

func TestPersistence_KeepsHyperparameters(t *testing.T) {
	m, err := NewBackOffModel(2, spanishCorpus(), DefaultBackOffConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to build model: %v", err)
	}

	path := filepath.Join(t.TempDir(), "searched"+modelSuffix)
	if err := SaveToFile(path, m, ModelMetadata{Name: "searched"}); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	loaded, _, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	backOff, ok := loaded.(*BackOffModel)
	if !ok {
		t.Fatalf("Expected *BackOffModel, got %T", loaded)
	}
	if backOff.Beta() != m.Beta() {
		t.Fatalf("Expected beta %v, got %v", m.Beta(), backOff.Beta())
	}
	if len(Trace(loaded)) != len(m.Trace()) {
		t.Fatalf("Expected %d trace steps, got %d", len(m.Trace()), len(Trace(loaded)))
	}
	if backOff.Denom(key("come")) != m.Denom(key("come")) {
		t.Fatalf("Expected cached denominators to survive reload")
	}
}

func TestModelPersistence(t *testing.T) {
	p, err := NewModelPersistence(filepath.Join(t.TempDir(), "models"), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create persistence: %v", err)
	}

	m := mustInterpolated(t, 2, 1.0)
	meta := ModelMetadata{ID: "abc", Name: "spanish", CreatedAt: time.Now().UTC()}
	if err := p.SaveModel(m, meta); err != nil {
		t.Fatalf("Failed to save model: %v", err)
	}

	if !p.ModelExists("spanish") {
		t.Fatalf("Expected model to exist")
	}
	names, err := p.ListModels()
	if err != nil {
		t.Fatalf("Failed to list models: %v", err)
	}
	if len(names) != 1 || names[0] != "spanish" {
		t.Fatalf("Expected [spanish], got %v", names)
	}

	loaded, loadedMeta, err := p.LoadModel("spanish")
	if err != nil {
		t.Fatalf("Failed to load model: %v", err)
	}
	if loadedMeta.ID != "abc" {
		t.Fatalf("Expected ID abc, got %s", loadedMeta.ID)
	}
	assertSameModel(t, m, loaded)

	if err := p.DeleteModel("spanish"); err != nil {
		t.Fatalf("Failed to delete model: %v", err)
	}
	if p.ModelExists("spanish") {
		t.Fatalf("Expected model to be deleted")
	}
	if _, _, err := p.LoadModel("spanish"); err == nil {
		t.Fatalf("Expected error loading a deleted model")
	}
}
