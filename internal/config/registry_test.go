package config_test

import (
	"errors"
	"testing"

	"github.com/varnahq/varna/internal/config"
	"github.com/varnahq/varna/pkg/provider/embeddings"
	"github.com/varnahq/varna/pkg/provider/embeddings/mock"
)

func TestRegistryCreateEmbeddings(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	var gotEntry config.ProviderEntry
	reg.RegisterEmbeddings("mock", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		gotEntry = entry
		return &mock.Provider{Model: entry.Model}, nil
	})

	entry := config.ProviderEntry{Name: "mock", Model: "test-model"}
	p, err := reg.CreateEmbeddings(entry)
	if err != nil {
		t.Fatalf("CreateEmbeddings() error = %v", err)
	}
	if p.ModelID() != "test-model" {
		t.Errorf("ModelID() = %q, want %q", p.ModelID(), "test-model")
	}
	if gotEntry.Model != "test-model" {
		t.Errorf("factory received entry %+v", gotEntry)
	}
}

func TestRegistryUnregisteredProvider(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	_, err := reg.CreateEmbeddings(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateEmbeddings() error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistryOverwrite(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterEmbeddings("mock", func(config.ProviderEntry) (embeddings.Provider, error) {
		return &mock.Provider{Model: "first"}, nil
	})
	reg.RegisterEmbeddings("mock", func(config.ProviderEntry) (embeddings.Provider, error) {
		return &mock.Provider{Model: "second"}, nil
	})

	p, err := reg.CreateEmbeddings(config.ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateEmbeddings() error = %v", err)
	}
	if p.ModelID() != "second" {
		t.Errorf("ModelID() = %q, want the later registration to win", p.ModelID())
	}
}
