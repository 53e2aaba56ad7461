package rag

import (
	"context"
	"errors"
	"testing"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

type fakeStore struct {
	chunks []Chunk
	gotK   int
	gotVec []float32
	err    error
}

func (f *fakeStore) Insert(context.Context, Chunk) error { return nil }

func (f *fakeStore) Nearest(_ context.Context, vec []float32, k int) ([]Chunk, error) {
	f.gotVec = vec
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.chunks) {
		return f.chunks[:k], nil
	}
	return f.chunks, nil
}

func (f *fakeStore) DeleteBySource(context.Context, string) error { return nil }

func (f *fakeStore) DistinctSources(context.Context) ([]string, error) { return nil, nil }

func (f *fakeStore) Close() error { return nil }

func TestRetriever_Retrieve(t *testing.T) {
	t.Parallel()

	store := &fakeStore{chunks: []Chunk{
		{ID: "a", Content: "first", Distance: 0.1},
		{ID: "b", Content: "second", Distance: 0.4},
	}}
	emb := &fakeEmbedder{vector: []float32{1, 2, 3}}

	r, err := NewRetriever(emb, store, 3)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	chunks, err := r.Retrieve(context.Background(), "what is pulse", 2)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if store.gotK != 2 {
		t.Errorf("store searched with k=%d, want 2", store.gotK)
	}
	if len(store.gotVec) != 3 {
		t.Errorf("store searched with %d-dim vector, want 3", len(store.gotVec))
	}
}

func TestRetriever_Retrieve_DefaultK(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	r, err := NewRetriever(&fakeEmbedder{vector: []float32{1}}, store, 5)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "q", 0); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if store.gotK != 5 {
		t.Errorf("store searched with k=%d, want the configured default 5", store.gotK)
	}
}

func TestRetriever_Retrieve_EmbedError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("backend down")
	r, err := NewRetriever(&fakeEmbedder{err: wantErr}, &fakeStore{}, 3)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "q", 3); !errors.Is(err, wantErr) {
		t.Errorf("Retrieve() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestNewRetriever_NilDeps(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, &fakeStore{}, 3); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewRetriever(&fakeEmbedder{}, nil, 3); err == nil {
		t.Error("expected error for nil store")
	}
}
