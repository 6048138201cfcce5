package provider

import (
	"io"
	"testing"
)

func drainReplay(t *testing.T, s Stream) []string {
	t.Helper()
	var chunks []string
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			return chunks
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		chunks = append(chunks, chunk)
	}
}

func TestReplayChunking(t *testing.T) {
	s := NewReplay("abcdefghij", 4)
	chunks := drainReplay(t, s)

	want := []string{"abcd", "efgh", "ij"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks %v, want %v", len(chunks), chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestReplayRuneSafe(t *testing.T) {
	s := NewReplay("héllo wörld", 3)
	var got string
	for _, c := range drainReplay(t, s) {
		got += c
	}
	if got != "héllo wörld" {
		t.Errorf("reassembled %q", got)
	}
}

func TestReplayEmpty(t *testing.T) {
	s := NewReplay("", 4)
	if _, err := s.Recv(); err != io.EOF {
		t.Errorf("expected immediate EOF, got %v", err)
	}
}

func TestReplayClose(t *testing.T) {
	s := NewReplay("abcdef", 2)
	if _, err := s.Recv(); err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := s.Recv(); err != io.EOF {
		t.Errorf("Recv after Close = %v, want EOF", err)
	}
}

func TestReplayDefaultChunkSize(t *testing.T) {
	s := NewReplay("short", 0)
	chunks := drainReplay(t, s)
	if len(chunks) != 1 || chunks[0] != "short" {
		t.Errorf("got %v", chunks)
	}
}
