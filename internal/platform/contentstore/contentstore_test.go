package contentstore

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	data := []byte("code,description\n100,Structure Fire\n")
	locator, err := s.Put(ctx, data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, locator)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Get returned %q; want %q", got, data)
	}
}

func TestMemoryStore_IdenticalBytesSameLocator(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a, _ := s.Put(ctx, []byte("same"))
	b, _ := s.Put(ctx, []byte("same"))
	c, _ := s.Put(ctx, []byte("different"))

	if a != b {
		t.Errorf("locators differ for identical bytes: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("locators collide for different bytes: %s", a)
	}
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	s := NewMemoryStore()

	if _, err := s.Get(context.Background(), "sha256:deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}

func TestMemoryStore_ReturnedBytesAreIsolated(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	locator, _ := s.Put(ctx, []byte("abc"))
	got, _ := s.Get(ctx, locator)
	got[0] = 'z'

	again, _ := s.Get(ctx, locator)
	if string(again) != "abc" {
		t.Errorf("stored bytes mutated: %q", again)
	}
}
