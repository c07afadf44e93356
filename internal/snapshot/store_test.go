package snapshot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "snapshots"))
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	return store
}

func TestSaveFailureRoundTrip(t *testing.T) {
	store := newTestStore(t)
	png := []byte("\x89PNG fake")

	if err := store.SaveFailure("ABCDEFGHIJ", "TIMEOUT", "[ABCDEFGHIJ] page load timeout", png); err != nil {
		t.Fatalf("SaveFailure() = %v", err)
	}

	metas, err := store.List("")
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("List() returned %d snapshots; want 1", len(metas))
	}
	meta := metas[0]
	if meta.ShareID != "ABCDEFGHIJ" || meta.Code != "TIMEOUT" || meta.Format != "png" || meta.SizeBytes != len(png) {
		t.Fatalf("meta = %+v", meta)
	}
	if meta.CreatedAt.IsZero() {
		t.Fatal("CreatedAt not set")
	}

	data, format, err := store.ReadImage(meta.ID)
	if err != nil {
		t.Fatalf("ReadImage() = %v", err)
	}
	if format != "png" || !bytes.Equal(data, png) {
		t.Fatalf("ReadImage() = %q, %q", data, format)
	}
}

func TestListNewestFirstAndFilters(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, shareID := range []string{"one", "two", "one"} {
		if _, err := store.Save(Meta{ShareID: shareID, CreatedAt: base.Add(time.Duration(i) * time.Minute)}, []byte{1}); err != nil {
			t.Fatalf("Save() = %v", err)
		}
	}

	all, err := store.List("")
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(all) != 3 || !all[0].CreatedAt.After(all[1].CreatedAt) || !all[1].CreatedAt.After(all[2].CreatedAt) {
		t.Fatalf("List() = %+v; want 3 newest first", all)
	}

	ones, err := store.List("one")
	if err != nil {
		t.Fatalf("List(one) = %v", err)
	}
	if len(ones) != 2 {
		t.Fatalf("List(one) returned %d; want 2", len(ones))
	}
	for _, m := range ones {
		if m.ShareID != "one" {
			t.Fatalf("List(one) returned share %q", m.ShareID)
		}
	}
}

func TestGetRejectsInvalidAndUnknownIDs(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Get("../etc/passwd"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("Get() = %v; want ErrInvalidID", err)
	}
	if _, err := store.Get("123e4567-e89b-12d3-a456-426614174000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() = %v; want ErrNotFound", err)
	}
	if _, _, err := store.ReadImage("123e4567-e89b-12d3-a456-426614174000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadImage() = %v; want ErrNotFound", err)
	}
}

func TestListSkipsCorruptSidecars(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Save(Meta{ShareID: "ok"}, []byte{1}); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.Dir(), "junk.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}

	metas, err := store.List("")
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(metas) != 1 || metas[0].ShareID != "ok" {
		t.Fatalf("List() = %+v; want only the valid snapshot", metas)
	}
}

func TestDeleteRemovesFilesWhenImageMissing(t *testing.T) {
	store := newTestStore(t)
	meta, err := store.Save(Meta{ShareID: "gone"}, []byte{1})
	if err != nil {
		t.Fatalf("Save() = %v", err)
	}
	if err := os.Remove(filepath.Join(store.Dir(), meta.ID+".png")); err != nil {
		t.Fatalf("Remove() = %v", err)
	}

	if err := store.Delete(meta.ID); err != nil {
		t.Fatalf("Delete() = %v; want nil", err)
	}
	if _, err := store.Get(meta.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after Delete = %v; want ErrNotFound", err)
	}
}
