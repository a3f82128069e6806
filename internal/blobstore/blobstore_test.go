package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	exists, err := m.FileExists(ctx, "assets/a1.mp4")
	if err != nil {
		t.Fatalf("FileExists: %v", err)
	}
	if exists {
		t.Fatalf("FileExists: want false for unset key")
	}

	m.Put("assets/a1.mp4", []byte("fake video bytes"))

	exists, err = m.FileExists(ctx, "assets/a1.mp4")
	if err != nil || !exists {
		t.Fatalf("FileExists after Put: want true, got %v err=%v", exists, err)
	}

	rc, err := m.DownloadByKey(ctx, "assets/a1.mp4")
	if err != nil {
		t.Fatalf("DownloadByKey: %v", err)
	}
	defer rc.Close()

	attrs, err := m.Attrs(ctx, "assets/a1.mp4")
	if err != nil {
		t.Fatalf("Attrs: %v", err)
	}
	if attrs.Size != int64(len("fake video bytes")) {
		t.Fatalf("Attrs size: want=%d got=%d", len("fake video bytes"), attrs.Size)
	}

	if err := m.DeleteByKey(ctx, "assets/a1.mp4"); err != nil {
		t.Fatalf("DeleteByKey: %v", err)
	}
	exists, _ = m.FileExists(ctx, "assets/a1.mp4")
	if exists {
		t.Fatalf("FileExists after delete: want false")
	}
}

func TestMemoryStoreUploadFromPathAndSignedURL(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("clip bytes"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if err := m.UploadFromPath(ctx, "assets/clip.mp4", path); err != nil {
		t.Fatalf("UploadFromPath: %v", err)
	}

	url, err := m.GenerateSignedURL(ctx, "assets/clip.mp4", 0)
	if err != nil {
		t.Fatalf("GenerateSignedURL: %v", err)
	}
	if url == "" {
		t.Fatalf("GenerateSignedURL: want non-empty url")
	}
}

func TestMemoryStoreDeleteMissingKeyErrors(t *testing.T) {
	m := NewMemoryStore()
	if err := m.DeleteByKey(context.Background(), "missing"); err == nil {
		t.Fatalf("DeleteByKey: want error for missing key")
	}
}

func TestMemoryStoreSignedURLMissingKeyErrors(t *testing.T) {
	m := NewMemoryStore()
	if _, err := m.GenerateSignedURL(context.Background(), "missing", 0); err == nil {
		t.Fatalf("GenerateSignedURL: want error for missing key")
	}
}
