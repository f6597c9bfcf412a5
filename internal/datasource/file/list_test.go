package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestListDatasets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"b_covid.CSV", "a_mpox.json", "notes.txt", "ebola.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "archive.csv"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ListDatasets(dir)
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a_mpox.json"),
		filepath.Join(dir, "b_covid.CSV"),
		filepath.Join(dir, "ebola.csv"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestListDatasets_MissingDir(t *testing.T) {
	t.Parallel()

	_, err := ListDatasets(filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestLocal_Open(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "x.csv")
	if err := os.WriteFile(path, []byte("a,b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rc, err := NewLocal(path).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rc.Close()

	_, err = NewLocal(path + ".missing").Open(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}

func TestLocal_OpenCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLocal("whatever").Open(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
