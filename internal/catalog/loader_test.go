package catalog

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/modelstore/internal/registry"
	"github.com/starford/modelstore/internal/storage"
)

// loaderTestEnv sets up a schema dir, storage, DB, registry and loader.
func loaderTestEnv(t *testing.T) (string, *DB, *registry.Registry, *Loader) {
	t.Helper()
	dir := t.TempDir()
	src, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)
	reg := registry.New()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return dir, db, reg, NewLoader(db, src, reg, logger)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSync_IndexesAndRegisters(t *testing.T) {
	dir, db, reg, l := loaderTestEnv(t)
	writeFile(t, dir, "people.yaml", "model: person\nattributes:\n  name: {type: string}\n")
	writeFile(t, dir, "pets/pet.cue", "model: pet: attributes: species: type: \"string\"\n")
	writeFile(t, dir, "broken.yaml", "model: [\n")

	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	names, _ := db.ModelNames()
	if len(names) != 2 || names[0] != "person" || names[1] != "pet" {
		t.Fatalf("catalog names = %v", names)
	}
	if _, ok := reg.LookupFactory("pet"); !ok {
		t.Error("pet not registered")
	}
	sums, _ := db.SourceChecksums()
	if _, ok := sums["pets/pet.cue"]; !ok {
		t.Errorf("checksums = %v", sums)
	}
}

func TestSync_RegistersUnchangedSources(t *testing.T) {
	dir, db, _, l := loaderTestEnv(t)
	writeFile(t, dir, "people.yaml", "model: person\n")
	if err := l.Sync(); err != nil {
		t.Fatal(err)
	}

	fresh := registry.New()
	src, _ := storage.NewFS(dir)
	if err := NewLoader(db, src, fresh, nil).Sync(); err != nil {
		t.Fatal(err)
	}
	if _, ok := fresh.LookupFactory("person"); !ok {
		t.Error("unchanged source should still register its models")
	}
}

func TestSync_RemovesStaleSources(t *testing.T) {
	dir, db, reg, l := loaderTestEnv(t)
	writeFile(t, dir, "people.yaml", "model: person\n")
	_ = l.Sync()

	_ = os.Remove(filepath.Join(dir, "people.yaml"))
	if err := l.Sync(); err != nil {
		t.Fatal(err)
	}
	if db.DoesTypeExist("person") {
		t.Error("stale model still catalogued")
	}
	if _, ok := reg.LookupFactory("person"); ok {
		t.Error("stale model still registered")
	}
}

func TestIndexSource(t *testing.T) {
	_, db, reg, l := loaderTestEnv(t)
	names, err := l.IndexSource("blog.yaml", []byte("model: BlogPost\n---\nmodel: comment\n"))
	if err != nil {
		t.Fatalf("IndexSource: %v", err)
	}
	if len(names) != 2 || names[0] != "blog-post" {
		t.Errorf("names = %v", names)
	}
	if !db.DoesTypeExist("comment") {
		t.Error("comment not catalogued")
	}
	if err := l.RemoveSource("blog.yaml"); err != nil {
		t.Fatal(err)
	}
	if len(reg.Names()) != 0 {
		t.Errorf("registry = %v, want empty", reg.Names())
	}
	if _, err := l.IndexSource("bad.yaml", []byte("model: x\nrelationships:\n  y: {kind: nope, type: z}\n")); err == nil {
		t.Error("expected validation error")
	}
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	dir, db, _, l := loaderTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go l.Watch(ctx, dir, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	writeFile(t, dir, "new.yaml", "model: newcomer\n")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return db.DoesTypeExist("newcomer")
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:new.yaml" || e == "updated:new.yaml" {
				return true
			}
		}
		return false
	}, "expected new.yaml callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	dir, db, _, l := loaderTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go l.Watch(ctx, dir, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.MkdirAll(filepath.Join(dir, "nested"), 0o755)
	time.Sleep(200 * time.Millisecond)
	writeFile(t, dir, "nested/deep.yaml", "model: deep\n")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return db.DoesTypeExist("deep")
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromCatalog(t *testing.T) {
	dir, db, _, l := loaderTestEnv(t)
	writeFile(t, dir, "del.yaml", "model: doomed\n")
	_ = l.Sync()
	if !db.DoesTypeExist("doomed") {
		t.Fatal("precondition: model should be catalogued")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go l.Watch(ctx, dir, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, "del.yaml"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !db.DoesTypeExist("doomed")
	}, "deleted source still catalogued")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	dir, db, _, l := loaderTestEnv(t)
	writeFile(t, dir, "old.yaml", "model: moved\n")
	_ = l.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go l.Watch(ctx, dir, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(dir, "old.yaml"), filepath.Join(dir, "renamed.yaml"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		src, _ := db.ModelSource("moved")
		return src == "renamed.yaml"
	}, "rename reconciliation failed: model should move to the new source")
}

func TestWriteAndDeleteSourceFile(t *testing.T) {
	dir, db, reg, l := loaderTestEnv(t)

	if _, err := l.WriteSource("bad.yaml", []byte("model: x\nrelationships:\n  y: {kind: bad, type: z}\n")); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.yaml")); !os.IsNotExist(err) {
		t.Error("invalid source should not be written")
	}

	names, err := l.WriteSource("shop/order.yaml", []byte("model: order\n"))
	if err != nil {
		t.Fatalf("WriteSource: %v", err)
	}
	if len(names) != 1 || names[0] != "order" || !db.DoesTypeExist("order") {
		t.Fatalf("names = %v", names)
	}
	metas, _ := l.ListSources()
	if len(metas) != 1 || metas[0].Path != "shop/order.yaml" {
		t.Errorf("sources = %+v", metas)
	}

	if err := l.DeleteSourceFile("shop/order.yaml"); err != nil {
		t.Fatalf("DeleteSourceFile: %v", err)
	}
	if _, ok := reg.LookupFactory("order"); ok {
		t.Error("order still registered")
	}
}
