package probecache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const ns = "identify-eu-west-1.acrcloud.com|key-a"

func TestStoreRoundTrip(t *testing.T) {
	store, err := OpenInMemory(nil)
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer store.Close()

	key := NewKey(ns, "/music/mix.mp3", 1024, time.Unix(1700000000, 0), 20000, 10000)
	if _, ok, err := store.Get(key); err != nil || ok {
		t.Fatalf("Get on empty store: ok=%v err=%v", ok, err)
	}
	if err := store.Put(key, []byte(`{"status":{"code":0}}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value, ok, err := store.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(value) != `{"status":{"code":0}}` {
		t.Fatalf("value = %s", value)
	}
	if n, err := store.Count(); err != nil || n != 1 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	if err := store.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, ok, _ := store.Get(key); ok {
		t.Fatal("entry survived purge")
	}
}

func TestKeysDistinguishAccountsWindowsAndVersions(t *testing.T) {
	mod := time.Unix(1700000000, 0)
	base := NewKey(ns, "/music/mix.mp3", 1024, mod, 0, 10000)
	variants := []Key{
		NewKey(ns, "/music/mix.mp3", 1024, mod, 10000, 10000),
		NewKey(ns, "/music/mix.mp3", 1024, mod, 0, 5000),
		NewKey(ns, "/music/mix.mp3", 2048, mod, 0, 10000),
		NewKey(ns, "/music/mix.mp3", 1024, mod.Add(time.Second), 0, 10000),
		NewKey(ns, "/music/other.mp3", 1024, mod, 0, 10000),
		NewKey("identify-eu-west-1.acrcloud.com|key-b", "/music/mix.mp3", 1024, mod, 0, 10000),
		NewKey("identify-us-west-2.acrcloud.com|key-a", "/music/mix.mp3", 1024, mod, 0, 10000),
		NewKey("", "/music/mix.mp3", 1024, mod, 0, 10000),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d collides with base key %s", i, base)
		}
	}
	if again := NewKey(ns, "/music/./mix.mp3", 1024, mod, 0, 10000); again != base {
		t.Fatalf("cleaned path produced a different key")
	}
}

func TestPersistentStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "mix.mp3")
	if err := os.WriteFile(media, []byte("data"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	key, err := KeyForFile(ns, media, 0, 10000)
	if err != nil {
		t.Fatalf("KeyForFile: %v", err)
	}

	cacheDir := filepath.Join(dir, "cache")
	store, err := Open(cacheDir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Put(key, []byte("reply")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err = Open(cacheDir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	value, ok, err := store.Get(key)
	if err != nil || !ok || string(value) != "reply" {
		t.Fatalf("Get after reopen = %q ok=%v err=%v", value, ok, err)
	}
}

func TestOpenRejectsBlankDir(t *testing.T) {
	if _, err := Open("  ", nil); err == nil {
		t.Fatal("expected error for blank directory")
	}
}
