package io

import (
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestCreateAll(t *testing.T) {
	defaultUmask := syscall.Umask(0)
	defer syscall.Umask(defaultUmask)

	root := t.TempDir()
	f, err := CreateAll(filepath.Join(root, "foo", "bar", "targetFile"), 0700, 0707)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	for _, dir := range []string{"foo", filepath.Join("foo", "bar")} {
		stat, err := os.Stat(filepath.Join(root, dir))
		if err != nil || !stat.IsDir() {
			t.Fatal("cannot create directory (stat, err):", stat, err)
		}
		if stat.Mode().Perm() != 0707 {
			t.Error("directory mod is wrong. (actual, expected): ", stat.Mode(), fs.FileMode(0707))
		}
	}

	stat, err := os.Stat(filepath.Join(root, "foo", "bar", "targetFile"))
	if err != nil || !stat.Mode().IsRegular() {
		t.Fatal("cannot create targetFile (stat, err):", stat, err)
	}
	if stat.Mode().Perm() != 0700 {
		t.Error("target file mod is wrong. (actual, expected): ", stat.Mode(), fs.FileMode(0700))
	}
}

func TestDirCopy(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		filepath.Join("1", "001-table.sql"): "create table a ();",
		filepath.Join("1", "002-index.sql"): "create index on a ();",
		filepath.Join("2", "001-table.sql"): "create table b ();",
	}
	for name, content := range files {
		f, err := CreateAll(filepath.Join(src, name), 0644, 0755)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.WriteString(content); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}

	dest := filepath.Join(t.TempDir(), "schema")
	if err := os.MkdirAll(filepath.Join(dest, "1"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "1", "001-table.sql"), []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := DirCopy(src, dest); err != nil {
		t.Fatal(err)
	}

	for name, content := range files {
		got, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != content {
			t.Errorf("%s: actual = %q, expected = %q", name, got, content)
		}
	}

	if err := DirCopy(filepath.Join(src, "missing"), dest); err == nil {
		t.Error("copying missing directory should fail")
	}
}
