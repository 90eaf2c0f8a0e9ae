package ops

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"m365/internal/object"
)

func TestFindFiles(t *testing.T) {
	reg := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"value": []map[string]any{
			{
				"id": "f-1", "name": "notes.txt", "size": 12,
				"file":            map[string]any{"mimeType": "text/plain"},
				"parentReference": map[string]any{"path": "/drive/root:/docs"},
			},
			{"id": "d-1", "name": "archive", "folder": map[string]any{"childCount": 3}},
		}})
	})

	out, err := lookup(t, reg, "find_files")(context.Background(), []string{"--query", "notes"}, nil)
	if err != nil {
		t.Fatalf("find_files: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if out[0]["kind"] != "file" || out[0]["path"] != "/drive/root:/docs/notes.txt" {
		t.Errorf("file record = %v", out[0])
	}
	if out[1]["kind"] != "folder" {
		t.Errorf("folder record = %v", out[1])
	}
}

func TestCreateFolder(t *testing.T) {
	reg := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id": "dir-1", "name": body["name"], "folder": map[string]any{},
		})
	})

	out, err := lookup(t, reg, "create_folder")(context.Background(), []string{"--name", "reports"}, nil)
	if err != nil {
		t.Fatalf("create_folder: %v", err)
	}
	if len(out) != 1 || out[0]["name"] != "reports" || out[0]["kind"] != "folder" {
		t.Errorf("out = %v", out)
	}
}

func TestUploadFiles_FromFlagsAndInput(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.txt")
	pathB := filepath.Join(dir, "b.txt")
	os.WriteFile(pathA, []byte("aaa"), 0644)
	os.WriteFile(pathB, []byte("bbb"), 0644)

	var uploaded []string
	reg := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		uploaded = append(uploaded, string(body))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "up", "name": "x", "size": len(body)})
	})

	input := object.List{{"path": pathB}}
	out, err := lookup(t, reg, "upload_files")(context.Background(), []string{"--src", pathA}, input)
	if err != nil {
		t.Fatalf("upload_files: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if uploaded[0] != "aaa" || uploaded[1] != "bbb" {
		t.Errorf("uploaded bodies = %v", uploaded)
	}
}

func TestUploadFiles_NoInputsIsZeroRecords(t *testing.T) {
	reg := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	out, err := lookup(t, reg, "upload_files")(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("upload_files: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("out = %v", out)
	}
}

func TestDownloadFiles(t *testing.T) {
	reg := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/content"):
			w.Write([]byte("file-data"))
		case r.URL.Path == "/me/drive/items/f-2":
			json.NewEncoder(w).Encode(map[string]any{"id": "f-2", "name": "fetched.bin"})
		default:
			http.NotFound(w, r)
		}
	})

	dst := t.TempDir()
	// f-1 carries its name; f-2's name must be fetched.
	input := object.List{{"id": "f-1", "name": "known.txt"}, {"id": "f-2"}}
	out, err := lookup(t, reg, "download_files")(context.Background(), []string{"--dst", dst}, input)
	if err != nil {
		t.Fatalf("download_files: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if out[1]["name"] != "fetched.bin" {
		t.Errorf("name not fetched: %v", out[1])
	}
	blob := out[0]["content"].(object.BlobRef)
	data, err := os.ReadFile(blob.Path)
	if err != nil || string(data) != "file-data" {
		t.Errorf("blob = %q, err %v", data, err)
	}
}

func TestDownloadFiles_SameNameDoesNotOverwrite(t *testing.T) {
	reg := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/f-1/content"):
			w.Write([]byte("first"))
		case strings.HasSuffix(r.URL.Path, "/f-2/content"):
			w.Write([]byte("second"))
		default:
			http.NotFound(w, r)
		}
	})

	dst := t.TempDir()
	input := object.List{
		{"id": "f-1", "name": "notes.txt"},
		{"id": "f-2", "name": "notes.txt"},
	}
	out, err := lookup(t, reg, "download_files")(context.Background(), []string{"--dst", dst}, input)
	if err != nil {
		t.Fatalf("download_files: %v", err)
	}

	p0, _ := out[0]["path"].(string)
	p1, _ := out[1]["path"].(string)
	if p0 == p1 {
		t.Fatalf("colliding names saved to the same path %q", p0)
	}
	for i, want := range []string{"first", "second"} {
		path, _ := out[i]["path"].(string)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if string(data) != want {
			t.Errorf("record %d content = %q, want %q", i, data, want)
		}
	}
}

func TestDeleteFiles(t *testing.T) {
	var deleted []string
	reg := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "DELETE" {
			deleted = append(deleted, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.NotFound(w, r)
	})

	input := object.List{{"id": "f-1"}, {"id": "f-2"}}
	out, err := lookup(t, reg, "delete_files")(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("delete_files: %v", err)
	}
	if len(out) != 2 || out[0]["status"] != "deleted" {
		t.Errorf("out = %v", out)
	}
	if len(deleted) != 2 {
		t.Errorf("deleted = %v", deleted)
	}
}
