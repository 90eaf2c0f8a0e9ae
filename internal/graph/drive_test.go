package graph

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestSearchDrive(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(page[DriveItem]{Value: []DriveItem{
			{ID: "f-1", Name: "notes.txt", File: &FileFacet{MimeType: "text/plain"}},
		}})
	})

	items, err := client.SearchDrive(context.Background(), "notes")
	if err != nil {
		t.Fatalf("SearchDrive: %v", err)
	}
	if !strings.Contains(gotPath, "/me/drive/root/search(q='notes')") {
		t.Errorf("path = %q", gotPath)
	}
	if len(items) != 1 || items[0].Name != "notes.txt" {
		t.Errorf("items = %+v", items)
	}
}

func TestSearchDrive_QuoteInQuery(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(page[DriveItem]{})
	})

	if _, err := client.SearchDrive(context.Background(), "O'Brien report"); err != nil {
		t.Fatalf("SearchDrive: %v", err)
	}
	if !strings.Contains(gotPath, "search(q='O''Brien report')") {
		t.Errorf("embedded quote not doubled, path = %q", gotPath)
	}
}

func TestCreateFolder_RootAndParent(t *testing.T) {
	var paths []string
	var bodies []map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(DriveItem{ID: "dir-1", Name: body["name"].(string), Folder: &FolderFacet{}})
	})

	item, err := client.CreateFolder(context.Background(), "", "reports")
	if err != nil {
		t.Fatalf("CreateFolder root: %v", err)
	}
	if item.ID != "dir-1" || item.Folder == nil {
		t.Errorf("item = %+v", item)
	}

	if _, err := client.CreateFolder(context.Background(), "parent-9", "sub"); err != nil {
		t.Fatalf("CreateFolder parent: %v", err)
	}

	if paths[0] != "/me/drive/root/children" {
		t.Errorf("root create path = %q", paths[0])
	}
	if paths[1] != "/me/drive/items/parent-9/children" {
		t.Errorf("parented create path = %q", paths[1])
	}
	if bodies[0]["@microsoft.graph.conflictBehavior"] != "fail" {
		t.Error("conflict behavior must be fail")
	}
}

func TestUpload(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(DriveItem{ID: "up-1", Name: "data.bin", Size: int64(len(gotBody))})
	})

	item, err := client.Upload(context.Background(), "", "data.bin", []byte("payload"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotMethod != "PUT" || !strings.Contains(gotPath, "data.bin") {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if string(gotBody) != "payload" {
		t.Errorf("body = %q", gotBody)
	}
	if item.ID != "up-1" || item.Size != 7 {
		t.Errorf("item = %+v", item)
	}
}

func TestDownload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/me/drive/items/f-1/content" {
			io.WriteString(w, "file-bytes")
			return
		}
		http.NotFound(w, r)
	})

	data, err := client.Download(context.Background(), "f-1")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "file-bytes" {
		t.Errorf("content = %q", data)
	}
}

func TestDelete(t *testing.T) {
	var gotMethod, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.Delete(context.Background(), "f-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotMethod != "DELETE" || gotPath != "/me/drive/items/f-1" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}
