package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"m365/internal/graph"
	"m365/internal/invoke"
	"m365/internal/object"
)

func registerOneDrive(reg *invoke.Registry, client *graph.Client) {
	reg.Register("find_files", findFiles(client))
	reg.Register("create_folder", createFolder(client))
	reg.Register("upload_files", uploadFiles(client))
	reg.Register("download_files", downloadFiles(client))
	reg.Register("delete_files", deleteFiles(client))
}

func driveItemRecord(item graph.DriveItem) object.Record {
	rec := object.Record{
		"id":      item.ID,
		"name":    item.Name,
		"size":    num(item.Size),
		"web_url": item.WebURL,
	}
	switch {
	case item.Folder != nil:
		rec["kind"] = "folder"
	default:
		rec["kind"] = "file"
	}
	if item.ParentReference != nil && item.ParentReference.Path != "" {
		rec["path"] = item.ParentReference.Path + "/" + item.Name
	}
	return rec
}

// findFiles searches the drive and emits one record per hit, in the API's
// listing order.
func findFiles(client *graph.Client) invoke.Capability {
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		fs := newFlags("find_files")
		query := fs.String("query", "", "search query")
		if err := parseFlags(fs, args); err != nil {
			return nil, err
		}
		if *query == "" {
			return nil, fmt.Errorf("find_files: --query is required")
		}

		items, err := client.SearchDrive(ctx, *query)
		if err != nil {
			return nil, err
		}
		out := make(object.List, 0, len(items))
		for _, item := range items {
			out = append(out, driveItemRecord(item))
		}
		return out, nil
	}
}

// createFolder makes one folder and emits its record.
func createFolder(client *graph.Client) invoke.Capability {
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		fs := newFlags("create_folder")
		name := fs.String("name", "", "folder name")
		parent := fs.String("parent", "", "parent item id (default drive root)")
		if err := parseFlags(fs, args); err != nil {
			return nil, err
		}
		if *name == "" {
			return nil, fmt.Errorf("create_folder: --name is required")
		}

		item, err := client.CreateFolder(ctx, *parent, *name)
		if err != nil {
			return nil, err
		}
		return object.List{driveItemRecord(*item)}, nil
	}
}

// uploadFiles uploads local files (from --src, or from input records with a
// "path" field) and emits the created items.
func uploadFiles(client *graph.Client) invoke.Capability {
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		fs := newFlags("upload_files")
		src := fs.StringSlice("src", nil, "local file paths")
		dst := fs.String("dst", "", "destination folder item id (default drive root)")
		if err := parseFlags(fs, args); err != nil {
			return nil, err
		}

		paths := *src
		for _, rec := range input {
			p, err := stringField(rec, "path")
			if err != nil {
				return nil, fmt.Errorf("upload_files: %w", err)
			}
			paths = append(paths, p)
		}
		if len(paths) == 0 {
			return object.List{}, nil
		}

		out := make(object.List, 0, len(paths))
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("upload_files: %w", err)
			}
			item, err := client.Upload(ctx, *dst, filepath.Base(path), data)
			if err != nil {
				return nil, err
			}
			out = append(out, driveItemRecord(*item))
		}
		return out, nil
	}
}

// downloadFiles fetches each input item's content to disk, emitting records
// that reference the bytes by path.
func downloadFiles(client *graph.Client) invoke.Capability {
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		fs := newFlags("download_files")
		dst := fs.String("dst", ".", "destination directory")
		if err := parseFlags(fs, args); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(*dst, 0755); err != nil {
			return nil, fmt.Errorf("download_files: %w", err)
		}

		used := make(map[string]bool)
		out := make(object.List, 0, len(input))
		for _, rec := range input {
			id, err := stringField(rec, "id")
			if err != nil {
				return nil, fmt.Errorf("download_files: %w", err)
			}

			name, _ := rec["name"].(string)
			if name == "" {
				item, err := client.GetItem(ctx, id)
				if err != nil {
					return nil, err
				}
				name = item.Name
			}

			data, err := client.Download(ctx, id)
			if err != nil {
				return nil, err
			}
			path := filepath.Join(*dst, uniqueName(used, safeName(name), id))
			if err := os.WriteFile(path, data, 0644); err != nil {
				return nil, fmt.Errorf("download_files: %w", err)
			}
			out = append(out, object.Record{
				"id":      id,
				"name":    name,
				"path":    path,
				"size":    num(int64(len(data))),
				"content": object.BlobRef{Path: path},
			})
		}
		return out, nil
	}
}

// deleteFiles removes each input item from the drive.
func deleteFiles(client *graph.Client) invoke.Capability {
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		fs := newFlags("delete_files")
		if err := parseFlags(fs, args); err != nil {
			return nil, err
		}

		out := make(object.List, 0, len(input))
		for _, rec := range input {
			id, err := stringField(rec, "id")
			if err != nil {
				return nil, fmt.Errorf("delete_files: %w", err)
			}
			if err := client.Delete(ctx, id); err != nil {
				return nil, err
			}
			out = append(out, object.Record{"id": id, "status": "deleted"})
		}
		return out, nil
	}
}
