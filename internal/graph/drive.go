package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// driveURL builds a drive-scoped URL under the principal's default drive.
func (c *Client) driveURL(parts ...string) string {
	all := append([]string{"drive"}, parts...)
	return c.url(all...)
}

// SearchDrive searches the principal's drive and returns matching items in
// the API's ranking order. Embedded single quotes are doubled per the OData
// string-literal rules so the q='…' literal stays well formed.
func (c *Client) SearchDrive(ctx context.Context, query string) ([]DriveItem, error) {
	q := strings.ReplaceAll(query, "'", "''")
	u := c.driveURL("root", fmt.Sprintf("search(q='%s')", url.PathEscape(q)))
	return collectPages[DriveItem](ctx, c, u, "search drive")
}

// CreateFolder creates a folder under the parent item, or under the drive
// root when parentID is empty. Name conflicts fail rather than renaming, so
// a pipeline never silently writes into an unexpected folder.
func (c *Client) CreateFolder(ctx context.Context, parentID, name string) (*DriveItem, error) {
	var u string
	if parentID == "" {
		u = c.driveURL("root", "children")
	} else {
		u = c.driveURL("items", url.PathEscape(parentID), "children")
	}
	rq := map[string]any{
		"name":                              name,
		"folder":                            FolderFacet{},
		"@microsoft.graph.conflictBehavior": "fail",
	}
	var item DriveItem
	if err := c.doJSON(ctx, "POST", u, "create folder", rq, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Upload puts file content under the parent folder with the given name
// (simple upload, suitable for files up to a few MB). parentID empty means
// the drive root.
func (c *Client) Upload(ctx context.Context, parentID, name string, content []byte) (*DriveItem, error) {
	var u string
	if parentID == "" {
		u = c.driveURL("root:", url.PathEscape(name)+":", "content")
	} else {
		u = c.driveURL("items", url.PathEscape(parentID)+":", url.PathEscape(name)+":", "content")
	}

	data, err := c.doRaw(ctx, "PUT", u, "upload file", bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	var item DriveItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("upload file: decode response: %w", err)
	}
	return &item, nil
}

// Download fetches a drive item's content.
func (c *Client) Download(ctx context.Context, itemID string) ([]byte, error) {
	u := c.driveURL("items", url.PathEscape(itemID), "content")
	return c.doRaw(ctx, "GET", u, "download file", nil)
}

// GetItem fetches a drive item's metadata.
func (c *Client) GetItem(ctx context.Context, itemID string) (*DriveItem, error) {
	u := c.driveURL("items", url.PathEscape(itemID))
	var item DriveItem
	if err := c.doJSON(ctx, "GET", u, "get item", nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete removes a drive item. The API returns 204 with no body.
func (c *Client) Delete(ctx context.Context, itemID string) error {
	u := c.driveURL("items", url.PathEscape(itemID))
	return c.doJSON(ctx, "DELETE", u, "delete item", nil, nil)
}
