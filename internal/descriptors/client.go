// Package descriptors implements a client for fetching template descriptor
// files from the git-hosted catalog repository. The repository is read
// through its hosting API (GitHub contents API shape): one call lists the
// descriptor directory, then each *.json file is downloaded and parsed.
//
// The snapshot is a point-in-time view: any listing, download, or parse
// failure fails the whole fetch so reconciliation never sees a partial set.
package descriptors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Descriptor holds the template metadata parsed from one descriptor file.
type Descriptor struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Language    string   `json:"language"`
	Tags        []string `json:"tags"`
	Picture     *string  `json:"picture"`
	GitLink     string   `json:"gitLink"`
	GitCheckout *string  `json:"gitCheckout"`
}

// SnapshotProvider yields a point-in-time mapping of descriptor filename to
// parsed descriptor fields. Implementations must either return the complete
// snapshot or an error — never a partial mapping.
type SnapshotProvider interface {
	FetchSnapshot(ctx context.Context) (map[string]Descriptor, error)
}

// RepoClient reads descriptor files from a repository hosting API.
type RepoClient struct {
	// ContentsURL is the listing endpoint for the descriptor directory,
	// e.g. https://api.github.com/repos/acme/templates-hub/contents/templates
	ContentsURL string
	// Ref is the branch, tag, or commit to read; empty means the default branch.
	Ref string
	// Token is an optional bearer token for private repositories.
	Token      string
	HTTPClient *http.Client
}

// NewRepoClient creates a descriptor repository client.
func NewRepoClient(contentsURL, ref, token string) *RepoClient {
	return &RepoClient{
		ContentsURL: strings.TrimRight(contentsURL, "/"),
		Ref:         ref,
		Token:       token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// repoEntry is one item from the contents listing.
type repoEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

// FetchSnapshot lists the descriptor directory and downloads every *.json
// file in it.
func (c *RepoClient) FetchSnapshot(ctx context.Context) (map[string]Descriptor, error) {
	entries, err := c.listEntries(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]Descriptor)
	for _, entry := range entries {
		if entry.Type != "file" || !strings.HasSuffix(entry.Name, ".json") {
			continue
		}

		descriptor, err := c.fetchDescriptor(ctx, entry)
		if err != nil {
			return nil, err
		}
		snapshot[entry.Name] = *descriptor
	}

	return snapshot, nil
}

func (c *RepoClient) listEntries(ctx context.Context) ([]repoEntry, error) {
	listURL := c.ContentsURL
	if c.Ref != "" {
		listURL = fmt.Sprintf("%s?ref=%s", listURL, url.QueryEscape(c.Ref))
	}

	body, err := c.get(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list descriptor files: %w", err)
	}

	var entries []repoEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor listing: %w", err)
	}

	return entries, nil
}

func (c *RepoClient) fetchDescriptor(ctx context.Context, entry repoEntry) (*Descriptor, error) {
	if entry.DownloadURL == "" {
		return nil, fmt.Errorf("descriptor %s has no download URL", entry.Name)
	}

	body, err := c.get(ctx, entry.DownloadURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download descriptor %s: %w", entry.Name, err)
	}

	var descriptor Descriptor
	if err := json.Unmarshal(body, &descriptor); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor %s: %w", entry.Name, err)
	}

	if err := descriptor.validate(); err != nil {
		return nil, fmt.Errorf("invalid descriptor %s: %w", entry.Name, err)
	}

	return &descriptor, nil
}

func (c *RepoClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

// validate checks the fields reconciliation cannot do without.
func (d *Descriptor) validate() error {
	if d.Title == "" {
		return fmt.Errorf("missing title")
	}
	if d.Summary == "" {
		return fmt.Errorf("missing summary")
	}
	if d.Language == "" {
		return fmt.Errorf("missing language")
	}
	if d.GitLink == "" {
		return fmt.Errorf("missing gitLink")
	}
	return nil
}
