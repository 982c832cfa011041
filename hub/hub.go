// Package hub locates the files of a token classification model: tokenizer.json or
// tokenizer.model, config.json with the label map, and the exported model.onnx.
//
// A Repo is either a local directory (the output directory of a training run) or a
// HuggingFace Hub model id, whose files are downloaded once into a local cache.
//
// Example:
//
//	repo := hub.New("ab-ai/pii_model").WithAuth(os.Getenv("HF_TOKEN"))
//	path, err := repo.DownloadFile("tokenizer.json")
package hub

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/piitag/piitag/internal/files"
	"github.com/pkg/errors"
)

const (
	// DefaultEndpoint of the HuggingFace Hub.
	DefaultEndpoint = "https://huggingface.co"

	// DefaultRevision downloaded when none is given.
	DefaultRevision = "main"

	// DefaultDirCreationPerm is the permission used when creating cache directories.
	DefaultDirCreationPerm = 0o755

	// CacheDirEnv overrides the default cache directory.
	CacheDirEnv = "PIITAG_CACHE"
)

// Repo references a model: either a local directory or a remote HuggingFace Hub repository.
type Repo struct {
	// ID of the remote model, e.g. "dslim/bert-base-NER". Empty for local repos.
	ID string

	// Revision (branch, tag or commit) of the remote model.
	Revision string

	// Endpoint of the hub, defaults to DefaultEndpoint.
	Endpoint string

	// CacheDir where remote files are downloaded to.
	CacheDir string

	localDir  string
	authToken string
	client    *http.Client
}

// New creates a Repo for a remote HuggingFace Hub model id.
func New(id string) *Repo {
	return &Repo{
		ID:       id,
		Revision: DefaultRevision,
		Endpoint: DefaultEndpoint,
		CacheDir: DefaultCacheDir(),
		client:   &http.Client{Timeout: 10 * time.Minute},
	}
}

// NewLocal creates a Repo backed by a local directory; nothing is ever downloaded.
func NewLocal(dir string) *Repo {
	return &Repo{localDir: dir}
}

// Open returns a local Repo if nameOrDir is an existing directory, otherwise a remote one.
func Open(nameOrDir string) *Repo {
	if info, err := os.Stat(nameOrDir); err == nil && info.IsDir() {
		return NewLocal(nameOrDir)
	}
	return New(nameOrDir)
}

// DefaultCacheDir returns $PIITAG_CACHE, or "piitag/hub" under the user cache directory.
func DefaultCacheDir() string {
	if dir := strings.TrimSpace(os.Getenv(CacheDirEnv)); dir != "" {
		return dir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "piitag", "hub")
}

// WithAuth sets the token used to download from private repositories.
func (r *Repo) WithAuth(token string) *Repo {
	r.authToken = token
	return r
}

// WithRevision sets the revision to download.
func (r *Repo) WithRevision(revision string) *Repo {
	r.Revision = revision
	return r
}

// WithEndpoint sets the hub endpoint, mostly for mirrors and tests.
func (r *Repo) WithEndpoint(endpoint string) *Repo {
	r.Endpoint = strings.TrimRight(endpoint, "/")
	return r
}

// WithCacheDir sets the directory remote files are downloaded to.
func (r *Repo) WithCacheDir(dir string) *Repo {
	r.CacheDir = dir
	return r
}

// WithHTTPClient sets the client used for downloads.
func (r *Repo) WithHTTPClient(client *http.Client) *Repo {
	r.client = client
	return r
}

// IsLocal reports whether the repo is a local directory.
func (r *Repo) IsLocal() bool { return r.localDir != "" }

// String implements fmt.Stringer.
func (r *Repo) String() string {
	if r.IsLocal() {
		return r.localDir
	}
	return fmt.Sprintf("%s@%s", r.ID, r.Revision)
}

// FileURL returns the download URL of a file in a remote repo.
func (r *Repo) FileURL(fileName string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", r.Endpoint, r.ID, r.Revision, fileName)
}

// cachePath returns where a remote file is stored locally.
func (r *Repo) cachePath(fileName string) string {
	repoDir := "models--" + strings.ReplaceAll(r.ID, "/", "--")
	return filepath.Join(r.CacheDir, repoDir, r.Revision, filepath.FromSlash(fileName))
}

// HasFile reports whether the repo has the given file. For remote repos it checks the cache
// first, and then asks the hub with a HEAD request.
func (r *Repo) HasFile(fileName string) bool {
	return r.HasFileContext(context.Background(), fileName)
}

// HasFileContext is like HasFile, but the HEAD request is cancelled with ctx.
func (r *Repo) HasFileContext(ctx context.Context, fileName string) bool {
	if r.IsLocal() {
		return files.Exists(filepath.Join(r.localDir, filepath.FromSlash(fileName)))
	}
	if files.Exists(r.cachePath(fileName)) {
		return true
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.FileURL(fileName), nil)
	if err != nil {
		return false
	}
	r.setAuth(req)
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// DownloadFile returns the local path of the file, downloading it first if needed.
func (r *Repo) DownloadFile(fileName string) (string, error) {
	return r.DownloadFileContext(context.Background(), fileName)
}

// DownloadFileContext is like DownloadFile, but the download can be cancelled with ctx.
func (r *Repo) DownloadFileContext(ctx context.Context, fileName string) (string, error) {
	if r.IsLocal() {
		localPath := filepath.Join(r.localDir, filepath.FromSlash(fileName))
		if !files.Exists(localPath) {
			return "", errors.Errorf("file %q not found in %q", fileName, r.localDir)
		}
		return localPath, nil
	}
	if r.ID == "" {
		return "", errors.New("remote repo has no model id")
	}
	localPath := r.cachePath(fileName)
	if err := r.lockedDownload(ctx, r.FileURL(fileName), localPath, false); err != nil {
		return "", err
	}
	return localPath, nil
}

func (r *Repo) setAuth(req *http.Request) {
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}
}
