package images

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"listing-service/pkg/gitstore"

	"github.com/google/uuid"
)

// RepoFiles is the gitstore surface the GitHub image store needs.
type RepoFiles interface {
	Read(ctx context.Context, path string) (*gitstore.File, error)
	Write(ctx context.Context, path string, content []byte, sha, message string) (*gitstore.File, error)
	Delete(ctx context.Context, path, sha, message string) error
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// GitHubStore commits images into a directory of a repository. The repository
// path is the public id.
type GitHubStore struct {
	files RepoFiles
	dir   string
	now   func() time.Time
}

func NewGitHubStore(files RepoFiles, dir string) *GitHubStore {
	if dir == "" {
		dir = "images"
	}
	return &GitHubStore{files: files, dir: strings.Trim(dir, "/"), now: time.Now}
}

func (g *GitHubStore) Name() string { return "github" }

func (g *GitHubStore) objectPath(img Image) string {
	name := unsafeNameChars.ReplaceAllString(path.Base(img.Filename), "_")
	if name == "" || name == "." || name == "_" {
		name = "image" + extension(img, DetectContentType(img))
	}
	return fmt.Sprintf("%s/%d_%s_%s", g.dir, g.now().UnixMilli(), uuid.NewString(), name)
}

func (g *GitHubStore) Upload(ctx context.Context, img Image) (*UploadedImage, error) {
	p := g.objectPath(img)
	file, err := g.files.Write(ctx, p, img.Data, "", "Upload image: "+path.Base(p))
	if err != nil {
		return nil, fmt.Errorf("failed to upload image to repository: %w", err)
	}
	return &UploadedImage{URL: file.DownloadURL, PublicID: p}, nil
}

// Delete removes the image file. An already missing file is not an error.
func (g *GitHubStore) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	file, err := g.files.Read(ctx, publicID)
	if err != nil {
		if errors.Is(err, gitstore.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to read image %s: %w", publicID, err)
	}
	err = g.files.Delete(ctx, publicID, file.SHA, "Delete image: "+path.Base(publicID))
	if err != nil && !errors.Is(err, gitstore.ErrNotFound) {
		return fmt.Errorf("failed to delete image %s: %w", publicID, err)
	}
	return nil
}
