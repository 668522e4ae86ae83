// Package gitstore treats files in a GitHub repository as a tiny key/value
// store. Writes to an existing file are conditioned on the blob SHA the caller
// last read, so a writer holding a stale SHA is rejected by GitHub instead of
// overwriting somebody else's commit.
package gitstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
)

var (
	// ErrNotFound is returned when the file (or repository) does not exist.
	ErrNotFound = errors.New("gitstore: file not found")
	// ErrConflict is returned when the supplied SHA no longer matches the file.
	ErrConflict = errors.New("gitstore: version conflict")
)

// File is a snapshot of a repository file together with its version token.
type File struct {
	Path        string
	Content     []byte
	SHA         string
	DownloadURL string
}

// Client reads and writes files on one branch of one repository.
type Client struct {
	gh     *github.Client
	owner  string
	repo   string
	branch string
}

// NewClient builds a Client. httpClient may be nil; token may be empty for
// public read-only access.
func NewClient(httpClient *http.Client, token, owner, repo, branch string) *Client {
	gh := github.NewClient(httpClient)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if branch == "" {
		branch = "main"
	}
	return &Client{gh: gh, owner: owner, repo: repo, branch: branch}
}

// SetBaseURL points the client at another API root (GitHub Enterprise, tests).
func (c *Client) SetBaseURL(raw string) error {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	c.gh.BaseURL = u
	return nil
}

// Branch returns the branch all reads and writes target.
func (c *Client) Branch() string { return c.branch }

// Read fetches a file and its current SHA.
func (c *Client) Read(ctx context.Context, path string) (*File, error) {
	fc, _, _, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, path,
		&github.RepositoryContentGetOptions{Ref: c.branch})
	if err != nil {
		return nil, c.translate(err, "read "+path)
	}
	if fc == nil {
		return nil, fmt.Errorf("read %s: path is a directory", path)
	}
	var content []byte
	if fc.GetEncoding() == "none" {
		// Files over 1 MB come back without inline content; fetch the blob the
		// metadata SHA points at instead.
		content, _, err = c.gh.Git.GetBlobRaw(ctx, c.owner, c.repo, fc.GetSHA())
		if err != nil {
			return nil, c.translate(err, "read blob of "+path)
		}
	} else {
		text, err := fc.GetContent()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		content = []byte(text)
	}
	return &File{
		Path:        path,
		Content:     content,
		SHA:         fc.GetSHA(),
		DownloadURL: fc.GetDownloadURL(),
	}, nil
}

// Write creates the file when sha is empty, otherwise replaces it on the
// condition that sha is still current. It returns the stored file's new SHA
// and download URL.
func (c *Client) Write(ctx context.Context, path string, content []byte, sha, message string) (*File, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: strPtr(message),
		Content: content,
		Branch:  strPtr(c.branch),
	}

	var (
		res *github.RepositoryContentResponse
		err error
	)
	if sha == "" {
		res, _, err = c.gh.Repositories.CreateFile(ctx, c.owner, c.repo, path, opts)
	} else {
		opts.SHA = strPtr(sha)
		res, _, err = c.gh.Repositories.UpdateFile(ctx, c.owner, c.repo, path, opts)
	}
	if err != nil {
		return nil, c.translate(err, "write "+path)
	}

	out := &File{Path: path, Content: content}
	if res != nil && res.Content != nil {
		out.SHA = res.Content.GetSHA()
		out.DownloadURL = res.Content.GetDownloadURL()
	}
	if out.DownloadURL == "" {
		out.DownloadURL = c.RawURL(path)
	}
	return out, nil
}

// Delete removes the file, conditioned on sha.
func (c *Client) Delete(ctx context.Context, path, sha, message string) error {
	_, _, err := c.gh.Repositories.DeleteFile(ctx, c.owner, c.repo, path, &github.RepositoryContentFileOptions{
		Message: strPtr(message),
		SHA:     strPtr(sha),
		Branch:  strPtr(c.branch),
	})
	if err != nil {
		return c.translate(err, "delete "+path)
	}
	return nil
}

// Ping checks that the repository is reachable with the configured token.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.gh.Repositories.Get(ctx, c.owner, c.repo)
	if err != nil {
		return c.translate(err, "get repository")
	}
	return nil
}

// RawURL is the raw.githubusercontent.com address of path on the branch.
func (c *Client) RawURL(path string) string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", c.owner, c.repo, c.branch, strings.TrimLeft(path, "/"))
}

// translate maps GitHub status codes onto the package sentinels. GitHub answers
// a SHA mismatch with 409, and with 422 when a create races an existing file.
func (c *Client) translate(err error, op string) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		case http.StatusConflict, http.StatusUnprocessableEntity:
			return fmt.Errorf("%s: %w: %s", op, ErrConflict, ghErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func strPtr(s string) *string { return &s }
