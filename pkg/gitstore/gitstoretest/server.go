// Package gitstoretest provides an in-memory fake of the GitHub repository
// contents API, enough for gitstore.Client to run against in tests.
package gitstoretest

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"listing-service/pkg/gitstore"
)

const (
	Owner  = "acme"
	Repo   = "listings"
	Branch = "main"
)

type file struct {
	content []byte
	sha     string
}

// Server is a fake GitHub API holding files for a single repository.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	files       map[string]*file
	beforeWrite func(path string)
	writes      int
	inlineLimit int
}

// NewServer starts the fake. Callers must Close it.
func NewServer() *Server {
	s := &Server{files: make(map[string]*file)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Client returns a gitstore.Client wired to the fake.
func (s *Server) Client() *gitstore.Client {
	c := gitstore.NewClient(s.Server.Client(), "test-token", Owner, Repo, Branch)
	if err := c.SetBaseURL(s.URL); err != nil {
		panic(err)
	}
	return c
}

// Put stores content directly, bypassing version checks, and returns its SHA.
func (s *Server) Put(path string, content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := &file{content: append([]byte(nil), content...), sha: blobSHA(content)}
	s.files[path] = f
	return f.sha
}

// BeforeWrite installs fn to run before every PUT is applied. Tests use it to
// slip in a competing commit between a read and a write.
func (s *Server) BeforeWrite(fn func(path string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeWrite = fn
}

// SetInlineLimit makes content reads of files larger than n bytes answer the
// way GitHub does above 1 MB: encoding "none" and no inline content. Zero
// turns the limit off.
func (s *Server) SetInlineLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inlineLimit = n
}

// Get returns the stored content of path.
func (s *Server) Get(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), f.content...), true
}

// Writes counts accepted PUT and DELETE requests.
func (s *Server) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	repoPrefix := "/repos/" + Owner + "/" + Repo
	switch {
	case r.URL.Path == repoPrefix && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": 1, "name": Repo, "full_name": Owner + "/" + Repo})
	case strings.HasPrefix(r.URL.Path, repoPrefix+"/git/blobs/") && r.Method == http.MethodGet:
		s.getBlob(w, strings.TrimPrefix(r.URL.Path, repoPrefix+"/git/blobs/"))
	case strings.HasPrefix(r.URL.Path, repoPrefix+"/contents/"):
		path := strings.TrimPrefix(r.URL.Path, repoPrefix+"/contents/")
		switch r.Method {
		case http.MethodGet:
			s.getContents(w, path)
		case http.MethodPut:
			s.mu.Lock()
			hook := s.beforeWrite
			s.mu.Unlock()
			if hook != nil {
				hook(path)
			}
			s.putContents(w, r, path)
		case http.MethodDelete:
			s.deleteContents(w, r, path)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Method Not Allowed"})
		}
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	}
}

func (s *Server) getContents(w http.ResponseWriter, path string) {
	s.mu.Lock()
	f, ok := s.files[path]
	limit := s.inlineLimit
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	encoding, content := "base64", base64.StdEncoding.EncodeToString(f.content)
	if limit > 0 && len(f.content) > limit {
		encoding, content = "none", ""
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"type":         "file",
		"encoding":     encoding,
		"path":         path,
		"name":         path[strings.LastIndex(path, "/")+1:],
		"sha":          f.sha,
		"size":         len(f.content),
		"content":      content,
		"download_url": "https://raw.example.test/" + path,
	})
}

// getBlob serves the raw bytes of the file currently stored under sha.
func (s *Server) getBlob(w http.ResponseWriter, sha string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.files {
		if f.sha == sha {
			w.Header().Set("Content-Type", "application/vnd.github.raw")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(f.content)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

type writeBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

func (s *Server) putContents(w http.ResponseWriter, r *http.Request, path string) {
	var body writeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}
	content, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "content is not valid Base64"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.files[path]
	switch {
	case ok && body.SHA == "":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request.\n\n\"sha\" wasn't supplied."})
		return
	case ok && body.SHA != existing.sha:
		writeJSON(w, http.StatusConflict, map[string]string{"message": path + " does not match " + body.SHA})
		return
	case !ok && body.SHA != "":
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	f := &file{content: content, sha: blobSHA(content)}
	s.files[path] = f
	s.writes++
	status := http.StatusOK
	if !ok {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{
		"content": map[string]interface{}{
			"type":         "file",
			"path":         path,
			"sha":          f.sha,
			"download_url": "https://raw.example.test/" + path,
		},
		"commit": map[string]interface{}{"sha": blobSHA([]byte(body.Message + f.sha)), "message": body.Message},
	})
}

func (s *Server) deleteContents(w http.ResponseWriter, r *http.Request, path string) {
	var body writeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.files[path]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	if body.SHA != existing.sha {
		writeJSON(w, http.StatusConflict, map[string]string{"message": path + " does not match " + body.SHA})
		return
	}
	delete(s.files, path)
	s.writes++
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"content": nil,
		"commit":  map[string]interface{}{"message": body.Message},
	})
}

func blobSHA(content []byte) string {
	sum := sha1.Sum(content)
	return hex.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
