package icloud

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// FileSession is a session loaded from the session file written by the
// sign-in flow. It attaches the saved cookies and account parameters to every
// request. The file is rewritten externally on reauthorization; Reload picks
// up the new cookies.
type FileSession struct {
	path string

	Cookies      []savedCookie `json:"cookies"`
	Dsid         string        `json:"dsid"`
	DriveBaseURL string        `json:"driveUrl"`
	DocsBaseURL  string        `json:"docsUrl"`
}

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LoadSession reads a session file. Returns ErrNoSession if the file does
// not exist.
func LoadSession(path string) (*FileSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}

		return nil, fmt.Errorf("icloud: reading session file: %w", err)
	}

	s := &FileSession{path: path}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("icloud: parsing session file %q: %w", path, err)
	}

	if s.DriveBaseURL == "" || s.DocsBaseURL == "" {
		return nil, fmt.Errorf("icloud: session file %q has no service endpoints", path)
	}

	return s, nil
}

// Reload re-reads the session file in place, picking up cookies refreshed by
// an external reauthorization.
func (s *FileSession) Reload() error {
	fresh, err := LoadSession(s.path)
	if err != nil {
		return err
	}

	*s = *fresh

	return nil
}

// Attach adds the session cookies and account parameters to a request.
func (s *FileSession) Attach(req *http.Request) {
	for _, c := range s.Cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	if s.Dsid != "" {
		q := req.URL.Query()
		q.Set("dsid", s.Dsid)
		req.URL.RawQuery = q.Encode()
	}
}

// DriveURL returns the drive-service base URL recorded at sign-in.
func (s *FileSession) DriveURL() string {
	return s.DriveBaseURL
}

// DocsURL returns the docs-service base URL recorded at sign-in.
func (s *FileSession) DocsURL() string {
	return s.DocsBaseURL
}
