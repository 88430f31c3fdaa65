package core

import (
	"encoding/json"
	"net/http"
	"os"
)

// CookieStore persists the session cookies of a successful login across
// runs. Save must replace the previous contents wholesale, a partially
// written jar is worse than none.
type CookieStore interface {
	Load() ([]*http.Cookie, error)
	Save(cookies []*http.Cookie) error
}

type FileCookieStore struct {
	Path string
}

func (s FileCookieStore) Load() ([]*http.Cookie, error) {
	contents, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var cookies []*http.Cookie
	err = json.Unmarshal(contents, &cookies)
	if err != nil {
		return nil, err
	}
	return cookies, nil
}

func (s FileCookieStore) Save(cookies []*http.Cookie) error {
	serialized, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	// write-then-rename so an interrupted save never leaves a torn jar
	tmp := s.Path + ".tmp"
	err = os.WriteFile(tmp, serialized, 0600)
	if err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}
