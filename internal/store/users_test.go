package store

import (
	"errors"
	"testing"
)

func TestGetUserByUsername(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateUser("admin", "$2a$10$fakehash"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	user, err := s.GetUserByUsername("admin")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user.Username != "admin" || user.Password != "$2a$10$fakehash" {
		t.Errorf("user = %+v", user)
	}

	if _, err := s.GetUserByUsername("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown user: err = %v, want ErrNotFound", err)
	}
}
