package store

import "context"

// User is the object representing a drill user. Authentication lives with an
// external collaborator; this core only needs identity for ownership scoping.
type User struct {
	ID        int32
	Username  string
	Nickname  string
	CreatedTs int64
}

// FindUser is the find condition for users.
type FindUser struct {
	ID       *int32
	Username *string
}

// CreateUser creates a new user.
func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	return s.driver.CreateUser(ctx, create)
}

// ListUsers lists users with filter.
func (s *Store) ListUsers(ctx context.Context, find *FindUser) ([]*User, error) {
	return s.driver.ListUsers(ctx, find)
}

// GetUser gets a single user, or nil when no row matches.
func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	list, err := s.driver.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
