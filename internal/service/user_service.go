package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/parkpal-server/internal/cache"
	"github.com/parkpal-server/internal/repository"
)

// UserService handles profile and user listing operations
type UserService struct {
	userRepo *repository.UserRepository
	cache    *cache.Cache
}

// NewUserService creates a new UserService. cache may be nil.
func NewUserService(userRepo *repository.UserRepository, c *cache.Cache) *UserService {
	return &UserService{
		userRepo: userRepo,
		cache:    c,
	}
}

// ProfileResponse is the public part of a user
type ProfileResponse struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UpdateProfileRequest represents the update profile request
type UpdateProfileRequest struct {
	Name     string `json:"name" binding:"required,max=80"`
	Username string `json:"username" binding:"required,min=3,max=80"`
	Email    string `json:"email" binding:"required,email,max=120"`
}

// UserListItem is a row of the admin user list
type UserListItem struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Admin     bool   `json:"admin"`
	LastLogin string `json:"last_login,omitempty"`
}

// Profile returns the profile of a user
func (s *UserService) Profile(ctx context.Context, userID uint) (*ProfileResponse, error) {
	return cache.Remember(ctx, s.cache, fmt.Sprintf("user:%d:profile", userID), func() (*ProfileResponse, error) {
		user, err := s.userRepo.GetByID(userID)
		if err != nil {
			return nil, translate(err)
		}
		return &ProfileResponse{Name: user.Name, Username: user.Username, Email: user.Email}, nil
	})
}

// UpdateProfile changes name, username and email of a user
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, req *UpdateProfileRequest) (*ProfileResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, translate(err)
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	taken, err := s.userRepo.ExistsOtherWithUsernameOrEmail(userID, username, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, conflictf("Username or email already in use")
	}

	user.Name = strings.TrimSpace(req.Name)
	user.Username = username
	user.Email = email
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx); err != nil {
		log.Printf("[UserService] Cache invalidation failed: %v", err)
	}
	return &ProfileResponse{Name: user.Name, Username: user.Username, Email: user.Email}, nil
}

// UserPage is one page of the admin user list
type UserPage struct {
	Items []UserListItem `json:"items"`
	Total int64          `json:"total"`
}

// ListUsers lists one page of non-admin users. page starts at 1.
func (s *UserService) ListUsers(ctx context.Context, page, pageSize int) (*UserPage, error) {
	if page < 1 || pageSize < 1 {
		return nil, validationf("Invalid page")
	}
	key := fmt.Sprintf("users:%d:%d", page, pageSize)
	return cache.Remember(ctx, s.cache, key, func() (*UserPage, error) {
		users, total, err := s.userRepo.ListRegularPage((page-1)*pageSize, pageSize)
		if err != nil {
			return nil, err
		}
		items := make([]UserListItem, len(users))
		for i, u := range users {
			items[i] = UserListItem{ID: u.ID, Name: u.Name, Username: u.Username, Email: u.Email, Admin: u.Admin}
			if u.LastLogin != nil {
				items[i].LastLogin = u.LastLogin.Format("2006-01-02T15:04:05")
			}
		}
		return &UserPage{Items: items, Total: total}, nil
	})
}

// Usernames lists the usernames of all non-admin users
func (s *UserService) Usernames(ctx context.Context) ([]string, error) {
	return cache.Remember(ctx, s.cache, "usernames", func() ([]string, error) {
		users, err := s.userRepo.ListRegular()
		if err != nil {
			return nil, err
		}
		names := make([]string, len(users))
		for i, u := range users {
			names[i] = u.Username
		}
		return names, nil
	})
}
