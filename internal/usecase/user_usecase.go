package usecase

import (
	"context"
	"log"
	"strings"

	"pairchat/internal/domain/entity"
	"pairchat/internal/domain/repository"
	"pairchat/pkg/errors"
)

type UserUseCase struct {
	userRepo repository.UserRepository
}

func NewUserUseCase(userRepo repository.UserRepository) *UserUseCase {
	return &UserUseCase{
		userRepo: userRepo,
	}
}

type SyncProfileInput struct {
	Username string
	Email    string
	PhotoURL string
}

// SyncProfile upserts the profile snapshot the conversation creation
// transaction reads. Called on registration and explicit profile updates.
func (uc *UserUseCase) SyncProfile(ctx context.Context, userID string, input SyncProfileInput) (*entity.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.Validation("User id must not be blank", nil)
	}
	if strings.TrimSpace(input.Username) == "" {
		return nil, errors.Validation("Username must not be blank", nil)
	}

	user := &entity.User{
		ID:       userID,
		Username: input.Username,
		Email:    input.Email,
		PhotoURL: input.PhotoURL,
	}

	existing, err := uc.userRepo.GetByID(ctx, userID)
	if err == nil {
		user.CreatedAt = existing.CreatedAt
		if err := uc.userRepo.Update(ctx, user); err != nil {
			log.Printf("SyncProfile Error: Failed to update profile %s: %v", userID, err)
			return nil, err
		}
		return user, nil
	}
	if !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	if err := uc.userRepo.Create(ctx, user); err != nil {
		log.Printf("SyncProfile Error: Failed to create profile %s: %v", userID, err)
		return nil, err
	}
	return user, nil
}

func (uc *UserUseCase) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	return uc.userRepo.GetByID(ctx, userID)
}
