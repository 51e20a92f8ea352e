package repositories

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// Common repository errors
var (
	// ErrNotFound is returned when a document is not found
	ErrNotFound = mongo.ErrNoDocuments

	// ErrDuplicateKey is returned when trying to insert a duplicate document
	ErrDuplicateKey = errors.New("duplicate key error")
)

// Domain-specific "not found" errors
// These errors wrap mongo.ErrNoDocuments to provide domain context
// Usage in repositories:
//
//	if err == mongo.ErrNoDocuments {
//	    return nil, WrapNotFound(err, ErrDealNotFound)
//	}
var (
	// ErrActivityNotFound is returned when an activity is not found
	ErrActivityNotFound = errors.New("activity not found")

	// ErrContactNotFound is returned when a contact is not found
	ErrContactNotFound = errors.New("contact not found")

	// ErrPipelineNotFound is returned when a pipeline is not found
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrDealNotFound is returned when a deal is not found
	ErrDealNotFound = errors.New("deal not found")

	// ErrEmailNotFound is returned when an email record is not found
	ErrEmailNotFound = errors.New("email not found")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrSessionNotFound is returned when a session is not found
	ErrSessionNotFound = errors.New("session not found")

	// ErrSocialAccountNotFound is returned when a connected page is not found
	ErrSocialAccountNotFound = errors.New("social account not found")
)

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateKey checks if an error is a duplicate key error
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return mongo.IsDuplicateKeyError(err) || errors.Is(err, ErrDuplicateKey)
}

// IsActivityNotFound checks if an error indicates an activity was not found
func IsActivityNotFound(err error) bool {
	return errors.Is(err, ErrActivityNotFound)
}

// IsUserNotFound checks if an error indicates a user was not found
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// WrapNotFound wraps mongo.ErrNoDocuments with a domain-specific error
// This preserves the original MongoDB error while adding domain context
//
// Usage in repository methods:
//
//	var deal models.Deal
//	err := r.collection.FindOne(ctx, filter).Decode(&deal)
//	if err == mongo.ErrNoDocuments {
//	    return nil, WrapNotFound(err, ErrDealNotFound)
//	}
//
// This allows handlers to check both errors.Is(err, ErrDealNotFound) and the
// generic IsNotFound(err).
func WrapNotFound(err error, domainErr error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %w", domainErr, err)
	}
	return err
}

// NotFound builds a not-found error for a write that matched nothing.
func NotFound(domainErr error) error {
	return WrapNotFound(mongo.ErrNoDocuments, domainErr)
}
