package model

import "errors"

var (
	// Authentication errors. The handler layer maps each of these to a
	// distinct stable error code so the frontend can tell "retry with
	// refresh" apart from "force re-login".
	ErrAuthenticationFailed = errors.New("invalid username or password")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenInvalid         = errors.New("token invalid")
	ErrTokenNotFound        = errors.New("token not found")
	ErrUserInactive         = errors.New("user is deactivated")

	// User errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")

	// Post errors
	ErrPostNotFound = errors.New("post not found")
	ErrPostDeleted  = errors.New("post is deleted")
	ErrNotPostOwner = errors.New("not the post owner")

	// Image errors
	ErrImageNotFound = errors.New("image not found")

	// Album errors
	ErrAlbumNotFound = errors.New("album not found")

	// Generic errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)
