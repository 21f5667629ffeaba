package domain

import "errors"

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExists   = errors.New("document already exists")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrLocationNotFound = errors.New("live location not found")
	ErrKeyNotFound      = errors.New("key not found")
	ErrTaskNotFound     = errors.New("task not registered")
)
