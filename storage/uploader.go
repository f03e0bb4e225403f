package storage

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("object not found")

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader stores binary objects and hands back their public URL.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

func PosterKey(tournamentID string) string {
	return "posters/" + tournamentID
}

func RulesKey(tournamentID string) string {
	return "rulesPdfs/" + tournamentID
}

func ProfilePictureKey(playerID string) string {
	return "profilePictures/" + playerID
}
