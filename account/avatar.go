package account

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/profilehub/profiles"
	"github.com/sirupsen/logrus"
)

const MaxAvatarSize = 5 << 20

// Raster formats only. Vector formats like svg may carry scripts.
var avatarContentTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

var (
	ErrNoFileSelected   = errors.New("you must select an image to upload")
	ErrTooManyFiles     = errors.New("select a single image to upload")
	ErrFileTooLarge     = errors.New("image is too large")
	ErrNotAnImage       = errors.New("selected file is not an image")
	ErrUploadInProgress = errors.New("upload already in progress")
)

// AvatarPath returns a random storage path keeping the extension of filename.
func AvatarPath(filename string) string {
	return uuid.New().String() + strings.ToLower(filepath.Ext(filename))
}

// UploadAvatar stores the only selected file under a fresh path and returns that path.
func UploadAvatar(ctx context.Context, backend profiles.Backend, files []*multipart.FileHeader) (string, error) {
	switch {
	case len(files) == 0:
		return "", ErrNoFileSelected
	case len(files) > 1:
		return "", ErrTooManyFiles
	}
	header := files[0]
	if header.Size > MaxAvatarSize {
		return "", ErrFileTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, MaxAvatarSize+1))
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if len(data) > MaxAvatarSize {
		return "", ErrFileTooLarge
	}

	mime := mimetype.Detect(data)
	if !mimetype.EqualsAny(mime.String(), avatarContentTypes...) {
		return "", ErrNotAnImage
	}

	path := AvatarPath(header.Filename)
	err = backend.Upload(ctx, path, profiles.Object{
		Path:        path,
		ContentType: mime.String(),
		Data:        data,
	})
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	return path, nil
}

// Avatar displays the object behind a storage path and uploads replacements.
type Avatar struct {
	Backend profiles.Backend
	Size    int
	// Propagates a freshly uploaded path to the owning profile.
	OnUploaded func(ctx context.Context, path string) error

	mutex     sync.Mutex
	resolved  string
	image     *profiles.Object
	uploading bool
}

type AvatarView struct {
	Size           int
	HasImage       bool
	ImageSrc       string
	UploadLabel    string
	UploadDisabled bool
}

// Resolve downloads the object at path unless it was already resolved.
// Failures are logged and leave the widget without an image; the next
// Resolve of the same path downloads again.
func (a *Avatar) Resolve(ctx context.Context, path string) {
	a.mutex.Lock()
	if path == a.resolved {
		a.mutex.Unlock()
		return
	}
	a.resolved = path
	a.image = nil
	a.mutex.Unlock()

	if path == "" {
		return
	}

	object, err := a.Backend.Download(ctx, path)

	a.mutex.Lock()
	defer a.mutex.Unlock()
	if err != nil {
		logrus.WithError(err).WithField("path", path).Warnln("Could not download avatar.")
		if a.resolved == path {
			a.resolved = ""
		}
		return
	}
	if a.resolved == path {
		a.image = &object
	}
}

func (a *Avatar) Upload(ctx context.Context, files []*multipart.FileHeader) (string, error) {
	a.mutex.Lock()
	if a.uploading {
		a.mutex.Unlock()
		return "", ErrUploadInProgress
	}
	a.uploading = true
	a.mutex.Unlock()

	defer func() {
		a.mutex.Lock()
		a.uploading = false
		a.mutex.Unlock()
	}()

	path, err := UploadAvatar(ctx, a.Backend, files)
	if err != nil {
		return "", err
	}
	if a.OnUploaded != nil {
		if err := a.OnUploaded(ctx, path); err != nil {
			return "", fmt.Errorf("propagate avatar path: %w", err)
		}
	}
	return path, nil
}

func (a *Avatar) Uploading() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.uploading
}

func (a *Avatar) View() AvatarView {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	view := AvatarView{
		Size:           a.Size,
		UploadLabel:    "Upload",
		UploadDisabled: a.uploading,
	}
	if a.uploading {
		view.UploadLabel = "Uploading ..."
	}
	if a.image != nil {
		view.HasImage = true
		view.ImageSrc = "data:" + a.image.ContentType + ";base64," +
			base64.StdEncoding.EncodeToString(a.image.Data)
	}
	return view
}
