package api

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"

	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/models"
)

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// DownloadOptions configures photo download behavior
type DownloadOptions struct {
	// Directory is the destination directory
	Directory string
	// Filename is the output filename (derived from the URL if empty)
	Filename string
}

// DownloadPhoto saves the photo behind a message's URL to disk and returns its path
func (c *Client) DownloadPhoto(ctx context.Context, photoURL string, opts DownloadOptions) (string, error) {
	if c.IsClosed() {
		return "", apierrors.NewDownloadError("client is closed", photoURL)
	}

	if err := os.MkdirAll(opts.Directory, 0o700); err != nil {
		return "", apierrors.NewDownloadError("failed to create directory: "+err.Error(), photoURL)
	}

	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, photoURL, nil)
	if err != nil {
		return "", apierrors.NewDownloadError("failed to create request: "+err.Error(), photoURL)
	}
	req.Header.Set("Accept", "image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apierrors.NewDownloadNetworkError(photoURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != 200 {
		return "", apierrors.NewDownloadErrorWithStatus(photoURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, models.MaxPhotoSize+1))
	if err != nil {
		return "", apierrors.NewDownloadError("failed to read response: "+err.Error(), photoURL)
	}
	if len(body) > models.MaxPhotoSize {
		return "", &apierrors.DownloadError{URL: photoURL, Err: apierrors.ErrFileTooLarge}
	}

	filename := opts.Filename
	if filename == "" {
		filename = generateFilename(photoURL, resp.Header.Get("Content-Type"))
	}
	destPath := filepath.Join(opts.Directory, filename)

	if err := os.WriteFile(destPath, body, 0o600); err != nil {
		return "", apierrors.NewDownloadError("failed to save file: "+err.Error(), photoURL)
	}

	c.logger.Debug().Str("path", destPath).Msg("downloaded photo")

	absPath, err := filepath.Abs(destPath)
	if err != nil {
		return destPath, nil
	}
	return absPath, nil
}

// generateFilename derives a filename from the object name in a storage URL,
// falling back to a timestamp with an extension from the content type.
func generateFilename(photoURL, contentType string) string {
	if u, err := url.Parse(photoURL); err == nil {
		// Storage URLs end in the escaped object name, e.g. .../o/chat_photos%2Fcat.jpg
		name := u.Path
		if unescaped, err := url.PathUnescape(u.EscapedPath()); err == nil {
			name = unescaped
		}
		if base := LastPathSegment(name); base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
			return sanitizeFilename(base)
		}
	}

	ext := ".bin"
	switch {
	case strings.Contains(contentType, "jpeg"):
		ext = ".jpg"
	case strings.Contains(contentType, "png"):
		ext = ".png"
	case strings.Contains(contentType, "gif"):
		ext = ".gif"
	case strings.Contains(contentType, "webp"):
		ext = ".webp"
	}
	return fmt.Sprintf("photo_%s%s", time.Now().Format("20060102_150405"), ext)
}

// sanitizeFilename removes invalid characters from filenames
func sanitizeFilename(name string) string {
	return strings.TrimSpace(invalidFilenameChars.ReplaceAllString(name, "_"))
}
