package api

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	// Decoders for image.Decode
	_ "image/gif"

	_ "golang.org/x/image/webp"

	http "github.com/bogdanfinn/fhttp"
	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/models"
)

// jpegQuality is used when a downscaled photo is re-encoded as JPEG
const jpegQuality = 85

// PhotoFile is a local file prepared for upload
type PhotoFile struct {
	// Name is the last path segment of the local file, with its extension
	// changed when the photo was re-encoded.
	Name        string
	Data        []byte
	ContentType string
	Resized     bool
}

// ObjectMetadata describes a stored blob
type ObjectMetadata struct {
	Name           string
	Bucket         string
	ContentType    string
	Size           int64
	DownloadTokens string
}

// ReadPhoto reads a local file for upload. Images larger than maxDimension on
// either side are downscaled; maxDimension 0 keeps the original.
func ReadPhoto(filePath string, maxDimension int) (*PhotoFile, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if fileInfo.IsDir() {
		return nil, fmt.Errorf("%s is a directory", filePath)
	}
	if fileInfo.Size() > models.MaxPhotoSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds maximum %d bytes",
			apierrors.ErrFileTooLarge, fileInfo.Size(), models.MaxPhotoSize)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	photo := &PhotoFile{
		Name:        LastPathSegment(filePath),
		Data:        data,
		ContentType: mimetype.Detect(data).String(),
	}
	if maxDimension > 0 {
		downscale(photo, maxDimension)
	}
	return photo, nil
}

// uriSchemes are the schemes LastPathSegment reads as URIs. Anything else,
// such as "shot:1.jpg", is a plain file name.
var uriSchemes = map[string]bool{
	"file":    true,
	"content": true,
	"http":    true,
	"https":   true,
}

// LastPathSegment returns the final element of a local path or URI, which is
// used as the stored object name.
func LastPathSegment(p string) string {
	raw := strings.TrimRight(filepath.ToSlash(p), "/")
	if u, err := url.Parse(p); err == nil && uriSchemes[strings.ToLower(u.Scheme)] {
		p = u.Path
	}
	p = strings.TrimRight(filepath.ToSlash(p), "/")
	if base := path.Base(p); base != "." && base != "/" {
		return base
	}
	return path.Base(raw)
}

// encodedName swaps the extension of name for the one matching contentType
func encodedName(name, contentType string) string {
	ext := ".jpg"
	if contentType == "image/png" {
		ext = ".png"
	}
	if strings.EqualFold(path.Ext(name), ext) {
		return name
	}
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}

// downscale shrinks still JPEG, PNG and WebP images in place. WebP is
// re-encoded as JPEG and renamed to match. Other content is left alone.
func downscale(photo *PhotoFile, maxDimension int) {
	switch photo.ContentType {
	case "image/jpeg", "image/png", "image/webp":
	default:
		return
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(photo.Data))
	if err != nil || (cfg.Width <= maxDimension && cfg.Height <= maxDimension) {
		return
	}

	img, _, err := image.Decode(bytes.NewReader(photo.Data))
	if err != nil {
		return
	}
	thumb := resize.Thumbnail(uint(maxDimension), uint(maxDimension), img, resize.Lanczos3)

	var buf bytes.Buffer
	contentType := "image/jpeg"
	if photo.ContentType == "image/png" {
		contentType = "image/png"
		err = png.Encode(&buf, thumb)
	} else {
		err = jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return
	}

	photo.Data = buf.Bytes()
	if contentType != photo.ContentType {
		photo.Name = encodedName(photo.Name, contentType)
	}
	photo.ContentType = contentType
	photo.Resized = true
}

func (c *Client) storageBase() (string, error) {
	if c.cfg.StorageBucket == "" {
		return "", fmt.Errorf("storage_bucket is not configured")
	}
	return fmt.Sprintf("%s/b/%s/o", strings.TrimRight(c.cfg.StorageEndpoint(), "/"),
		url.PathEscape(c.cfg.StorageBucket)), nil
}

// escapeObjectName escapes a full object name, including its slashes, for use in a URL path
func escapeObjectName(name string) string {
	return strings.ReplaceAll(url.PathEscape(name), "/", "%2F")
}

func (c *Client) storageHeaders(ctx context.Context, contentType string) (map[string]string, error) {
	token, err := c.IDToken(ctx)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{
		"Authorization": "Firebase " + token,
		"Accept":        "application/json",
	}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	return headers, nil
}

// UploadObject stores data under objectName in the configured bucket
func (c *Client) UploadObject(ctx context.Context, objectName string, data []byte, contentType string) (*ObjectMetadata, error) {
	base, err := c.storageBase()
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers, err := c.storageHeaders(ctx, contentType)
	if err != nil {
		return nil, err
	}

	endpoint := base + "?uploadType=media&name=" + url.QueryEscape(objectName)
	req, err := newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(data), headers)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req, base)
	if err != nil {
		return nil, err
	}

	meta := parseObjectMetadata(body)
	if meta.Name == "" {
		meta.Name = objectName
	}
	c.logger.Info().Str("object", objectName).Int("bytes", len(data)).Msg("uploaded object")
	return meta, nil
}

// ObjectMetadata fetches the metadata of a stored object
func (c *Client) ObjectMetadata(ctx context.Context, objectName string) (*ObjectMetadata, error) {
	base, err := c.storageBase()
	if err != nil {
		return nil, err
	}
	headers, err := c.storageHeaders(ctx, "")
	if err != nil {
		return nil, err
	}

	endpoint := base + "/" + escapeObjectName(objectName)
	req, err := newRequest(ctx, http.MethodGet, endpoint, nil, headers)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req, endpoint)
	if err != nil {
		return nil, err
	}
	return parseObjectMetadata(body), nil
}

// DownloadURL resolves a fetchable URL for a stored object
func (c *Client) DownloadURL(ctx context.Context, objectName string) (string, error) {
	meta, err := c.ObjectMetadata(ctx, objectName)
	if err != nil {
		return "", err
	}

	token, _, _ := strings.Cut(meta.DownloadTokens, ",")
	if token == "" {
		return "", apierrors.NewParseError("object has no download token", PathObjectDownloadTokens)
	}

	base, _ := c.storageBase()
	return fmt.Sprintf("%s/%s?alt=media&token=%s", base, escapeObjectName(objectName), url.QueryEscape(token)), nil
}

func parseObjectMetadata(body []byte) *ObjectMetadata {
	result := gjson.ParseBytes(body)
	return &ObjectMetadata{
		Name:           result.Get(PathObjectName).String(),
		Bucket:         result.Get(PathObjectBucket).String(),
		ContentType:    result.Get(PathObjectContentType).String(),
		Size:           result.Get(PathObjectSize).Int(),
		DownloadTokens: result.Get(PathObjectDownloadTokens).String(),
	}
}
