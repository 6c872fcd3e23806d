package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// allowedExtensions is the image whitelist for /upload_image.
var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
}

// UploadHandler saves image files to disk and hands back a reference URL.
// The chat store never sees file bytes, only the URL string.
type UploadHandler struct {
	dir     string
	baseURL string
}

// NewUploadHandler stores uploads under dir. baseURL, when non-empty,
// overrides deriving the URL host from the incoming request.
func NewUploadHandler(dir, baseURL string) *UploadHandler {
	return &UploadHandler{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// UploadImage accepts a multipart "file" field, checks the extension
// whitelist and saves it under a collision-resistant generated name.
func (h *UploadHandler) UploadImage(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "No file part")
		return
	}

	if file.Filename == "" {
		respondError(c, http.StatusBadRequest, "No selected file")
		return
	}

	if !allowedFile(file.Filename) {
		respondError(c, http.StatusBadRequest, "File type not allowed")
		return
	}

	name := uuid.NewString() + "_" + secureFilename(file.Filename)
	if err := c.SaveUploadedFile(file, filepath.Join(h.dir, name)); err != nil {
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"image_url": h.publicURL(c, name),
	})
}

func (h *UploadHandler) publicURL(c *gin.Context, name string) string {
	base := h.baseURL
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/uploads/" + name
}

func allowedFile(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return false
	}
	return allowedExtensions[strings.ToLower(filename[i+1:])]
}

// secureFilename strips directory components and anything outside a
// conservative character set, so the stored name is safe to join onto
// the upload directory.
func secureFilename(filename string) string {
	filename = filepath.Base(filepath.ToSlash(filename))

	var b strings.Builder
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	return strings.TrimLeft(b.String(), ".")
}
