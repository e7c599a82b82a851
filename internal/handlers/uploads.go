package handlers

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

var errUnsupportedImage = errors.New("unsupported image format")

// saveUploadedImage decodes, shrinks and stores a form image, returning
// its public URL. Used for product photos and payment receipts alike.
func saveUploadedImage(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var img image.Image
	ext := filepath.Ext(header.Filename)
	switch ext {
	case ".png":
		img, err = png.Decode(file)
	case ".jpeg", ".jpg":
		img, err = jpeg.Decode(file)
	default:
		return "", errUnsupportedImage
	}
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	// Max width 800px, preserve aspect ratio
	newImage := resize.Resize(800, 0, img, resize.Lanczos3)

	filename := fmt.Sprintf("%s.jpg", uuid.New().String())
	uploadPath := filepath.Join("static/uploads", filename)

	out, err := os.Create(uploadPath)
	if err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, newImage, &jpeg.Options{Quality: 80}); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	return "/static/uploads/" + filename, nil
}
