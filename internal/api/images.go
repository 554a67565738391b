package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
)

// ImageRequest asks the backend for a card image.
type ImageRequest struct {
	CardID int
	Prompt string
	// Force regenerates even when the backend already has an image.
	Force bool
}

type generateImageRequest struct {
	Index           int    `json:"index"`
	DefIndex        int    `json:"def_index"`
	Prompt          string `json:"prompt"`
	Category        string `json:"category"`
	Deck            string `json:"deck"`
	ForceGeneration bool   `json:"force_generation"`
}

type deleteImageRequest struct {
	Index    int    `json:"index"`
	DefIndex int    `json:"def_index"`
	Category string `json:"category"`
	Deck     string `json:"deck"`
}

// GenerateImage returns the backend path of the card image.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	body := generateImageRequest{
		Index:           req.CardID,
		Prompt:          req.Prompt,
		Category:        c.config.Category,
		Deck:            c.config.Deck,
		ForceGeneration: req.Force,
	}

	var payload struct {
		Path string `json:"path"`
	}
	if err := c.doJSON(ctx, "generate image", http.MethodPost, "/api/generate-image", nil, body, &payload); err != nil {
		return "", err
	}
	if strings.TrimSpace(payload.Path) == "" {
		return "", &ProtocolError{Op: "generate image", Message: "missing path"}
	}
	return payload.Path, nil
}

// DeleteImage removes the stored image of a card.
func (c *Client) DeleteImage(ctx context.Context, cardID int) error {
	body := deleteImageRequest{Index: cardID, Category: c.config.Category, Deck: c.config.Deck}
	return c.doJSON(ctx, "delete image", http.MethodDelete, "/api/delete-image", nil, body, nil)
}

// UploadImage stores the image read from r as the picture of a card and
// returns its backend path. filename only contributes its extension.
func (c *Client) UploadImage(ctx context.Context, cardID int, filename string, r io.Reader) (string, error) {
	const op = "upload image"

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"category", c.config.Category},
		{"deck", c.config.Deck},
		{"card_index", strconv.Itoa(cardID)},
		{"def_index", "0"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}
	part, err := w.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", &ResourceLoadError{Resource: filename, Err: err}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var payload struct {
		Path string `json:"path"`
	}
	body := rawBody{contentType: w.FormDataContentType(), data: buf.Bytes()}
	if err := c.doJSON(ctx, op, http.MethodPost, "/api/upload-image", nil, body, &payload); err != nil {
		return "", err
	}
	if strings.TrimSpace(payload.Path) == "" {
		return "", &ProtocolError{Op: op, Message: "missing path"}
	}
	return payload.Path, nil
}
