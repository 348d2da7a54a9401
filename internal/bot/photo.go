package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxPhotoBytes caps photo downloads at 5 MB.
const maxPhotoBytes = 5 << 20

var (
	errPhotoTooLarge    = errors.New("photo exceeds the size limit")
	errUnsupportedImage = errors.New("unsupported image format")
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// handlePhoto downloads a photo the user sent and routes it through the
// semantic collaborator the same way free text goes. The caption, when
// present, travels along as context.
func (b *Bot) handlePhoto(ctx context.Context, message *tgbotapi.Message) error {
	// Telegram orders Photo by size; the last entry is the largest.
	photo := message.Photo[len(message.Photo)-1]
	if photo.FileSize > maxPhotoBytes {
		return b.sendMessage(message.Chat.ID,
			"🖼 That photo is too large - please send one under 5 MB.")
	}

	fileURL, err := b.api.GetFileDirectURL(photo.FileID)
	if err != nil {
		b.logger.Error("Failed to resolve photo file",
			"file_id", photo.FileID,
			"error", err,
		)
		return b.sendMessage(message.Chat.ID,
			"I could not download that photo - please try again.")
	}

	image, mimeType, err := b.fetchPhoto(ctx, fileURL)
	switch {
	case errors.Is(err, errPhotoTooLarge):
		return b.sendMessage(message.Chat.ID,
			"🖼 That photo is too large - please send one under 5 MB.")
	case errors.Is(err, errUnsupportedImage):
		return b.sendMessage(message.Chat.ID,
			"I can only read jpg, png, gif and webp images.")
	case err != nil:
		b.logger.Error("Failed to download photo",
			"file_id", photo.FileID,
			"error", err,
		)
		return b.sendMessage(message.Chat.ID,
			"I could not download that photo - please try again.")
	}

	b.logger.Info("Received photo",
		"user_id", message.From.ID,
		"mime_type", mimeType,
		"bytes", len(image),
	)

	request := b.parser.ParseImage(ctx, image, mimeType, strings.TrimSpace(message.Caption), time.Now())
	result := b.facade.Handle(ctx, request)

	return b.sendMessage(message.Chat.ID, FormatResult(request, result))
}

// fetchPhoto downloads the file and sniffs its content type. The size cap
// is enforced on the actual bytes, not the size Telegram reported.
func (b *Bot) fetchPhoto(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("photo download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("photo download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read photo: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return nil, "", errPhotoTooLarge
	}

	mimeType := http.DetectContentType(data)
	if !allowedImageTypes[mimeType] {
		return nil, "", errUnsupportedImage
	}

	return data, mimeType, nil
}
