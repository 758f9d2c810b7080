package llm

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// TextContent represents text-based message content
type TextContent struct {
	Text string `json:"text"`
}

// NewTextContent creates a new TextContent with the given text
func NewTextContent(text string) *TextContent {
	return &TextContent{Text: text}
}

// Type returns the message type for text content
func (t *TextContent) Type() MessageType {
	return MessageTypeText
}

// Validate checks if the text content is valid.
// Text content must not be empty or whitespace-only.
func (t *TextContent) Validate() error {
	if t == nil {
		return errors.New("text content cannot be nil")
	}
	if strings.TrimSpace(t.Text) == "" {
		return errors.New("text content cannot be empty")
	}
	return nil
}

// Size returns the byte size of the text content
func (t *TextContent) Size() int64 {
	if t == nil {
		return 0
	}
	return int64(len(t.Text))
}

// GetText returns the text content as a string
func (t *TextContent) GetText() string {
	if t == nil {
		return ""
	}
	return t.Text
}

// IsEmpty checks if the text content is empty or whitespace-only
func (t *TextContent) IsEmpty() bool {
	return t == nil || strings.TrimSpace(t.Text) == ""
}

// MarshalJSON implements custom JSON marshaling for TextContent
func (t *TextContent) MarshalJSON() ([]byte, error) {
	if t == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(struct {
		Type MessageType `json:"type"`
		Text string      `json:"text"`
	}{
		Type: t.Type(),
		Text: t.Text,
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for TextContent
func (t *TextContent) UnmarshalJSON(data []byte) error {
	if t == nil {
		return errors.New("cannot unmarshal into nil TextContent")
	}

	var content struct {
		Type MessageType `json:"type"`
		Text string      `json:"text"`
	}
	if err := json.Unmarshal(data, &content); err != nil {
		return err
	}
	if content.Type != "" && content.Type != MessageTypeText {
		return errors.New("invalid content type for TextContent")
	}

	t.Text = content.Text
	return nil
}

// ImageContent represents image-based message content.
// Images are passed through to the provider either as binary data or as a
// URL reference; augmentation never inspects them.
type ImageContent struct {
	Data     []byte `json:"-"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mime_type"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Filename string `json:"filename,omitempty"`
}

var supportedImageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// NewImageContentFromBytes creates an ImageContent from binary data
func NewImageContentFromBytes(data []byte, mimeType string) *ImageContent {
	return &ImageContent{
		Data:     data,
		MimeType: mimeType,
	}
}

// NewImageContentFromURL creates an ImageContent from a URL reference
func NewImageContentFromURL(imageURL, mimeType string) *ImageContent {
	return &ImageContent{
		URL:      imageURL,
		MimeType: mimeType,
	}
}

// Type returns the message type for image content
func (i *ImageContent) Type() MessageType {
	return MessageTypeImage
}

// Validate checks if the image content is valid
func (i *ImageContent) Validate() error {
	if i == nil {
		return errors.New("image content cannot be nil")
	}

	hasData := len(i.Data) > 0
	hasURL := strings.TrimSpace(i.URL) != ""

	if !hasData && !hasURL {
		return errors.New("image content must have either data or URL")
	}
	if strings.TrimSpace(i.MimeType) == "" {
		return errors.New("image content must have a MIME type")
	}
	if hasURL {
		if _, err := url.ParseRequestURI(i.URL); err != nil {
			return errors.New("invalid image URL: " + err.Error())
		}
	}
	return nil
}

// Size returns the byte size of the binary image data.
// URL references report zero.
func (i *ImageContent) Size() int64 {
	if i == nil {
		return 0
	}
	return int64(len(i.Data))
}

// HasData returns true if the image has binary data
func (i *ImageContent) HasData() bool {
	return i != nil && len(i.Data) > 0
}

// HasURL returns true if the image has a URL reference
func (i *ImageContent) HasURL() bool {
	return i != nil && strings.TrimSpace(i.URL) != ""
}

// IsValidImageMimeType checks if a MIME type is supported for images
func IsValidImageMimeType(mimeType string) bool {
	return supportedImageMimeTypes[mimeType]
}

// MarshalJSON implements custom JSON marshaling for ImageContent.
// Binary data is omitted from the wire form.
func (i *ImageContent) MarshalJSON() ([]byte, error) {
	if i == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(struct {
		Type     MessageType `json:"type"`
		URL      string      `json:"url,omitempty"`
		MimeType string      `json:"mime_type"`
		Width    int         `json:"width,omitempty"`
		Height   int         `json:"height,omitempty"`
		Filename string      `json:"filename,omitempty"`
	}{
		Type:     i.Type(),
		URL:      i.URL,
		MimeType: i.MimeType,
		Width:    i.Width,
		Height:   i.Height,
		Filename: i.Filename,
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for ImageContent
func (i *ImageContent) UnmarshalJSON(data []byte) error {
	if i == nil {
		return errors.New("cannot unmarshal into nil ImageContent")
	}

	var content struct {
		Type     MessageType `json:"type"`
		URL      string      `json:"url,omitempty"`
		MimeType string      `json:"mime_type"`
		Width    int         `json:"width,omitempty"`
		Height   int         `json:"height,omitempty"`
		Filename string      `json:"filename,omitempty"`
	}
	if err := json.Unmarshal(data, &content); err != nil {
		return err
	}
	if content.Type != "" && content.Type != MessageTypeImage {
		return errors.New("invalid content type for ImageContent")
	}

	i.URL = content.URL
	i.MimeType = content.MimeType
	i.Width = content.Width
	i.Height = content.Height
	i.Filename = content.Filename
	return nil
}
