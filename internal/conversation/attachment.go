package conversation

import (
	"fmt"
	"mime"
	"strings"
)

const (
	// PDFContentType — единственный тип вложения, который принимает чат.
	PDFContentType = "application/pdf"
	// UnsupportedAttachmentNotice показывается пользователю при отказе.
	UnsupportedAttachmentNotice = "Please upload a PDF file"
)

// ValidateAttachment проверяет только заявленный тип файла, содержимое не читается.
func ValidateAttachment(name, contentType string) error {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(contentType))
	if err != nil || !strings.EqualFold(mediaType, PDFContentType) {
		return fmt.Errorf("%w: %q (%s)", ErrUnsupportedAttachment, contentType, name)
	}
	return nil
}
