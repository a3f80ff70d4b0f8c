package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/storage"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return principal.User, nil
}

// parseBody decodes JSON, urlencoded or multipart bodies and runs struct validation.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

// formUpload returns the first file found under fields. The returned close
// func is never nil.
func formUpload(c *fiber.Ctx, maxBytes int64, fields ...string) (*storage.Object, func(), error) {
	noop := func() {}
	if !isMultipart(c) {
		return nil, noop, nil
	}

	var header *multipart.FileHeader
	for _, field := range fields {
		if fh, err := c.FormFile(field); err == nil {
			header = fh
			break
		}
	}
	if header == nil {
		return nil, noop, nil
	}
	if maxBytes > 0 && header.Size > maxBytes {
		return nil, noop, apperrors.NewDomainError("PAYLOAD_TOO_LARGE",
			fmt.Sprintf("file exceeds %d bytes", maxBytes), http.StatusRequestEntityTooLarge,
			map[string]any{"file": header.Filename})
	}

	file, err := header.Open()
	if err != nil {
		return nil, noop, apperrors.NewValidationError("unreadable file", map[string]any{"file": header.Filename})
	}
	obj := &storage.Object{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return obj, func() { _ = file.Close() }, nil
}
