package handlers

import (
	"mime"
	"path"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const defaultContentType = "application/octet-stream"

// FilesHandler proxies marketplace chat attachments.
type FilesHandler struct {
	tickets TicketOperations
}

// NewFilesHandler constructs handler.
func NewFilesHandler(tickets TicketOperations) *FilesHandler {
	return &FilesHandler{tickets: tickets}
}

// Download handles GET /admin/ozon-support/files/:account/:ticket/:message/:file/info.
// Ticket and message only scope the link; the file is fetched by name with
// the account's credentials.
func (h *FilesHandler) Download(c *fiber.Ctx) error {
	name := c.Params("file")
	file, err := h.tickets.DownloadFile(c.UserContext(), c.Params("account"), name)
	if err != nil {
		return mapServiceError(err, "file")
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = defaultContentType
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, "inline; filename="+strconv.Quote(name))

	size := -1
	if file.ContentLength > 0 {
		size = int(file.ContentLength)
	}
	// fasthttp closes the body once it is streamed.
	return c.SendStream(file.Body, size)
}
