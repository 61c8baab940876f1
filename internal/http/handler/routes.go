package handler

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"iams/internal/domain"
	"iams/internal/service"
)

// RegisterRoutes attaches the HTTP surface to the provided Fiber app.
// Handlers stay thin: parse, call the service, render.
func RegisterRoutes(app *fiber.App, db *sql.DB, dirs service.DirectoryService, files service.FileService, uploads *service.UploadManager) {
	// Serve the OpenAPI document and a plain Swagger UI page.
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	// Health: checks DB connectivity only.
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	})

	// Plain liveness probe.
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	registerDirectoryRoutes(app, dirs)
	registerFileRoutes(app, files)
	registerUploadRoutes(app, uploads)
}

// requesterID reads the authenticated user id forwarded by the gateway.
func requesterID(c *fiber.Ctx) (int64, error) {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return 0, fmt.Errorf("missing X-User-ID header")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed X-User-ID header")
	}
	return id, nil
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	return strconv.ParseInt(c.Params(name), 10, 64)
}

func registerDirectoryRoutes(app *fiber.App, dirs service.DirectoryService) {
	app.Get("/directories/tree", func(c *fiber.Ctx) error {
		requester, err := requesterID(c)
		if err != nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		}
		entries, err := dirs.ListTree(c.UserContext(), requester)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(fiber.Map{"directories": entries})
	})

	app.Get("/directories/:id", func(c *fiber.Ctx) error {
		requester, err := requesterID(c)
		if err != nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		}
		id, err := paramID(c, "id")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		dir, breadcrumb, err := dirs.Navigate(c.UserContext(), requester, id)
		if err != nil {
			return writeDomainError(c, err)
		}
		access, err := dirs.Access(c.UserContext(), requester, id)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(fiber.Map{
			"directory":  dir,
			"breadcrumb": breadcrumb,
			"access":     access,
		})
	})

	app.Post("/directories/:id/children", func(c *fiber.Ctx) error {
		requester, err := requesterID(c)
		if err != nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		}
		parentID, err := paramID(c, "id")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "malformed request body")
		}
		dir, err := dirs.CreateChild(c.UserContext(), requester, parentID, body.Name, body.Description)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(dir)
	})
}

func registerFileRoutes(app *fiber.App, files service.FileService) {
	app.Get("/files", func(c *fiber.Ctx) error {
		requester, err := requesterID(c)
		if err != nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		}
		var directoryID *int64
		if raw := c.Query("directory_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_DIRECTORY_ID", "invalid directory_id")
			}
			directoryID = &id
		}
		list, err := files.List(c.UserContext(), requester, directoryID)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(fiber.Map{"files": list})
	})

	app.Get("/files/:id", func(c *fiber.Ctx) error {
		requester, err := requesterID(c)
		if err != nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		}
		id, err := paramID(c, "id")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		file, _, err := files.Read(c.UserContext(), requester, id)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(file)
	})

	app.Get("/files/:id/content", func(c *fiber.Ctx) error {
		requester, err := requesterID(c)
		if err != nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		}
		id, err := paramID(c, "id")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		file, data, err := files.Read(c.UserContext(), requester, id)
		if err != nil {
			return writeDomainError(c, err)
		}
		c.Set(fiber.HeaderContentType, file.MimeType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Filename))
		return c.Send(data)
	})

	app.Delete("/files/:id", func(c *fiber.Ctx) error {
		requester, err := requesterID(c)
		if err != nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		}
		id, err := paramID(c, "id")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := files.Delete(c.UserContext(), requester, id); err != nil {
			return writeDomainError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Post("/files/:id/revisions", func(c *fiber.Ctx) error {
		requester, err := requesterID(c)
		if err != nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		}
		id, err := paramID(c, "id")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_READ_ERROR", "cannot read uploaded file")
		}

		version, err := files.Revise(c.UserContext(), requester, id, data, c.FormValue("change_description"))
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(version)
	})

	app.Get("/files/:id/versions", func(c *fiber.Ctx) error {
		requester, err := requesterID(c)
		if err != nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		}
		id, err := paramID(c, "id")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		versions, err := files.Versions(c.UserContext(), requester, id)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(fiber.Map{"versions": versions})
	})

	app.Get("/files/:id/versions/:n/content", func(c *fiber.Ctx) error {
		requester, err := requesterID(c)
		if err != nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		}
		id, err := paramID(c, "id")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		n, err := strconv.Atoi(c.Params("n"))
		if err != nil || n < 1 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_VERSION", "invalid version number")
		}
		_, data, err := files.ReadVersion(c.UserContext(), requester, id, n)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.Send(data)
	})

	app.Post("/files/:id/links", func(c *fiber.Ctx) error {
		requester, err := requesterID(c)
		if err != nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		}
		id, err := paramID(c, "id")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var body struct {
			EntityType string `json:"entity_type"`
			EntityID   int64  `json:"entity_id"`
			LinkType   string `json:"link_type"`
		}
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "malformed request body")
		}
		link, err := files.Link(c.UserContext(), requester, id, domain.EntityKind(body.EntityType), body.EntityID, body.LinkType)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(link)
	})

	app.Delete("/files/:id/links/:linkID", func(c *fiber.Ctx) error {
		requester, err := requesterID(c)
		if err != nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		}
		id, err := paramID(c, "id")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		linkID, err := paramID(c, "linkID")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid link id format")
		}
		if err := files.Unlink(c.UserContext(), requester, id, linkID); err != nil {
			return writeDomainError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Get("/files/:id/links", func(c *fiber.Ctx) error {
		requester, err := requesterID(c)
		if err != nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		}
		id, err := paramID(c, "id")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		links, err := files.Links(c.UserContext(), requester, id)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(fiber.Map{"links": links})
	})
}

func registerUploadRoutes(app *fiber.App, uploads *service.UploadManager) {
	app.Post("/uploads", func(c *fiber.Ctx) error {
		requester, err := requesterID(c)
		if err != nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_READ_ERROR", "cannot read uploaded file")
		}

		var directoryID *int64
		if raw := c.FormValue("directory_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_DIRECTORY_ID", "invalid directory_id")
			}
			directoryID = &id
		}

		slot, err := uploads.Begin(requester, directoryID, fh.Filename, data)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(slot.Status())
	})

	app.Get("/uploads/:id", func(c *fiber.Ctx) error {
		slot, ok := uploads.Get(c.Params("id"))
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "upload not found")
		}
		return c.JSON(slot.Status())
	})

	app.Post("/uploads/:id/confirm", func(c *fiber.Ctx) error {
		slot, ok := uploads.Get(c.Params("id"))
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "upload not found")
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "malformed request body")
		}
		if err := slot.Confirm(body.Name); err != nil {
			return writeDomainError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(slot.Status())
	})

	app.Post("/uploads/:id/cancel", func(c *fiber.Ctx) error {
		slot, ok := uploads.Get(c.Params("id"))
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "upload not found")
		}
		slot.Cancel()
		return c.JSON(slot.Status())
	})

	app.Post("/uploads/:id/ack", func(c *fiber.Ctx) error {
		slot, ok := uploads.Get(c.Params("id"))
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "upload not found")
		}
		slot.Acknowledge()
		return c.JSON(slot.Status())
	})

	// Server-sent events: one data line per progress tick until the machine
	// reaches a terminal state.
	app.Get("/uploads/:id/events", func(c *fiber.Ctx) error {
		slot, ok := uploads.Get(c.Params("id"))
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "upload not found")
		}

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			for ev := range slot.Events() {
				data, err := json.Marshal(ev)
				if err != nil {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", data)
				if err := w.Flush(); err != nil {
					// Client went away; the machine keeps running.
					return
				}
			}
		}))
		return nil
	})
}
