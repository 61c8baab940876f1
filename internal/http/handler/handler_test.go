package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"iams/internal/domain"
	"iams/internal/model"
	"iams/internal/service"
	svcMocks "iams/internal/service/mocks"
)

type testEnv struct {
	app      *fiber.App
	dbMock   sqlmock.Sqlmock
	dirs     *svcMocks.MockDirectoryService
	files    *svcMocks.MockFileService
	content  *svcMocks.MockContentStore
	upFiles  *svcMocks.MockFileService
	uploads  *service.UploadManager
	database *sql.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		app:      fiber.New(fiber.Config{ErrorHandler: ErrorHandler()}),
		dbMock:   dbMock,
		dirs:     new(svcMocks.MockDirectoryService),
		files:    new(svcMocks.MockFileService),
		content:  new(svcMocks.MockContentStore),
		upFiles:  new(svcMocks.MockFileService),
		database: db,
	}
	env.uploads = service.NewUploadManager(env.dirs, env.upFiles, env.content, time.Second, zap.NewNop())
	RegisterRoutes(env.app, db, env.dirs, env.files, env.uploads)
	return env
}

func asUser(req *http.Request, id string) *http.Request {
	req.Header.Set("X-User-ID", id)
	return req
}

func decodeError(t *testing.T, body io.Reader) errorPayload {
	t.Helper()
	var payload errorPayload
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	return payload
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	t.Run("healthy", func(t *testing.T) {
		env.dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("unhealthy", func(t *testing.T) {
		env.dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp.Body).Error.Code)
	})
}

func TestDirectoryTree(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t)
		env.dirs.On("ListTree", mock.Anything, int64(100)).Return([]model.TreeEntry{
			{Directory: model.Directory{ID: 1, Name: "Root", FullPath: "/"}, HasChildren: true},
		}, nil)

		req := asUser(httptest.NewRequest(http.MethodGet, "/directories/tree", nil), "100")
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Directories []model.TreeEntry `json:"directories"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Directories, 1)
		assert.True(t, body.Directories[0].HasChildren)
	})

	t.Run("requires an authenticated user", func(t *testing.T) {
		env := newTestEnv(t)
		resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/directories/tree", nil))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unseeded tree reports service unavailable", func(t *testing.T) {
		env := newTestEnv(t)
		env.dirs.On("ListTree", mock.Anything, int64(100)).Return(nil, domain.ErrNotReady)

		req := asUser(httptest.NewRequest(http.MethodGet, "/directories/tree", nil), "100")
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "NOT_READY", decodeError(t, resp.Body).Error.Code)
	})
}

func TestGetDirectory(t *testing.T) {
	t.Run("returns record, breadcrumb, and access", func(t *testing.T) {
		env := newTestEnv(t)
		env.dirs.On("Navigate", mock.Anything, int64(100), int64(10)).Return(
			&model.Directory{ID: 10, Name: "alice", FullPath: "/alice"},
			[]model.Directory{{ID: 1, FullPath: "/"}},
			nil,
		)
		env.dirs.On("Access", mock.Anything, int64(100), int64(10)).
			Return(model.DirectoryAccess{CanView: true, CanUpload: true}, nil)

		req := asUser(httptest.NewRequest(http.MethodGet, "/directories/10", nil), "100")
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Directory  model.Directory       `json:"directory"`
			Breadcrumb []model.Directory     `json:"breadcrumb"`
			Access     model.DirectoryAccess `json:"access"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "/alice", body.Directory.FullPath)
		assert.Len(t, body.Breadcrumb, 1)
		assert.True(t, body.Access.CanUpload)
	})

	t.Run("not found", func(t *testing.T) {
		env := newTestEnv(t)
		env.dirs.On("Navigate", mock.Anything, int64(100), int64(99)).
			Return(nil, nil, domain.ErrNotFound)

		req := asUser(httptest.NewRequest(http.MethodGet, "/directories/99", nil), "100")
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("denied view stays hidden", func(t *testing.T) {
		env := newTestEnv(t)
		env.dirs.On("Navigate", mock.Anything, int64(200), int64(10)).
			Return(nil, nil, domain.ErrAccessDenied)

		req := asUser(httptest.NewRequest(http.MethodGet, "/directories/10", nil), "200")
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestCreateDirectory(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		env := newTestEnv(t)
		env.dirs.On("CreateChild", mock.Anything, int64(100), int64(10), "Scan Results", "quarterly scans").
			Return(&model.Directory{ID: 11, Name: "Scan Results", FullPath: "/alice/scan_results"}, nil)

		body, _ := json.Marshal(map[string]string{"name": "Scan Results", "description": "quarterly scans"})
		req := asUser(httptest.NewRequest(http.MethodPost, "/directories/10/children", bytes.NewReader(body)), "100")
		req.Header.Set("Content-Type", "application/json")
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("sibling conflict", func(t *testing.T) {
		env := newTestEnv(t)
		env.dirs.On("CreateChild", mock.Anything, int64(100), int64(10), "Reports", "").
			Return(nil, domain.Errf(domain.KindNameConflict, "a directory named %q already exists here", "Reports"))

		body, _ := json.Marshal(map[string]string{"name": "Reports"})
		req := asUser(httptest.NewRequest(http.MethodPost, "/directories/10/children", bytes.NewReader(body)), "100")
		req.Header.Set("Content-Type", "application/json")
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "NAME_CONFLICT", decodeError(t, resp.Body).Error.Code)
	})
}

func TestListFiles(t *testing.T) {
	t.Run("root-level listing", func(t *testing.T) {
		env := newTestEnv(t)
		env.files.On("List", mock.Anything, int64(100), (*int64)(nil)).
			Return([]model.File{{ID: 1, Filename: "notes.md"}}, nil)

		req := asUser(httptest.NewRequest(http.MethodGet, "/files", nil), "100")
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("denied directory", func(t *testing.T) {
		env := newTestEnv(t)
		env.files.On("List", mock.Anything, int64(200), mock.Anything).
			Return(nil, domain.ErrAccessDenied)

		req := asUser(httptest.NewRequest(http.MethodGet, "/files?directory_id=10", nil), "200")
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestGetFileContent(t *testing.T) {
	t.Run("streams bytes with the stored mime type", func(t *testing.T) {
		env := newTestEnv(t)
		env.files.On("Read", mock.Anything, int64(100), int64(1)).Return(
			&model.File{ID: 1, Filename: "notes.md", MimeType: "text/markdown"},
			[]byte("# Findings"),
			nil,
		)

		req := asUser(httptest.NewRequest(http.MethodGet, "/files/1/content", nil), "100")
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/markdown", resp.Header.Get("Content-Type"))

		data, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "# Findings", string(data))
	})

	t.Run("corrupted content is unprocessable", func(t *testing.T) {
		env := newTestEnv(t)
		env.files.On("Read", mock.Anything, int64(100), int64(1)).
			Return(nil, nil, domain.ErrIntegrityMismatch)

		req := asUser(httptest.NewRequest(http.MethodGet, "/files/1/content", nil), "100")
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestDeleteFile(t *testing.T) {
	env := newTestEnv(t)
	env.files.On("Delete", mock.Anything, int64(100), int64(1)).Return(nil)

	req := asUser(httptest.NewRequest(http.MethodDelete, "/files/1", nil), "100")
	resp, _ := env.app.Test(req)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCreateLink(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		env := newTestEnv(t)
		env.files.On("Link", mock.Anything, int64(100), int64(1), domain.EntityAsset, int64(42), "attachment").
			Return(&model.DocumentLink{ID: 7, FileID: 1, EntityType: domain.EntityAsset, EntityID: 42}, nil)

		body, _ := json.Marshal(map[string]any{"entity_type": "asset", "entity_id": 42, "link_type": "attachment"})
		req := asUser(httptest.NewRequest(http.MethodPost, "/files/1/links", bytes.NewReader(body)), "100")
		req.Header.Set("Content-Type", "application/json")
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("unknown entity kind", func(t *testing.T) {
		env := newTestEnv(t)
		env.files.On("Link", mock.Anything, int64(100), int64(1), domain.EntityKind("spaceship"), int64(42), "attachment").
			Return(nil, domain.Errf(domain.KindInvalidName, "unknown entity kind %q", "spaceship"))

		body, _ := json.Marshal(map[string]any{"entity_type": "spaceship", "entity_id": 42, "link_type": "attachment"})
		req := asUser(httptest.NewRequest(http.MethodPost, "/files/1/links", bytes.NewReader(body)), "100")
		req.Header.Set("Content-Type", "application/json")
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func multipartUpload(t *testing.T, filename string, content []byte, directoryID string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	if directoryID != "" {
		require.NoError(t, w.WriteField("directory_id", directoryID))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadFlow(t *testing.T) {
	t.Run("submission opens a naming slot", func(t *testing.T) {
		env := newTestEnv(t)

		buf, contentType := multipartUpload(t, "draft.md", []byte("# Findings"), "10")
		req := asUser(httptest.NewRequest(http.MethodPost, "/uploads", buf), "100")
		req.Header.Set("Content-Type", contentType)
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		var status service.UploadStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.Equal(t, service.UploadNaming, status.State)
		assert.NotEmpty(t, status.ID)
	})

	t.Run("confirm drives the machine to completion", func(t *testing.T) {
		env := newTestEnv(t)
		content := []byte("# Findings\n")
		env.dirs.On("Access", mock.Anything, int64(100), int64(10)).
			Return(model.DirectoryAccess{CanView: true, CanUpload: true}, nil)
		env.content.On("PlacementFor", model.FileKindMarkdown, int64(len(content))).
			Return(model.PlacementInline)
		env.upFiles.On("Register", mock.Anything, mock.Anything).
			Return(&model.File{ID: 7, Filename: "findings.md"}, nil)

		buf, contentType := multipartUpload(t, "draft.md", content, "10")
		req := asUser(httptest.NewRequest(http.MethodPost, "/uploads", buf), "100")
		req.Header.Set("Content-Type", contentType)
		resp, _ := env.app.Test(req)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var status service.UploadStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))

		body, _ := json.Marshal(map[string]string{"name": "findings"})
		confirmReq := asUser(httptest.NewRequest(http.MethodPost, "/uploads/"+status.ID+"/confirm", bytes.NewReader(body)), "100")
		confirmReq.Header.Set("Content-Type", "application/json")
		confirmResp, _ := env.app.Test(confirmReq)
		require.Equal(t, http.StatusAccepted, confirmResp.StatusCode)

		slot, ok := env.uploads.Get(status.ID)
		require.True(t, ok)
		select {
		case <-slot.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("upload did not finish")
		}

		statusReq := asUser(httptest.NewRequest(http.MethodGet, "/uploads/"+status.ID, nil), "100")
		statusResp, _ := env.app.Test(statusReq)
		require.Equal(t, http.StatusOK, statusResp.StatusCode)

		var final service.UploadStatus
		require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&final))
		assert.Equal(t, service.UploadComplete, final.State)
		assert.Equal(t, 100, final.Percent)
		require.NotNil(t, final.FileID)
		assert.Equal(t, int64(7), *final.FileID)
	})

	t.Run("unknown slot", func(t *testing.T) {
		env := newTestEnv(t)
		req := asUser(httptest.NewRequest(http.MethodGet, "/uploads/no-such-slot", nil), "100")
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
