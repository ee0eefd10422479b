package controller

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline-be/internal/dto"
	"redline-be/internal/pkg/serverutils"
	"redline-be/internal/service"
	"redline-be/internal/session"
)

// documents answers the calls the tests make; anything else panics.
type documents struct {
	service.IDocumentService
	created  *dto.CreateDocumentRequest
	resolved struct {
		author session.Author
		key    string
		accept bool
	}
}

func (d *documents) Create(_ context.Context, _ string, req *dto.CreateDocumentRequest) (*dto.CreateDocumentResponse, error) {
	d.created = req
	return &dto.CreateDocumentResponse{Id: uuid.New()}, nil
}

func (d *documents) Show(context.Context, uuid.UUID) (*dto.ShowDocumentResponse, error) {
	return nil, service.ErrDocumentNotFound
}

func (d *documents) ResolveChange(_ context.Context, author session.Author, _ uuid.UUID, key string, accept bool) (*dto.ResolveChangeResponse, error) {
	d.resolved.author, d.resolved.key, d.resolved.accept = author, key, accept
	return &dto.ResolveChangeResponse{ContainerKey: key, Resolved: 1}, nil
}

func newApp(t *testing.T, docs *documents) (*fiber.App, string) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware(
		serverutils.ErrorStatus{Err: service.ErrDocumentNotFound, Status: fiber.StatusNotFound},
	))
	NewDocumentController(docs).RegisterRoutes(app.Group("/api"))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":   "u1",
		"full_name": "Ada",
		"exp":       time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return app, "Bearer " + token
}

func TestDocumentController(t *testing.T) {
	docs := &documents{}
	app, bearer := newApp(t, docs)
	id := uuid.NewString()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"create", "POST", "/api/documents", `{"title":"Draft"}`, fiber.StatusOK},
		{"create without title", "POST", "/api/documents", `{}`, fiber.StatusBadRequest},
		{"show missing", "GET", "/api/documents/" + id, "", fiber.StatusNotFound},
		{"show bad id", "GET", "/api/documents/nope", "", fiber.StatusBadRequest},
		{"accept", "POST", "/api/documents/" + id + "/changes/k1/accept", "", fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Authorization", bearer)
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	require.NotNil(t, docs.created)
	assert.Equal(t, "Draft", docs.created.Title)
	assert.Equal(t, session.Author{ID: "u1", FullName: "Ada"}, docs.resolved.author)
	assert.Equal(t, "k1", docs.resolved.key)
	assert.True(t, docs.resolved.accept)
}

func TestDocumentController_RequiresToken(t *testing.T) {
	app, _ := newApp(t, &documents{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/documents/"+uuid.NewString(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var body serverutils.Response[any]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
}
