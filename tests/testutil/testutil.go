// Package testutil holds the helpers shared by the GeStock test suites:
// gin test contexts with JWT identity pre-seeded, a sqlmock-backed GORM
// handle, deterministic UUID fixtures for the movement workflow actors,
// and eventually-style waits for asynchronous assertions.
package testutil

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gestock/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDB pairs a GORM handle with the sqlmock expectations behind it.
// The underlying connection is closed automatically when the test ends.
type MockDB struct {
	DB   *gorm.DB
	Mock sqlmock.Sqlmock

	conn *sql.DB
}

// NewMockDB opens GORM over a sqlmock connection using the same dialector
// settings as the production persistence layer.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err, "create sqlmock")
	t.Cleanup(func() { _ = conn.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       conn,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err, "open gorm over sqlmock")

	return &MockDB{DB: gormDB, Mock: mock, conn: conn}
}

// ExpectationsWereMet fails the test when any declared expectation was
// not exercised.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "unmet database expectations")
}

// TestContext bundles a gin context with its response recorder.
type TestContext struct {
	Ctx    *gin.Context
	Rec    *httptest.ResponseRecorder
	Engine *gin.Engine
}

// NewTestContext creates a gin test context carrying a bare GET request.
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()
	return NewRequestContext(t, http.MethodGet, "/", nil)
}

// NewRequestContext creates a gin test context around a request built from
// the given method and path.
func NewRequestContext(t *testing.T, method, path string, req *http.Request) *TestContext {
	t.Helper()

	rec := httptest.NewRecorder()
	ctx, engine := gin.CreateTestContext(rec)
	if req != nil {
		ctx.Request = req
	} else {
		ctx.Request = httptest.NewRequest(method, path, nil)
	}

	return &TestContext{Ctx: ctx, Rec: rec, Engine: engine}
}

// ActAs seeds the context with the JWT identity the auth middleware would
// have extracted, so handlers under test see an authenticated caller.
func (tc *TestContext) ActAs(tenantID, serviceID, userID uuid.UUID) *TestContext {
	tc.Ctx.Set(middleware.JWTTenantIDKey, tenantID.String())
	tc.Ctx.Set(middleware.JWTServiceIDKey, serviceID.String())
	tc.Ctx.Set(middleware.JWTUserIDKey, userID.String())
	return tc
}

// WithRequestID stamps a request ID the way the request-ID middleware does.
func (tc *TestContext) WithRequestID(id string) *TestContext {
	tc.Ctx.Set("request_id", id)
	tc.Ctx.Request.Header.Set(middleware.RequestIDKey, id)
	return tc
}

// SetHeader sets a header on the underlying request.
func (tc *TestContext) SetHeader(key, value string) {
	tc.Ctx.Request.Header.Set(key, value)
}

// Body returns the recorded response body.
func (tc *TestContext) Body() []byte {
	return tc.Rec.Body.Bytes()
}

// Code returns the recorded HTTP status.
func (tc *TestContext) Code() int {
	return tc.Rec.Code
}

// UUIDFromSeed derives a reproducible UUID from a seed string. The same
// seed always yields the same ID, so fixtures can be compared across
// processes and test runs.
func UUIDFromSeed(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// Well-known actors of the movement workflow. The requesting service asks
// for stock; the providing service approves, picks lots, and ships.
func TenantID() uuid.UUID            { return UUIDFromSeed("tenant") }
func RequestingServiceID() uuid.UUID { return UUIDFromSeed("requesting-service") }
func ProvidingServiceID() uuid.UUID  { return UUIDFromSeed("providing-service") }
func RequestingUserID() uuid.UUID    { return UUIDFromSeed("requesting-user") }
func ProvidingUserID() uuid.UUID     { return UUIDFromSeed("providing-user") }

// Eventually polls the condition until it holds or the timeout elapses,
// failing the test on timeout.
func Eventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...interface{}) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return
		}
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(interval)
	}
	require.Fail(t, "condition not met within timeout", msgAndArgs...)
}

// Never verifies the condition stays false for the whole duration.
func Never(t *testing.T, condition func() bool, duration, interval time.Duration, msgAndArgs ...interface{}) {
	t.Helper()

	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if condition() {
			require.Fail(t, "condition unexpectedly became true", msgAndArgs...)
		}
		time.Sleep(interval)
	}
}
