package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// HTTPTestCase drives a single handler invocation. WantErrCode, when set,
// asserts the wire error code in the standard response envelope.
type HTTPTestCase struct {
	Name        string
	Method      string
	Path        string
	Body        interface{}
	Headers     map[string]string
	Prepare     func(t *testing.T, tc *TestContext)
	WantStatus  int
	WantErrCode string
	Check       func(t *testing.T, tc *TestContext)
}

// RunHTTPTestCases runs each case as a subtest against the handler.
func RunHTTPTestCases(t *testing.T, handler gin.HandlerFunc, cases []HTTPTestCase) {
	t.Helper()

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			RunHTTPTestCase(t, handler, tc)
		})
	}
}

// RunHTTPTestCase builds the request, runs the handler, and applies the
// case's assertions.
func RunHTTPTestCase(t *testing.T, handler gin.HandlerFunc, tc HTTPTestCase) {
	t.Helper()

	method := tc.Method
	if method == "" {
		method = http.MethodGet
	}
	path := tc.Path
	if path == "" {
		path = "/"
	}

	var body io.Reader
	if tc.Body != nil {
		body = ToJSONReader(t, tc.Body)
	}
	req := httptest.NewRequest(method, path, body)
	if tc.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range tc.Headers {
		req.Header.Set(k, v)
	}

	ctx := NewRequestContext(t, method, path, req)
	if tc.Prepare != nil {
		tc.Prepare(t, ctx)
	}

	handler(ctx.Ctx)

	if tc.WantStatus != 0 {
		assert.Equal(t, tc.WantStatus, ctx.Code(), "unexpected status code")
	}
	if tc.WantErrCode != "" {
		AssertErrorResponse(t, ctx, tc.WantErrCode)
	}
	if tc.Check != nil {
		tc.Check(t, ctx)
	}
}

// JSONResponse parses the recorded body as a generic JSON object.
func JSONResponse(t *testing.T, tc *TestContext) map[string]interface{} {
	t.Helper()

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(tc.Body(), &result), "parse JSON response")
	return result
}

// JSONResponseAs parses the recorded body into T.
func JSONResponseAs[T any](t *testing.T, tc *TestContext) T {
	t.Helper()

	var result T
	require.NoError(t, json.Unmarshal(tc.Body(), &result), "parse JSON response")
	return result
}

// AssertSuccessResponse asserts the standard envelope with success=true
// and no error object.
func AssertSuccessResponse(t *testing.T, tc *TestContext) {
	t.Helper()

	resp := JSONResponse(t, tc)
	assert.Equal(t, true, resp["success"], "expected success envelope")
	assert.Nil(t, resp["error"], "expected no error object")
}

// AssertErrorResponse asserts the standard envelope with success=false
// and the expected wire error code.
func AssertErrorResponse(t *testing.T, tc *TestContext, wantCode string) {
	t.Helper()

	resp := JSONResponse(t, tc)
	assert.Equal(t, false, resp["success"], "expected failure envelope")

	errObj, ok := resp["error"].(map[string]interface{})
	require.True(t, ok, "expected error object in response")
	assert.Equal(t, wantCode, errObj["code"], "unexpected error code")
}

// ToJSONReader marshals v and returns a reader over the JSON bytes.
func ToJSONReader(t *testing.T, v interface{}) io.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err, "marshal request body")
	return bytes.NewReader(data)
}
