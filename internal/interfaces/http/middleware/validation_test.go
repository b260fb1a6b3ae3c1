package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestock/backend/internal/interfaces/http/dto"
)

// addItemInput mirrors the shape of a movement item payload so the tests
// exercise the same rule set the API binds with.
type addItemInput struct {
	ProductID string          `json:"product_id" binding:"required,uuid"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required,gt=0"`
}

func bindRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.POST("/movements/items", func(c *gin.Context) {
		var req addItemInput
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return router
}

func postItem(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/movements/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestValidationRejectsBadPayload(t *testing.T) {
	router := bindRouter()

	w := postItem(router, `{"product_id": "not-a-uuid", "quantity": 0}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "Request validation failed", resp.Error.Message)
	require.Len(t, resp.Error.Details, 2)

	// Field names come from the json tags, not the Go identifiers
	fields := []string{resp.Error.Details[0].Field, resp.Error.Details[1].Field}
	assert.Contains(t, fields, "product_id")
	assert.Contains(t, fields, "quantity")
}

func TestValidationNegativeQuantityRejected(t *testing.T) {
	router := bindRouter()

	// gt=0 applies to the decimal via the registered custom type func
	w := postItem(router, `{"product_id": "b2f1a1f0-0d70-4f3a-9a3e-8c1b0a40f001", "quantity": "-3"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "positive quantity")
}

func TestValidationAcceptsGoodPayload(t *testing.T) {
	router := bindRouter()

	w := postItem(router, `{"product_id": "b2f1a1f0-0d70-4f3a-9a3e-8c1b0a40f001", "quantity": "12.5"}`)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidationMessages(t *testing.T) {
	type ruleSet struct {
		Required string `binding:"required"`
		UUID     string `binding:"omitempty,uuid"`
		OneOf    string `binding:"omitempty,oneof=good damaged manque"`
		GTE      int    `binding:"omitempty,gte=10"`
	}

	v := validator.New()
	v.SetTagName("binding")
	err := v.Struct(ruleSet{UUID: "nope", OneOf: "fine", GTE: 3})
	require.Error(t, err)

	messages := map[string]string{}
	for _, e := range err.(validator.ValidationErrors) {
		messages[e.Field()] = validationMessage(e)
	}

	assert.Equal(t, "This field is required", messages["Required"])
	assert.Equal(t, "Invalid UUID format", messages["UUID"])
	assert.Equal(t, "Must be one of: good damaged manque", messages["OneOf"])
	assert.Equal(t, "Must be greater than or equal to 10", messages["GTE"])
}
