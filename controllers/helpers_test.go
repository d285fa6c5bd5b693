package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"peer-review-api/services"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: title failed on 'required'", services.ErrValidation), http.StatusBadRequest},
		{services.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("%w: not yours", services.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("paper: %w", services.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: already published", services.ErrInvalidTransition), http.StatusConflict},
		{services.ErrSlotsExhausted, http.StatusConflict},
		{services.ErrDuplicateSubmission, http.StatusConflict},
		{services.ErrConflict, http.StatusConflict},
		{services.ErrSweepRunning, http.StatusConflict},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		respondError(c, tc.err)

		assert.Equal(t, tc.code, w.Code, tc.err.Error())
		assert.Contains(t, w.Body.String(), `"error"`)
	}
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, errors.New("dial tcp 10.0.0.5:3306: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, strings.Contains(w.Body.String(), "10.0.0.5"))
}

func TestBindJSONAllowsEmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	var req services.DeclineReviewInput
	assert.True(t, bindJSON(c, &req))
	assert.Empty(t, req.Reason)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	assert.False(t, bindJSON(c, &req))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
