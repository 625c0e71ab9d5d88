package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type recordingReaper struct {
	calls        int
	handledFirst bool
	handled      *bool
}

func (r *recordingReaper) TryReap(ctx context.Context) bool {
	r.calls++
	r.handledFirst = *r.handled
	return true
}

func TestLazyReap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handled := false
	reaper := &recordingReaper{handled: &handled}

	router := gin.New()
	router.Use(LazyReap(reaper))
	router.GET("/orders/:id", func(c *gin.Context) {
		handled = true
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, reaper.calls)
	assert.True(t, reaper.handledFirst)
}
