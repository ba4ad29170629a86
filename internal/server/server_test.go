package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/MaTriXy/stagehand/api/schemas"
)

func setupServerTest(t *testing.T) (*gin.Engine, *MockResolver, *MockNavigator) {
	t.Helper()
	resolver := &MockResolver{}
	navigator := &MockNavigator{}
	srv := New(resolver, navigator, zaptest.NewLogger(t))
	return srv.Router(), resolver, navigator
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router, _, _ := setupServerTest(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNavigate(t *testing.T) {
	t.Run("PointsThePageAtTheRequestedURL", func(t *testing.T) {
		router, _, navigator := setupServerTest(t)
		navigator.On("Navigate", mock.Anything, "https://example.com/login").Return(nil).Once()

		rec := doJSON(t, router, http.MethodPost, "/v1/navigate", `{"url":"https://example.com/login"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"url":"https://example.com/login"}`, rec.Body.String())
		navigator.AssertExpectations(t)
	})

	t.Run("MissingURLIsBadRequest", func(t *testing.T) {
		router, _, navigator := setupServerTest(t)

		rec := doJSON(t, router, http.MethodPost, "/v1/navigate", `{}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		navigator.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
	})

	t.Run("NavigationFailureSurfaces", func(t *testing.T) {
		router, _, navigator := setupServerTest(t)
		navigator.On("Navigate", mock.Anything, "https://example.com").
			Return(errors.New("net::ERR_NAME_NOT_RESOLVED")).Once()

		rec := doJSON(t, router, http.MethodPost, "/v1/navigate", `{"url":"https://example.com"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "ERR_NAME_NOT_RESOLVED")
	})
}

func TestObserve(t *testing.T) {
	const key = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

	t.Run("ResolvedInstructionReturnsKey", func(t *testing.T) {
		router, resolver, _ := setupServerTest(t)
		resolver.On("Observe", mock.Anything, "click the login button").Return(key, true, nil).Once()

		rec := doJSON(t, router, http.MethodPost, "/v1/observe", `{"instruction":"click the login button"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, fmt.Sprintf(`{"key":%q,"found":true}`, key), rec.Body.String())
		resolver.AssertExpectations(t)
	})

	t.Run("NoMatchOmitsKey", func(t *testing.T) {
		router, resolver, _ := setupServerTest(t)
		resolver.On("Observe", mock.Anything, "the cancel link").Return("", false, nil).Once()

		rec := doJSON(t, router, http.MethodPost, "/v1/observe", `{"instruction":"the cancel link"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"found":false}`, rec.Body.String())
	})

	t.Run("MissingInstructionIsBadRequest", func(t *testing.T) {
		router, resolver, _ := setupServerTest(t)

		rec := doJSON(t, router, http.MethodPost, "/v1/observe", `{"instruction":""}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resolver.AssertNotCalled(t, "Observe", mock.Anything, mock.Anything)
	})

	t.Run("HallucinatedElementReadsAsBadUpstream", func(t *testing.T) {
		router, resolver, _ := setupServerTest(t)
		resolver.On("Observe", mock.Anything, "the ghost button").
			Return("", false, fmt.Errorf("%w: element 42", schemas.ErrUnknownElement)).Once()

		rec := doJSON(t, router, http.MethodPost, "/v1/observe", `{"instruction":"the ghost button"}`)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "element 42")
	})
}

func TestAct(t *testing.T) {
	t.Run("CompletedSequenceReportsDone", func(t *testing.T) {
		router, resolver, _ := setupServerTest(t)
		resolver.On("Act", mock.Anything, "submit the form").Return(nil).Once()

		rec := doJSON(t, router, http.MethodPost, "/v1/act", `{"instruction":"submit the form"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"done"}`, rec.Body.String())
		resolver.AssertExpectations(t)
	})

	t.Run("DetachedTargetIsUnprocessable", func(t *testing.T) {
		router, resolver, _ := setupServerTest(t)
		resolver.On("Act", mock.Anything, "click the stale button").
			Return(fmt.Errorf("%w: cached locator %q", schemas.ErrTargetUnattached, "#gone")).Once()

		rec := doJSON(t, router, http.MethodPost, "/v1/act", `{"instruction":"click the stale button"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("MalformedBodyIsBadRequest", func(t *testing.T) {
		router, resolver, _ := setupServerTest(t)

		rec := doJSON(t, router, http.MethodPost, "/v1/act", `{"instruction":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resolver.AssertNotCalled(t, "Act", mock.Anything, mock.Anything)
	})

	t.Run("PageRequestsAreSerialized", func(t *testing.T) {
		router, resolver, _ := setupServerTest(t)

		var inFlight, peak atomic.Int32
		resolver.On("Act", mock.Anything, "click around").Run(func(mock.Arguments) {
			if n := inFlight.Add(1); n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
		}).Return(nil).Times(4)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				doJSON(t, router, http.MethodPost, "/v1/act", `{"instruction":"click around"}`)
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), peak.Load())
		resolver.AssertExpectations(t)
	})
}

func TestExtract(t *testing.T) {
	t.Run("OraclePayloadPassesThrough", func(t *testing.T) {
		router, resolver, _ := setupServerTest(t)
		resolver.On("Extract", mock.Anything, "the cart total").
			Return(json.RawMessage(`{"total":"$42.00"}`), nil).Once()

		rec := doJSON(t, router, http.MethodPost, "/v1/extract", `{"instruction":"the cart total"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":{"total":"$42.00"}}`, rec.Body.String())
	})

	t.Run("OracleFailureReadsAsBadUpstream", func(t *testing.T) {
		router, resolver, _ := setupServerTest(t)
		resolver.On("Extract", mock.Anything, "the cart total").
			Return(nil, fmt.Errorf("%w: response is not JSON", schemas.ErrOracleContract)).Once()

		rec := doJSON(t, router, http.MethodPost, "/v1/extract", `{"instruction":"the cart total"}`)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"OracleContract", schemas.ErrOracleContract, http.StatusBadGateway},
		{"UnknownElement", schemas.ErrUnknownElement, http.StatusBadGateway},
		{"TargetUnattached", schemas.ErrTargetUnattached, http.StatusUnprocessableEntity},
		{"InvalidCommand", schemas.ErrInvalidCommand, http.StatusUnprocessableEntity},
		{"WrappedSentinel", fmt.Errorf("act: %w", schemas.ErrInvalidCommand), http.StatusUnprocessableEntity},
		{"Unclassified", errors.New("browser crashed"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusForError(tc.err))
		})
	}
}
