package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/Decentr-net/plutus/internal/middleware/memory"
)

func TestCached(t *testing.T) {
	calls := 0
	code := http.StatusInternalServerError

	h := cached(memory.NewStorage(), time.Minute, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"n":1}`))
	})

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/v1/leaderboard?limit=5", nil))
		return w
	}

	// errors are not cached
	require.Equal(t, http.StatusInternalServerError, do().Code)
	require.Equal(t, 1, calls)

	code = http.StatusOK
	require.Equal(t, http.StatusOK, do().Code)
	require.Equal(t, 2, calls)

	w := do()
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `{"n":1}`, w.Body.String())
	require.Equal(t, "HIT", w.Header().Get("X-Cache"))
	require.Equal(t, 2, calls)
}

func TestLogger(t *testing.T) {
	hook := test.NewLocal(logrus.StandardLogger())
	defer hook.Reset()

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	r := httptest.NewRequest(http.MethodGet, "/v1/xp/0x1", nil)
	r.Header.Set("X-Real-Ip", "203.0.113.7")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusBadGateway, w.Code)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, logrus.ErrorLevel, entry.Level)
	require.Equal(t, "203.0.113.7", entry.Data["ip"])
	require.Equal(t, http.StatusBadGateway, entry.Data["status"])
}
