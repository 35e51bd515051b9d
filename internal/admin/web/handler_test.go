package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ecodeclub/ginx"
	"github.com/gin-gonic/gin"
	"github.com/meoying/schedlock-go/internal/admin/service"
	dlock "github.com/meoying/schedlock-go/internal/lock"
	mlock "github.com/meoying/schedlock-go/internal/lock/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*gin.Engine, *mlock.Store) {
	gin.SetMode(gin.TestMode)
	store := mlock.NewStore()
	for _, key := range []string{"lock:app:report", "lock:app:clean"} {
		ok, err := store.SetIfAbsent(context.Background(), key, "abc", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}
	server := gin.New()
	NewHandler(service.NewLockService(store, dlock.NewKeyBuilder("app"))).RegisterRoutes(server)
	return server, store
}

func TestHandler(t *testing.T) {
	testCases := []struct {
		name  string
		path  string
		req   any
		after func(t *testing.T, store *mlock.Store)

		wantCode int
		wantData any
		wantMsg  string
	}{
		{
			name:     "列出全部",
			path:     "/locks/list",
			req:      ListReq{},
			after:    func(t *testing.T, store *mlock.Store) {},
			wantCode: http.StatusOK,
			wantData: []any{
				map[string]any{"name": "clean", "key": "lock:app:clean"},
				map[string]any{"name": "report", "key": "lock:app:report"},
			},
		},
		{
			name:     "按照前缀列出",
			path:     "/locks/list",
			req:      ListReq{NamePrefix: "rep"},
			after:    func(t *testing.T, store *mlock.Store) {},
			wantCode: http.StatusOK,
			wantData: []any{
				map[string]any{"name": "report", "key": "lock:app:report"},
			},
		},
		{
			name:     "锁存在",
			path:     "/locks/exists",
			req:      ExistsReq{Name: "report"},
			after:    func(t *testing.T, store *mlock.Store) {},
			wantCode: http.StatusOK,
			wantData: true,
		},
		{
			name:     "锁不存在",
			path:     "/locks/exists",
			req:      ExistsReq{Name: "missing"},
			after:    func(t *testing.T, store *mlock.Store) {},
			wantCode: http.StatusOK,
			wantData: false,
		},
		{
			name: "没有确认不会清理",
			path: "/locks/purge",
			req:  PurgeReq{},
			after: func(t *testing.T, store *mlock.Store) {
				keys, err := store.Keys(context.Background(), "")
				require.NoError(t, err)
				assert.Len(t, keys, 2)
			},
			wantCode: http.StatusOK,
			wantMsg:  errPurgeNotConfirmed.Error(),
		},
		{
			name: "清理",
			path: "/locks/purge",
			req:  PurgeReq{Confirm: true},
			after: func(t *testing.T, store *mlock.Store) {
				keys, err := store.Keys(context.Background(), "")
				require.NoError(t, err)
				assert.Empty(t, keys)
			},
			wantCode: http.StatusOK,
			wantData: float64(2),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server, store := newServer(t)
			body, err := json.Marshal(tc.req)
			require.NoError(t, err)
			req, err := http.NewRequest(http.MethodPost, tc.path, bytes.NewReader(body))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")
			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, req)
			assert.Equal(t, tc.wantCode, recorder.Code)

			var res ginx.Result
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&res))
			assert.Equal(t, tc.wantData, res.Data)
			assert.Equal(t, tc.wantMsg, res.Msg)
			tc.after(t, store)
		})
	}
}
