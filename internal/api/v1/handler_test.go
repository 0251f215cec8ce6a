package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/aidingjing/rain-gauge-api/internal/exporter"
	"github.com/aidingjing/rain-gauge-api/internal/model"
	"github.com/aidingjing/rain-gauge-api/internal/service/exception"
	"github.com/aidingjing/rain-gauge-api/internal/store"
)

var cst = time.FixedZone("CST", 8*3600)

func strPtr(s string) *string { return &s }

type testEnv struct {
	router *gin.Engine
	store  *store.Store
	clock  *clockwork.FakeClock
}

// newTestEnv 真实 SQLite + 固定时钟（北京时间 2025-10-11 09:30:00）
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "raingauge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 11, 1, 30, 0, 0, time.UTC))
	svc := exception.New(st, exception.WithClock(clock), exception.WithLocation(cst))
	h := NewHandler(svc, Options{Clock: clock, ExportDir: dir, DownloadTTL: time.Minute})

	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))

	for _, row := range []struct {
		stcd string
		hour int
	}{{"A001", 10}, {"A001", 11}, {"A001", 12}, {"A002", 9}} {
		require.NoError(t, st.InsertException(context.Background(), model.ExceptionRecord{
			StationCode:   row.stcd,
			StationName:   row.stcd + " 雨量站",
			RegionID:      strPtr("661101"),
			ExceptionTime: time.Date(2025, 10, 10, row.hour, 0, 0, 0, time.UTC),
			Value:         12.5,
		}))
	}

	return &testEnv{router: r, store: st, clock: clock}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

type listEnvelope struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Data    model.PagedResult `json:"data"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestListExceptions_MixedFixture(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/getExecStationList?adcd=6611&page=1&page_size=20&status=0")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[listEnvelope](t, w)
	assert.Equal(t, 200, resp.Code)
	assert.Equal(t, "查询成功", resp.Message)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Pages)
	require.Len(t, resp.Data.Items, 2)
	assert.Equal(t, "A001", resp.Data.Items[0].StationCode)
	assert.Equal(t, "2025-10-10 12:00:00", resp.Data.Items[0].ExceptionTime)
	assert.Equal(t, "A002", resp.Data.Items[1].StationCode)
}

func TestListExceptions_AliasesAndTimeNormalization(t *testing.T) {
	env := newTestEnv(t)

	// aid/start_time 别名，"+" 形式的时间（%2B）补齐秒
	w := env.get("/api/getExecStationList?aid=6611&start_time=2025-10-10%2B10:30")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[listEnvelope](t, w)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, "2025-10-10 12:00:00", resp.Data.Items[0].ExceptionTime)

	// 仅日期：终止时间 2025-10-10 00:00:00 之前没有数据
	w = env.get("/api/getExecStationList?et=2025-10-10")
	resp = decode[listEnvelope](t, w)
	assert.Zero(t, resp.Data.Total)
	assert.NotNil(t, resp.Data.Items)
}

func TestListExceptions_StatusAllReturnsRawRows(t *testing.T) {
	env := newTestEnv(t)

	resp := decode[listEnvelope](t, env.get("/api/getExecStationList?status=all&page_size=2"))
	assert.Equal(t, 4, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Pages)
	assert.Len(t, resp.Data.Items, 2)
}

func TestListExceptions_PageBeyondLastIsEmpty(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/getExecStationList?page=9223372036854775807&page_size=2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[listEnvelope](t, w)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Pages)
	assert.NotNil(t, resp.Data.Items)
	assert.Empty(t, resp.Data.Items)
}

func TestListExceptions_InvalidParams(t *testing.T) {
	env := newTestEnv(t)

	for _, q := range []string{
		"page=0",
		"page=abc",
		"page_size=101",
		"status=9",
		"bt=yesterday",
		"bt=2025-10-11&et=2025-10-10",
		"name=" + strings.Repeat("x", 101),
	} {
		w := env.get("/api/getExecStationList?" + q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)

		resp := decode[listEnvelope](t, w)
		assert.Equal(t, 400, resp.Code, q)
		assert.Equal(t, "请求参数错误", resp.Message, q)
		assert.NotEmpty(t, resp.Error, q)
	}
}

func TestListExceptions_ExportExcel(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/getExecStationList?export=excel&status=2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, exporter.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "exceptions_20251011_093000.xlsx")
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exporter.DataSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 5) // 表头 + 4 行原始记录

	info, err := f.GetRows(exporter.InfoSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"导出时间", "2025-10-11 09:30:00"}, info[0])
	assert.Equal(t, []string{"状态", "所有记录"}, info[8])
}

type remarkEnvelope struct {
	Code    int    `json:"code"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Data    struct {
		StationCode   string  `json:"station_code"`
		StationName   string  `json:"station_name"`
		ExceptionTime string  `json:"exception_time"`
		OldRemark     *string `json:"old_remark"`
		NewRemark     string  `json:"new_remark"`
		ResolverName  string  `json:"resolver_name"`
		Status        int     `json:"status"`
		UpdatedAt     string  `json:"updated_at"`
	} `json:"data"`
}

func TestRemarkException_ResolveThenNotFound(t *testing.T) {
	env := newTestEnv(t)
	form := url.Values{
		"stcd":   {"A001"},
		"tm":     {"2025-10-10 12:00"},
		"rem":    {"sensor drift"},
		"name":   {"Li"},
		"status": {"1"},
	}

	w := env.postForm("/api/remarkExecInfo", form)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[remarkEnvelope](t, w)
	assert.Equal(t, 200, resp.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "异常原因更新成功", resp.Message)
	assert.Equal(t, "A001", resp.Data.StationCode)
	assert.Equal(t, "A001 雨量站", resp.Data.StationName)
	assert.Equal(t, "2025-10-10 12:00:00", resp.Data.ExceptionTime)
	assert.Nil(t, resp.Data.OldRemark)
	assert.Equal(t, "sensor drift", resp.Data.NewRemark)
	assert.Equal(t, "2025-10-11 09:30:00", resp.Data.UpdatedAt)

	// 已处理的记录不能再次处理
	w = env.postForm("/api/remarkExecInfo", form)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[remarkEnvelope](t, w)
	assert.Equal(t, 1001, resp.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "未找到符合条件的异常数据", resp.Message)
}

func TestRemarkException_JSONBody(t *testing.T) {
	env := newTestEnv(t)

	body := `{"stcd":"A002","tm":"2025-10-10T09:00:00","rem":"blocked funnel","name":"Wang","status":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/remarkExecInfo", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := env.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[remarkEnvelope](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, 0, resp.Data.Status)
}

func TestRemarkException_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	valid := url.Values{
		"stcd":   {"A001"},
		"tm":     {"2025-10-10 12:00:00"},
		"rem":    {"drift"},
		"name":   {"Li"},
		"status": {"1"},
	}

	cases := map[string]func(v url.Values){
		"stcd":   func(v url.Values) { v.Del("stcd") },
		"tm":     func(v url.Values) { v.Set("tm", "10/10/2025") },
		"rem":    func(v url.Values) { v.Set("rem", strings.Repeat("r", 501)) },
		"name":   func(v url.Values) { v.Del("name") },
		"status": func(v url.Values) { v.Set("status", "11") },
	}
	for field, mutate := range cases {
		form := url.Values{}
		for k, v := range valid {
			form[k] = append([]string(nil), v...)
		}
		mutate(form)

		w := env.postForm("/api/remarkExecInfo", form)
		assert.Equal(t, http.StatusBadRequest, w.Code, field)
		resp := decode[remarkEnvelope](t, w)
		assert.Equal(t, 400, resp.Code, field)
		assert.True(t, strings.HasPrefix(resp.Error, field+":"), "%s: %s", field, resp.Error)
	}
}

func TestListFarms(t *testing.T) {
	env := newTestEnv(t)

	var resp struct {
		Code int                 `json:"code"`
		Data []model.RegionEntry `json:"data"`
	}
	w := env.get("/api/farms")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 200, resp.Code)
	assert.Len(t, resp.Data, len(model.Regions()))
}

func TestGetStatistics(t *testing.T) {
	env := newTestEnv(t)

	var resp struct {
		Code int                `json:"code"`
		Data StatisticsResponse `json:"data"`
	}
	w := env.get("/api/exception-data/statistics")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.EqualValues(t, 4, resp.Data.PendingTotal)
	assert.EqualValues(t, 2, resp.Data.DistinctPendingStations)
	assert.EqualValues(t, 1, resp.Data.DistinctPendingRegions)
	require.NotNil(t, resp.Data.LatestExceptionTime)
	assert.Equal(t, "2025-10-10 12:00:00", *resp.Data.LatestExceptionTime)
	assert.Equal(t, resp.Data.PendingTotal, resp.Data.TotalPending)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	require.NoError(t, env.store.Close())
	w = env.get("/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
}

// sseEvents 解析 SSE 响应体
func sseEvents(t *testing.T, body string) []exportProgressEvent {
	t.Helper()
	var events []exportProgressEvent
	for _, chunk := range strings.Split(body, "\n\n") {
		payload, ok := strings.CutPrefix(strings.TrimSpace(chunk), "data: ")
		if !ok {
			continue
		}
		var evt exportProgressEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &evt))
		events = append(events, evt)
	}
	return events
}

func TestExportStream_ThenDownloadOnce(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodPost, "/api/exception-data/export/stream?adcd=6611", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := sseEvents(t, w.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, "start", events[0].Type)
	last := events[len(events)-1]
	require.Equal(t, "done", last.Type, w.Body.String())

	data, ok := last.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, data["rows"])
	downloadURL, _ := data["downloadUrl"].(string)
	require.True(t, strings.HasPrefix(downloadURL, "/api/exception-data/export/download/"), downloadURL)

	w = env.get(downloadURL)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "filename*=UTF-8''")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	rows, err := f.GetRows(exporter.DataSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	_ = f.Close()

	// 一次性链接
	w = env.get(downloadURL)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportDownloadStore_Expires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newExportDownloadStore(clock)

	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	token := s.put(path, clock.Now(), time.Minute)
	clock.Advance(2 * time.Minute)

	_, ok := s.take(token)
	assert.False(t, ok)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
