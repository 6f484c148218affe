package httpapi

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ankur-anand/xlogview/internal/xlogctl/catalog"
	"github.com/ankur-anand/xlogview/internal/xlogctl/output"
	"github.com/ankur-anand/xlogview/pkg/xlog"
	"github.com/ankur-anand/xlogview/pkg/xlog/xlogtest"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	seg3F = "000000010000000A0000003F"
	seg40 = "000000010000000A00000040"
)

var accounts = xlog.RelFileNode{SpcNode: 1663, DBNode: 5, RelNode: 16384}

type testServer struct {
	service *Service
	router  *mux.Router
	walDir  string
}

func heapInsert(xid uint32) xlogtest.Record {
	p := xlogtest.NewPayload().
		Block(xlogtest.Block{ID: 0, Rel: accounts, BlockNum: 7}).
		MainData([]byte{1, 2, 3})
	return xlogtest.Record{XID: xid, Rmgr: xlog.RmgrHeap, Info: 0x00, Payload: p.Bytes()}
}

func simple(rmgr xlog.RmgrID, info uint8) xlogtest.Record {
	return xlogtest.Record{Rmgr: rmgr, Info: info, Payload: []byte{255, 0}}
}

func writeSegment(t *testing.T, dir, name string, records ...xlogtest.Record) {
	t.Helper()
	b := xlogtest.NewBuilder(xlog.SegmentBaseLSN(name))
	for _, r := range records {
		b.Append(r)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), b.Bytes(), 0o600))
}

func setupTestServer(t *testing.T) *testServer {
	return setupTestServerWithConfig(t, nil)
}

func setupTestServerWithConfig(t *testing.T, modify func(cfg *Config)) *testServer {
	t.Helper()

	walDir := t.TempDir()
	writeSegment(t, walDir, seg3F,
		heapInsert(700),
		simple(xlog.RmgrBtree, 0x00),
		simple(xlog.RmgrXact, 0x00),
	)
	writeSegment(t, walDir, seg40+".partial",
		heapInsert(701),
		simple(xlog.RmgrXact, 0x10),
	)

	cfg := Config{
		WalDir: walDir,
		Resolver: catalog.NewNames(&catalog.Snapshot{
			Databases: []catalog.Database{{OID: 5, Name: "postgres"}},
			Relations: []catalog.Relation{{RelFileNode: 16384, OID: 16384, Name: "accounts"}},
		}),
	}
	if modify != nil {
		modify(&cfg)
	}

	service := NewService(cfg)
	router := mux.NewRouter()
	router.HandleFunc("/health", service.HandleHealth).Methods(http.MethodGet)
	service.RegisterRoutes(router)

	return &testServer{service: service, router: router, walDir: walDir}
}

func makeRequest(t *testing.T, router *mux.Router, method, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestRespondJSON_EncodeError(t *testing.T) {
	rr := httptest.NewRecorder()
	payload := map[string]interface{}{
		"value": math.Inf(1),
	}

	respondJSON(rr, http.StatusCreated, payload)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)

	rr := makeRequest(t, ts.router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeBody[HealthResponse](t, rr)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ts.walDir, resp.WalDir)
}

func TestListSegments(t *testing.T) {
	ts := setupTestServer(t)

	rr := makeRequest(t, ts.router, http.MethodGet, "/api/v1/segments")
	require.Equal(t, http.StatusOK, rr.Code)

	segments := decodeBody[[]output.SegmentInfo](t, rr)
	require.Len(t, segments, 2)
	assert.Equal(t, seg3F, segments[0].Name)
	assert.Equal(t, "A/3F000000", segments[0].StartLSN)
	assert.False(t, segments[0].Partial)
	assert.True(t, segments[1].Partial)
	assert.Equal(t, "A/40000000", segments[1].StartLSN)
}

func TestListSegments_MissingDir(t *testing.T) {
	ts := setupTestServerWithConfig(t, func(cfg *Config) {
		cfg.WalDir = filepath.Join(cfg.WalDir, "missing")
	})

	rr := makeRequest(t, ts.router, http.MethodGet, "/api/v1/segments")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRecords_Success(t *testing.T) {
	ts := setupTestServer(t)

	rr := makeRequest(t, ts.router, http.MethodGet, "/api/v1/segments/"+seg3F+"/records")
	require.Equal(t, http.StatusOK, rr.Code)

	report := decodeBody[output.RecordReport](t, rr)
	assert.Equal(t, seg3F, report.File)
	assert.Equal(t, 3, report.Decoded)
	require.Len(t, report.Records, 3)
	assert.Equal(t, "Heap: INSERT", report.Records[0].Description)
	assert.Equal(t, []string{"postgres:accounts"}, report.Records[0].Relations)
	assert.Equal(t, uint32(700), report.Records[0].XID)
	assert.Equal(t, "Transaction: COMMIT", report.Records[2].Description)
}

func TestRecords_PartialNameWithoutSuffix(t *testing.T) {
	ts := setupTestServer(t)

	rr := makeRequest(t, ts.router, http.MethodGet, "/api/v1/segments/"+seg40+"/records")
	require.Equal(t, http.StatusOK, rr.Code)

	report := decodeBody[output.RecordReport](t, rr)
	require.Len(t, report.Records, 2)
	assert.Equal(t, "Transaction: ABORT", report.Records[1].Description)
}

func TestRecords_Filters(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"text", "?text=COMMIT", []string{"Transaction: COMMIT"}},
		{"rmgr list", "?rmgr=Heap,Btree", []string{"Heap: INSERT", "Btree"}},
		{"rmgr repeated", "?rmgr=Btree&rmgr=Transaction", []string{"Btree", "Transaction: COMMIT"}},
		{"interesting", "?interesting=true", []string{"Heap: INSERT", "Transaction: COMMIT"}},
		{"limit", "?limit=1", []string{"Heap: INSERT"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := makeRequest(t, ts.router, http.MethodGet, "/api/v1/segments/"+seg3F+"/records"+tt.query)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			report := decodeBody[output.RecordReport](t, rr)
			got := make([]string, 0, len(report.Records))
			for _, rec := range report.Records {
				got = append(got, rec.Description)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecords_RawIDs(t *testing.T) {
	ts := setupTestServer(t)

	rr := makeRequest(t, ts.router, http.MethodGet, "/api/v1/segments/"+seg3F+"/records?raw=true&limit=1")
	require.Equal(t, http.StatusOK, rr.Code)

	report := decodeBody[output.RecordReport](t, rr)
	require.Len(t, report.Records, 1)
	assert.True(t, report.Truncated)
	assert.Equal(t, []string{"1663/5(postgres)/16384(accounts)"}, report.Records[0].Relations)
}

func TestRecords_BadRequests(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name string
		url  string
		code int
	}{
		{"invalid name", "/api/v1/segments/not-a-segment/records", http.StatusBadRequest},
		{"unknown segment", "/api/v1/segments/000000010000000A00000099/records", http.StatusNotFound},
		{"unknown rmgr", "/api/v1/segments/" + seg3F + "/records?rmgr=Nope", http.StatusBadRequest},
		{"bad interesting", "/api/v1/segments/" + seg3F + "/records?interesting=maybe", http.StatusBadRequest},
		{"bad upto", "/api/v1/segments/" + seg3F + "/records?upto=zz", http.StatusBadRequest},
		{"bad offset", "/api/v1/segments/" + seg3F + "/records?offset=abc", http.StatusBadRequest},
		{"offset past end", "/api/v1/segments/" + seg3F + "/records?offset=1048576", http.StatusBadRequest},
		{"bad limit", "/api/v1/segments/" + seg3F + "/records?limit=0", http.StatusBadRequest},
		{"bad raw", "/api/v1/segments/" + seg3F + "/records?raw=2", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := makeRequest(t, ts.router, http.MethodGet, tt.url)
			assert.Equal(t, tt.code, rr.Code, rr.Body.String())

			body := decodeBody[map[string]string](t, rr)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestStats(t *testing.T) {
	ts := setupTestServer(t)

	rr := makeRequest(t, ts.router, http.MethodGet, "/api/v1/stats")
	require.Equal(t, http.StatusOK, rr.Code)

	stats := decodeBody[output.WalStats](t, rr)
	assert.Equal(t, 2, stats.TotalSegments)
	assert.Equal(t, int64(5), stats.TotalRecords)
	assert.Equal(t, 0, stats.BadSegments)
	require.NotEmpty(t, stats.ByRmgr)
	assert.Equal(t, int64(2), stats.ByRmgr[0].Records)
}

func TestStats_Filtered(t *testing.T) {
	ts := setupTestServer(t)

	rr := makeRequest(t, ts.router, http.MethodGet, "/api/v1/stats?rmgr=Transaction")
	require.Equal(t, http.StatusOK, rr.Code)

	stats := decodeBody[output.WalStats](t, rr)
	assert.Equal(t, int64(2), stats.TotalRecords)
	require.Len(t, stats.ByRmgr, 1)
	assert.Equal(t, "Transaction", stats.ByRmgr[0].Rmgr)

	rr = makeRequest(t, ts.router, http.MethodGet, "/api/v1/stats?rmgr=Nope")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := setupTestServer(t)

	rr := makeRequest(t, ts.router, http.MethodPost, "/api/v1/segments")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
