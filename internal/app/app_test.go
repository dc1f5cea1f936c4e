package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/hotel-harvester/internal/config"
	"github.com/JakeFAU/hotel-harvester/internal/harvest"
	"github.com/JakeFAU/hotel-harvester/internal/merge"
)

func fakeSearchAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CityCode string `json:"CityCode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch req.CityCode {
		case "AAA":
			fmt.Fprint(w, `{"Status":{"Code":200,"Description":"Success"},"Hotels":[`+
				`{"HotelCode":"H1","CityName":"Alpha","Latitude":"1.5","Longitude":"-2.5"},`+
				`{"HotelCode":1002,"CityName":"Alpha"}]}`)
		case "BBB":
			fmt.Fprint(w, `{"Status":{"Code":500,"Description":"Unexpected Error"}}`)
		default:
			fmt.Fprint(w, `{"Status":{"Code":200,"Description":"No hotels"},"Hotels":[]}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, apiURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "cities.json")
	require.NoError(t, os.WriteFile(src, []byte(`[
		{"code":"AAA","name":"Alpha","country":"AR"},
		{"code":"BBB","name":"Bravo","country":"BR"},
		{"code":"","name":"Blank"},
		{"code":"CCC","name":"Charlie","country":"CL"}
	]`), 0o600))

	return config.Config{
		Pool:    config.PoolConfig{Size: 3},
		Retry:   config.RetryConfig{MaxAttempts: 3, BackoffUnit: time.Millisecond},
		Lookup:  config.LookupConfig{URL: apiURL, Username: "u", Password: "p", Timeout: 5 * time.Second},
		Source:  config.SourceConfig{Path: src, IDField: "code"},
		Output:  config.OutputConfig{Dir: filepath.Join(dir, "out"), Results: "results.json", Summaries: "city_and_hotels.json"},
		DB:      config.DBConfig{Table: "harvest_records"},
		Export:  config.ExportConfig{Enabled: true, Backend: "local", Dir: filepath.Join(dir, "export"), Object: "merged_results.json"},
		Logging: config.LoggingConfig{Level: "info"},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	// #nosec G304 -- test reads from the controlled temp directory.
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestRunHarvestsAndExports(t *testing.T) {
	t.Parallel()

	api := fakeSearchAPI(t)
	cfg := testConfig(t, api.URL)
	a, err := Build(context.Background(), cfg, "run-1", zap.NewNop(), WithDoer(api.Client()))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	stats, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, stats.Loaded)
	require.Equal(t, 3, stats.Enqueued)
	require.Equal(t, 1, stats.Skipped)

	results := map[string]harvest.ResultRecord{}
	for _, line := range readLines(t, filepath.Join(cfg.Output.Dir, cfg.Output.Results)) {
		var rec harvest.ResultRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		results[rec.CityCode] = rec
	}
	require.Len(t, results, 3)
	require.Equal(t, harvest.ResultRecord{CityCode: "AAA", HotelCodes: []string{"H1", "1002"}, Latitude: 1.5, Longitude: -2.5}, results["AAA"])
	require.Equal(t, harvest.ResultRecord{CityCode: "BBB", HotelCodes: []string{}}, results["BBB"])
	require.Equal(t, harvest.ResultRecord{CityCode: "CCC", HotelCodes: []string{}}, results["CCC"])

	summaries := readLines(t, filepath.Join(cfg.Output.Dir, cfg.Output.Summaries))
	require.Len(t, summaries, 1)
	require.JSONEq(t, `{"cityCode":"AAA","cityName":"Alpha","hotelCodes":["H1","1002"]}`, summaries[0])

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(filepath.Join(cfg.Export.Dir, cfg.Export.Object))
	require.NoError(t, err)
	var merged []merge.Record
	require.NoError(t, json.Unmarshal(data, &merged))
	require.Len(t, merged, 3)
	for _, rec := range merged {
		require.NotEmpty(t, rec.CityName, rec.CityCode)
		require.NotNil(t, rec.Country, rec.CityCode)
	}
}

func TestRunSucceedsWhenOpsPortIsTaken(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	api := fakeSearchAPI(t)
	cfg := testConfig(t, api.URL)
	cfg.Metrics.Port = ln.Addr().(*net.TCPAddr).Port

	core, logs := observer.New(zap.ErrorLevel)
	a, err := Build(context.Background(), cfg, "run-ops", zap.New(core), WithDoer(api.Client()))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	stats, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, stats.Enqueued)
	require.Equal(t, 1, logs.FilterMessage("ops server failed").Len())
	require.FileExists(t, filepath.Join(cfg.Export.Dir, cfg.Export.Object))
}

func TestRunMissingSourceFails(t *testing.T) {
	t.Parallel()

	api := fakeSearchAPI(t)
	cfg := testConfig(t, api.URL)
	cfg.Source.Path = filepath.Join(t.TempDir(), "missing.json")
	cfg.Export.Enabled = false

	a, err := Build(context.Background(), cfg, "run-2", zap.NewNop(), WithDoer(api.Client()))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	_, err = a.Run(context.Background())
	require.ErrorContains(t, err, "load work items")
	require.NoFileExists(t, filepath.Join(cfg.Output.Dir, cfg.Output.Results))
}

func TestBuildFailsOnUnusableOutputDir(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1")
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	cfg.Output.Dir = filepath.Join(blocker, "out")

	_, err := Build(context.Background(), cfg, "run-3", nil)
	require.ErrorContains(t, err, "file sink init failed")
}
