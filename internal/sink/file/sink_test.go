package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/hotel-harvester/internal/harvest"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestAppendWritesOneLinePerRecord(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	rec := harvest.ResultRecord{CityCode: "AAA", HotelCodes: []string{"1", "2"}, Latitude: 12.34, Longitude: -56.78}
	require.NoError(t, s.Append(context.Background(), "results.json", rec))
	require.NoError(t, s.Append(context.Background(), "results.json", harvest.NewResultRecord(harvest.EmptyResult("BBB"))))

	lines := readLines(t, s.Path("results.json"))
	require.Equal(t, []string{
		`{"cityCode":"AAA","hotelCodes":["1","2"],"latitude":12.34,"longitude":-56.78}`,
		`{"cityCode":"BBB","hotelCodes":[],"latitude":0,"longitude":0}`,
	}, lines)
}

func TestConcurrentAppendsProduceWellFormedLines(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	const writers = 8
	const perWriter = 50
	padding := strings.Repeat("x", 4096)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				rec := harvest.CitySummary{
					CityCode:   fmt.Sprintf("C%02d-%03d", w, i),
					CityName:   padding,
					HotelCodes: []string{"h1", "h2"},
				}
				assert.NoError(t, s.Append(context.Background(), "city_and_hotels.json", rec))
			}
		}(w)
	}
	wg.Wait()

	lines := readLines(t, s.Path("city_and_hotels.json"))
	require.Len(t, lines, writers*perWriter)

	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		var got harvest.CitySummary
		require.NoError(t, json.Unmarshal([]byte(line), &got))
		require.Equal(t, padding, got.CityName)
		seen[got.CityCode] = struct{}{}
	}
	require.Len(t, seen, writers*perWriter)
}

func TestAppendOpenFailureIsSinkError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(dir, zap.NewNop())
	require.NoError(t, err)

	// A directory in place of the destination file cannot be opened for append.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "results.json"), 0o750))

	err = s.Append(context.Background(), "results.json", harvest.ResultRecord{CityCode: "AAA"})
	require.ErrorIs(t, err, harvest.ErrSink)

	// The lock was released: a different destination and a retry both proceed.
	require.NoError(t, s.Append(context.Background(), "other.json", harvest.ResultRecord{CityCode: "AAA"}))
	require.ErrorIs(t, s.Append(context.Background(), "results.json", harvest.ResultRecord{CityCode: "BBB"}), harvest.ErrSink)
}

func TestAppendRejectsUnmarshalableRecord(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	err = s.Append(context.Background(), "results.json", map[string]any{"bad": make(chan int)})
	require.ErrorIs(t, err, harvest.ErrSink)
	_, statErr := os.Stat(s.Path("results.json"))
	require.True(t, os.IsNotExist(statErr))
}

func TestAppendRequiresDestination(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	require.ErrorIs(t, s.Append(context.Background(), " ", harvest.ResultRecord{}), harvest.ErrSink)
}
