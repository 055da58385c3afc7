package dataset

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testFolder = "Air-Quality-Dataset-main"

const csvA = `No,year,month,day,hour,PM2.5,TEMP,station
1,2014,3,5,10,12.5,3.1,Old
2,2014,3,5,11,NA,2.9,Old
3,2014,4,1,0,40,8.0,Old
`

const csvB = `No,year,month,day,hour,PM2.5,TEMP,station
1,2013,12,31,23,80,-4.5,Old
2,2014,1,1,0,95,-5.0,Old
`

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func stationArchive(t *testing.T) []byte {
	return buildZip(t, map[string]string{
		testFolder + "/A.csv":     csvA,
		testFolder + "/B.csv":     csvB,
		testFolder + "/README.md": "# not a station",
	})
}

// archiveServer serves body and counts requests.
func archiveServer(t *testing.T, body []byte, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSource(t *testing.T, url string) Source {
	return Source{URL: url, DataDir: filepath.Join(t.TempDir(), "air_quality_dataset"), Folder: testFolder}
}

func TestLoad_mergesStationFiles(t *testing.T) {
	srv, _ := archiveServer(t, stationArchive(t), http.StatusOK)

	ds, err := Load(context.Background(), srv.Client(), testSource(t, srv.URL))
	if err != nil {
		t.Fatalf("Load() = %v; want nil", err)
	}

	if ds.Len() != 5 {
		t.Fatalf("rows = %d; want 5", ds.Len())
	}
	if ds.Frame.Nrow() != ds.Len() {
		t.Errorf("frame rows = %d; want %d", ds.Frame.Nrow(), ds.Len())
	}

	counts := map[string]int{}
	for _, o := range ds.Observations {
		counts[o.Station]++
	}
	if counts["A"] != 3 || counts["B"] != 2 {
		t.Errorf("station counts = %v; want A=3 B=2", counts)
	}

	stationCol := ds.Frame.Col(ColStation).Records()
	for i, o := range ds.Observations {
		if stationCol[i] != o.Station {
			t.Errorf("frame station[%d] = %q; want %q", i, stationCol[i], o.Station)
		}
	}

	if len(ds.Files) != 2 {
		t.Errorf("files = %v; want 2 csv files", ds.Files)
	}
}

func TestLoad_preservesFileOrder(t *testing.T) {
	srv, _ := archiveServer(t, stationArchive(t), http.StatusOK)

	ds, err := Load(context.Background(), srv.Client(), testSource(t, srv.URL))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	var got []string
	for _, o := range ds.Observations {
		got = append(got, o.Station)
	}
	want := []string{}
	for _, f := range ds.Files {
		n := 3
		if StationID(f) == "B" {
			n = 2
		}
		for i := 0; i < n; i++ {
			want = append(want, StationID(f))
		}
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("row stations = %v; want %v", got, want)
	}
}

func TestLoad_derivesTimestampAndBucket(t *testing.T) {
	srv, _ := archiveServer(t, stationArchive(t), http.StatusOK)

	ds, err := Load(context.Background(), srv.Client(), testSource(t, srv.URL))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	var found bool
	for i, o := range ds.Observations {
		if o.Station != "A" || o.Year != 2014 || o.Month != 3 || o.Day != 5 || o.Hour != 10 {
			continue
		}
		found = true
		want := time.Date(2014, 3, 5, 10, 0, 0, 0, time.UTC)
		if !o.Time.Equal(want) {
			t.Errorf("Time = %v; want %v", o.Time, want)
		}
		if o.MonthYear != "2014-03" {
			t.Errorf("MonthYear = %q; want %q", o.MonthYear, "2014-03")
		}
		if got := ds.Frame.Col(ColDatetime).Records()[i]; got != "2014-03-05 10:00:00" {
			t.Errorf("frame datetime = %q; want %q", got, "2014-03-05 10:00:00")
		}
		if got := ds.Frame.Col(ColMonthYear).Records()[i]; got != "2014-03" {
			t.Errorf("frame month_year = %q; want %q", got, "2014-03")
		}
	}
	if !found {
		t.Fatal("row 2014-03-05 10h of station A not found")
	}
}

func TestLoad_missingValuesBecomeNaN(t *testing.T) {
	srv, _ := archiveServer(t, stationArchive(t), http.StatusOK)

	ds, err := Load(context.Background(), srv.Client(), testSource(t, srv.URL))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	for _, o := range ds.Observations {
		if o.Station == "A" && o.Hour == 11 {
			if o.HasPM25() {
				t.Errorf("PM25 = %v; want NaN for NA cell", o.PM25)
			}
			if !o.HasTemp() {
				t.Errorf("Temp missing; want 2.9")
			}
			return
		}
	}
	t.Fatal("row with NA PM2.5 not found")
}

func TestLoad_missingHourColumnFails(t *testing.T) {
	archive := buildZip(t, map[string]string{
		testFolder + "/A.csv": csvA,
		testFolder + "/C.csv": "year,month,day,PM2.5,TEMP\n2014,3,5,10,1\n",
	})
	srv, _ := archiveServer(t, archive, http.StatusOK)

	_, err := Load(context.Background(), srv.Client(), testSource(t, srv.URL))
	if err == nil {
		t.Fatal("Load() = nil; want error for missing hour column")
	}
	if !strings.Contains(err.Error(), "C.csv") || !strings.Contains(err.Error(), "hour") {
		t.Errorf("err = %q; want file name and column", err.Error())
	}
}

func TestLoad_malformedCalendarFails(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"month out of range", "2014,13,5,10,1,1"},
		{"hour out of range", "2014,3,5,24,1,1"},
		{"day out of range", "2014,2,30,0,1,1"},
		{"non numeric year", "abc,3,5,10,1,1"},
		{"missing day", "2014,3,NA,10,1,1"},
		{"fractional hour", "2014,3,5,10.5,1,1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := buildZip(t, map[string]string{
				testFolder + "/A.csv": "year,month,day,hour,PM2.5,TEMP\n2014,3,5,9,1,1\n" + tt.row + "\n",
			})
			srv, _ := archiveServer(t, archive, http.StatusOK)

			_, err := Load(context.Background(), srv.Client(), testSource(t, srv.URL))
			if err == nil {
				t.Fatalf("Load() = nil; want error for %s", tt.row)
			}
			if !strings.Contains(err.Error(), "row 2") {
				t.Errorf("err = %q; want row number", err.Error())
			}
		})
	}
}

func TestLoad_missingFolderFails(t *testing.T) {
	archive := buildZip(t, map[string]string{"other/A.csv": csvA})
	srv, _ := archiveServer(t, archive, http.StatusOK)

	_, err := Load(context.Background(), srv.Client(), testSource(t, srv.URL))
	if err == nil {
		t.Fatal("Load() = nil; want error for missing folder")
	}
}

func TestLoad_emptyFolderFails(t *testing.T) {
	archive := buildZip(t, map[string]string{testFolder + "/notes.txt": "nothing"})
	srv, _ := archiveServer(t, archive, http.StatusOK)

	_, err := Load(context.Background(), srv.Client(), testSource(t, srv.URL))
	if !errors.Is(err, ErrNoStationFiles) {
		t.Fatalf("Load() = %v; want ErrNoStationFiles", err)
	}
}

func TestLoad_httpStatusFails(t *testing.T) {
	srv, _ := archiveServer(t, []byte("gone"), http.StatusNotFound)

	_, err := Load(context.Background(), srv.Client(), testSource(t, srv.URL))
	if err == nil {
		t.Fatal("Load() = nil; want error for 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %q; want status in message", err.Error())
	}
}

func TestLoad_notAZipFails(t *testing.T) {
	srv, _ := archiveServer(t, []byte("plain text"), http.StatusOK)

	_, err := Load(context.Background(), srv.Client(), testSource(t, srv.URL))
	if err == nil || !strings.Contains(err.Error(), "extract archive") {
		t.Fatalf("Load() = %v; want extract error", err)
	}
}

func TestExtractArchive_rejectsEscapingEntries(t *testing.T) {
	archive := buildZip(t, map[string]string{"../evil.csv": csvA})
	dir := t.TempDir()

	if err := ExtractArchive(archive, filepath.Join(dir, "out")); err == nil {
		t.Fatal("ExtractArchive() = nil; want error for ../ entry")
	}
	if _, err := os.Stat(filepath.Join(dir, "evil.csv")); !os.IsNotExist(err) {
		t.Errorf("evil.csv written outside target dir")
	}
}

func TestExtractArchive_leavesFilesOnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	if err := ExtractArchive(stationArchive(t), dir); err != nil {
		t.Fatalf("ExtractArchive() = %v", err)
	}
	for _, name := range []string{"A.csv", "B.csv", "README.md"} {
		if _, err := os.Stat(filepath.Join(dir, testFolder, name)); err != nil {
			t.Errorf("stat %s: %v", name, err)
		}
	}
}

func TestStationID(t *testing.T) {
	tests := map[string]string{
		"A.csv": "A",
		"PRSA_Data_Aotizhongxin_20130301-20170228.csv": "PRSA_Data_Aotizhongxin_20130301-20170228",
		"dir/B.csv": "B",
	}
	for in, want := range tests {
		if got := StationID(in); got != want {
			t.Errorf("StationID(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestLoader_memoises(t *testing.T) {
	srv, hits := archiveServer(t, stationArchive(t), http.StatusOK)
	loader := NewLoader(srv.Client(), testSource(t, srv.URL), quietLogger())

	first, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("first Load() = %v", err)
	}
	second, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("second Load() = %v", err)
	}

	if hits.Load() != 1 {
		t.Errorf("fetches = %d; want 1", hits.Load())
	}
	if first != second {
		t.Error("second Load() returned a different dataset")
	}
	if !loader.Loaded() {
		t.Error("Loaded() = false; want true")
	}
}

func TestLoader_concurrentCallersShareLoad(t *testing.T) {
	srv, hits := archiveServer(t, stationArchive(t), http.StatusOK)
	loader := NewLoader(srv.Client(), testSource(t, srv.URL), quietLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := loader.Load(context.Background()); err != nil {
				t.Errorf("Load() = %v", err)
			}
		}()
	}
	wg.Wait()

	if hits.Load() != 1 {
		t.Errorf("fetches = %d; want 1", hits.Load())
	}
}

func TestLoader_invalidateRefetches(t *testing.T) {
	srv, hits := archiveServer(t, stationArchive(t), http.StatusOK)
	loader := NewLoader(srv.Client(), testSource(t, srv.URL), quietLogger())

	if _, err := loader.Load(context.Background()); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	loader.Invalidate()
	if loader.Loaded() {
		t.Error("Loaded() = true after Invalidate")
	}
	if _, err := loader.Load(context.Background()); err != nil {
		t.Fatalf("Load() after Invalidate = %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("fetches = %d; want 2", hits.Load())
	}
}

func TestLoader_failureNotCached(t *testing.T) {
	srv, hits := archiveServer(t, nil, http.StatusInternalServerError)
	loader := NewLoader(srv.Client(), testSource(t, srv.URL), quietLogger())

	for i := 0; i < 2; i++ {
		if _, err := loader.Load(context.Background()); err == nil {
			t.Fatalf("Load() #%d = nil; want error", i+1)
		}
	}
	if hits.Load() != 2 {
		t.Errorf("fetches = %d; want 2", hits.Load())
	}
	if loader.Loaded() {
		t.Error("Loaded() = true after failed load")
	}
}

func writeFolder(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestReadFolder_mixedColumnTypesKeepValues(t *testing.T) {
	dir := writeFolder(t, map[string]string{
		"A.csv": "year,month,day,hour,PM2.5,TEMP,CO\n2014,3,5,10,12,1,300\n",
		"B.csv": "year,month,day,hour,PM2.5,TEMP,CO\n2014,3,5,11,12.5,1.25,350.7\n",
	})

	ds, err := ReadFolder(dir)
	if err != nil {
		t.Fatalf("ReadFolder() = %v", err)
	}

	header, rows := ds.Head("B", 10)
	col := -1
	for i, name := range header {
		if name == "CO" {
			col = i
		}
	}
	if col < 0 {
		t.Fatalf("header = %v; want CO column", header)
	}
	if len(rows) != 1 || rows[0][col] != "350.7" {
		t.Errorf("B rows = %v; want CO = 350.7", rows)
	}

	_, rows = ds.Head("A", 10)
	if len(rows) != 1 || rows[0][col] != "300" {
		t.Errorf("A rows = %v; want CO = 300", rows)
	}
}

func TestReadFolder_headerOnlyFileIsEmptyStation(t *testing.T) {
	dir := writeFolder(t, map[string]string{
		"A.csv": "No,year,month,day,hour,PM2.5,TEMP\n1,2014,3,5,10,12,1\n",
		"B.csv": "No,year,month,day,hour,PM2.5,TEMP\n",
	})

	ds, err := ReadFolder(dir)
	if err != nil {
		t.Fatalf("ReadFolder() = %v; want nil", err)
	}
	if ds.Len() != 1 || ds.Frame.Nrow() != 1 {
		t.Errorf("rows = %d frame = %d; want 1 and 1", ds.Len(), ds.Frame.Nrow())
	}
	if len(ds.Files) != 2 {
		t.Errorf("files = %v; want both files", ds.Files)
	}
}

func TestReadFolder_headerOnlyFileStillNeedsColumns(t *testing.T) {
	dir := writeFolder(t, map[string]string{
		"A.csv": "year,month,day,hour,PM2.5,TEMP\n2014,3,5,10,12,1\n",
		"B.csv": "year,month,day,PM2.5\n",
	})

	_, err := ReadFolder(dir)
	if err == nil || !strings.Contains(err.Error(), "B.csv") || !strings.Contains(err.Error(), "TEMP") {
		t.Fatalf("ReadFolder() = %v; want missing columns of B.csv", err)
	}
}

func TestReadFolder_calendarValues(t *testing.T) {
	tests := []struct {
		name    string
		row     string
		wantErr string
	}{
		{"whole float year", "2014.0,3,5,10,1,1", ""},
		{"text year", "abc,3,5,10,1,1", "malformed value"},
		{"fractional day", "2014,3,5.5,10,1,1", "malformed value"},
		{"empty hour", "2014,3,5,,1,1", "missing value"},
		{"NA month", "2014,NA,5,10,1,1", "missing value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFolder(t, map[string]string{
				"A.csv": "year,month,day,hour,PM2.5,TEMP\n" + tt.row + "\n",
			})

			ds, err := ReadFolder(dir)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ReadFolder() = %v; want nil", err)
				}
				if ds.Observations[0].Year != 2014 {
					t.Errorf("Year = %d; want 2014", ds.Observations[0].Year)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) || !strings.Contains(err.Error(), "row 1") {
				t.Errorf("ReadFolder() = %v; want row 1 and %q", err, tt.wantErr)
			}
		})
	}
}

func TestDataset_HeadFormatsFloats(t *testing.T) {
	dir := writeFolder(t, map[string]string{
		"A.csv": "No,year,month,day,hour,PM2.5,TEMP\n1,2014,3,5,10,12.5,NA\n",
	})

	ds, err := ReadFolder(dir)
	if err != nil {
		t.Fatalf("ReadFolder() = %v", err)
	}

	header, rows := ds.Head("", 5)
	if len(rows) != 1 {
		t.Fatalf("rows = %v; want 1 row", rows)
	}
	want := map[string]string{
		"No":    "1",
		ColYear: "2014",
		ColHour: "10",
		ColPM25: "12.5",
		ColTemp: "NaN",
	}
	for i, name := range header {
		if w, ok := want[name]; ok && rows[0][i] != w {
			t.Errorf("%s = %q; want %q", name, rows[0][i], w)
		}
	}
}

func TestLoader_cancelledCallerStopsWaiting(t *testing.T) {
	archive := stationArchive(t)
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		started <- struct{}{}
		<-release
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)

	loader := NewLoader(srv.Client(), testSource(t, srv.URL), quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := loader.Load(ctx)
		firstErr <- err
	}()
	<-started

	secondDone := make(chan error, 1)
	go func() {
		_, err := loader.Load(context.Background())
		secondDone <- err
	}()

	cancel()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled Load() = %v; want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller still waiting on the load")
	}

	close(release)
	if err := <-secondDone; err != nil {
		t.Fatalf("waiting Load() = %v; want nil", err)
	}
	if hits.Load() != 1 {
		t.Errorf("fetches = %d; want 1", hits.Load())
	}
	if !loader.Loaded() {
		t.Error("Loaded() = false; want the shared load cached")
	}
}
