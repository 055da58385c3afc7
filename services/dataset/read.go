package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const csvExt = ".csv"

var requiredColumns = []string{ColYear, ColMonth, ColDay, ColHour, ColPM25, ColTemp}

var calendarColumns = []string{ColYear, ColMonth, ColDay, ColHour}

// columnTypes types the required columns. Every other column is kept as text
// so files that disagree on its type still merge without truncation.
var columnTypes = map[string]series.Type{
	ColYear:  series.Float,
	ColMonth: series.Float,
	ColDay:   series.Float,
	ColHour:  series.Float,
	ColPM25:  series.Float,
	ColTemp:  series.Float,
}

// naValues are the cell spellings read as missing.
var naValues = []string{"", "NA", "NaN", "<nil>"}

// ErrNoStationFiles is returned when the dataset folder holds no CSV file.
var ErrNoStationFiles = errors.New("no station csv files found")

// ReadFolder merges every CSV file directly inside folder into one Dataset.
// Files are read in directory-listing order.
func ReadFolder(folder string) (*Dataset, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), csvExt) {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", folder, ErrNoStationFiles)
	}

	ds := &Dataset{Files: files}
	for i, name := range files {
		frame, obs, err := readStationFile(filepath.Join(folder, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		if i == 0 {
			ds.Frame = frame
		} else {
			ds.Frame = ds.Frame.Concat(frame)
			if ds.Frame.Err != nil {
				return nil, fmt.Errorf("concat %s: %w", name, ds.Frame.Err)
			}
		}
		ds.Observations = append(ds.Observations, obs...)
	}
	ds.LoadedAt = time.Now().UTC()

	return ds, nil
}

// StationID derives the station identifier from a CSV file name.
func StationID(fileName string) string {
	return strings.TrimSuffix(filepath.Base(fileName), csvExt)
}

func readStationFile(path string) (dataframe.DataFrame, []Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return dataframe.DataFrame{}, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return dataframe.DataFrame{}, nil, errors.New("parse csv: no header row")
	}

	df := loadFrame(records)
	if df.Err != nil {
		return dataframe.DataFrame{}, nil, fmt.Errorf("parse csv: %w", df.Err)
	}

	if err := checkColumns(df); err != nil {
		return dataframe.DataFrame{}, nil, err
	}

	station := StationID(path)
	if station == "" {
		return dataframe.DataFrame{}, nil, errors.New("empty station id")
	}

	obs, err := buildObservations(df, records, station)
	if err != nil {
		return dataframe.DataFrame{}, nil, err
	}

	n := len(obs)
	stations := make([]string, n)
	datetimes := make([]string, n)
	buckets := make([]string, n)
	for i, o := range obs {
		stations[i] = station
		datetimes[i] = o.Time.Format(datetimeLayout)
		buckets[i] = o.MonthYear
	}

	df = df.Mutate(series.New(stations, series.String, ColStation)).
		Mutate(series.New(datetimes, series.String, ColDatetime)).
		Mutate(series.New(buckets, series.String, ColMonthYear))
	if df.Err != nil {
		return dataframe.DataFrame{}, nil, fmt.Errorf("derive columns: %w", df.Err)
	}

	return df, obs, nil
}

// loadFrame builds the frame for one file. A header-only file yields a
// zero-row frame with the same columns.
func loadFrame(records [][]string) dataframe.DataFrame {
	if len(records) > 1 {
		return dataframe.LoadRecords(records,
			dataframe.DetectTypes(false),
			dataframe.DefaultType(series.String),
			dataframe.NaNValues(naValues),
			dataframe.WithTypes(columnTypes),
		)
	}

	header := records[0]
	cols := make([]series.Series, len(header))
	for i, name := range header {
		t, ok := columnTypes[name]
		if !ok {
			t = series.String
		}
		cols[i] = series.New([]string{}, t, name)
	}
	return dataframe.New(cols...)
}

func checkColumns(df dataframe.DataFrame) error {
	present := make(map[string]struct{}, df.Ncol())
	for _, name := range df.Names() {
		present[name] = struct{}{}
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func buildObservations(df dataframe.DataFrame, records [][]string, station string) ([]Observation, error) {
	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}
	pm25 := df.Col(ColPM25).Float()
	temp := df.Col(ColTemp).Float()

	rows := records[1:]
	obs := make([]Observation, len(rows))
	for i, rec := range rows {
		var cal [4]int
		for j, name := range calendarColumns {
			v, err := calendarValue(rec[index[name]])
			if err != nil {
				return nil, fmt.Errorf("row %d: %s: %w", i+1, name, err)
			}
			cal[j] = v
		}

		ts, err := Timestamp(cal[0], cal[1], cal[2], cal[3])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		obs[i] = Observation{
			Station:   station,
			Year:      cal[0],
			Month:     cal[1],
			Day:       cal[2],
			Hour:      cal[3],
			PM25:      pm25[i],
			Temp:      temp[i],
			Time:      ts,
			MonthYear: MonthBucket(ts),
		}
	}
	return obs, nil
}

var (
	errMissingValue   = errors.New("missing value")
	errMalformedValue = errors.New("malformed value")
)

// calendarValue parses one calendar cell. Whole-number floats such as
// "2014.0" are accepted.
func calendarValue(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	for _, na := range naValues {
		if raw == na {
			return 0, errMissingValue
		}
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w %q", errMalformedValue, raw)
	}
	return int(f), nil
}

// Timestamp builds the hourly instant for the calendar fields. Out-of-range
// values are rejected rather than normalised.
func Timestamp(year, month, day, hour int) (time.Time, error) {
	if hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("invalid hour %d", hour)
	}
	t := time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return t, nil
}
