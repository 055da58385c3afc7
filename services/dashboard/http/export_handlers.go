package http

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/02loveslollipop/Shizuku-air-quality/services/dataset"
)

const (
	exportSheet       = "observations"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportDefaultName = "air_quality"
)

// handleExport streams the merged rows, optionally for one station, as XLSX
// GET /export.xlsx?station=
func (s *Server) handleExport(c *gin.Context) {
	ds, ok := s.loadDataset(c)
	if !ok {
		return
	}
	station, err := stationParam(c, ds)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := buildWorkbook(ds, station)
	if err != nil {
		s.logger.Error("build workbook", "station", station, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	name := exportDefaultName
	if station != "" {
		name = station
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, name))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		s.logger.Error("write workbook", "error", err)
	}
}

func buildWorkbook(ds *dataset.Dataset, station string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		f.Close()
		return nil, err
	}

	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		f.Close()
		return nil, err
	}

	header, rows := ds.Rows(station)
	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := sw.SetRow("A1", headerRow); err != nil {
		f.Close()
		return nil, err
	}

	for i, rec := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := sw.SetRow(cell, cellValues(rec)); err != nil {
			f.Close()
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// cellValues writes numbers as numbers and missing readings as blank cells.
func cellValues(rec []string) []interface{} {
	out := make([]interface{}, len(rec))
	for i, v := range rec {
		switch {
		case v == "NaN" || v == "NA" || v == "":
			out[i] = nil
		default:
			if n, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(n, 0) {
				out[i] = n
			} else {
				out[i] = v
			}
		}
	}
	return out
}
