package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/Shizuku-air-quality/services/analysis"
)

const maxPreviewRows = 1000

type stationInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
	Rows  int    `json:"rows"`
}

// handleV1Summary returns dataset-wide counts and the covered time span
// GET /api/v1/summary
func (s *Server) handleV1Summary(c *gin.Context) {
	ds, ok := s.loadDataset(c)
	if !ok {
		return
	}

	first, last := ds.Span()
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"rows":      ds.Len(),
			"stations":  len(ds.Stations()),
			"files":     ds.Files,
			"first":     first.Format(time.RFC3339),
			"last":      last.Format(time.RFC3339),
			"loaded_at": ds.LoadedAt.Format(time.RFC3339),
		},
		"meta": gin.H{
			"generated_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// handleV1ListStations returns every station with its chart label and colour
// GET /api/v1/stations
func (s *Server) handleV1ListStations(c *gin.Context) {
	ds, ok := s.loadDataset(c)
	if !ok {
		return
	}

	counts := make(map[string]int)
	for _, o := range ds.Observations {
		counts[o.Station]++
	}

	stations := ds.Stations()
	out := make([]stationInfo, len(stations))
	for i, id := range stations {
		out[i] = stationInfo{
			ID:    id,
			Label: analysis.StationLabel(id),
			Color: analysis.PaletteColor(i),
			Rows:  counts[id],
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": out,
		"meta": gin.H{
			"count": len(out),
		},
	})
}

// handleV1Preview returns the first rows of the merged table
// GET /api/v1/preview?station=&rows=
func (s *Server) handleV1Preview(c *gin.Context) {
	rows := s.cfg.PreviewRows
	if rowsStr := c.Query("rows"); rowsStr != "" {
		parsed, err := strconv.Atoi(rowsStr)
		if err != nil || parsed <= 0 || parsed > maxPreviewRows {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rows"})
			return
		}
		rows = parsed
	}

	ds, ok := s.loadDataset(c)
	if !ok {
		return
	}
	station, err := stationParam(c, ds)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	header, records := ds.Head(station, rows)
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"columns": header,
			"rows":    records,
		},
		"meta": gin.H{
			"station": station,
			"count":   len(records),
		},
	})
}

// handleV1ClearCache drops the memoised dataset and rendered charts
// POST /api/v1/cache/clear
func (s *Server) handleV1ClearCache(c *gin.Context) {
	wasLoaded := s.loader.Loaded()
	s.loader.Invalidate()
	s.charts.reset()

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"cleared":    wasLoaded,
			"cleared_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
}
