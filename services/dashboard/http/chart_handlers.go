package http

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/Shizuku-air-quality/services/analysis"
	"github.com/02loveslollipop/Shizuku-air-quality/services/dashboard/charts"
	"github.com/02loveslollipop/Shizuku-air-quality/services/dataset"
)

// chartCache keeps rendered PNGs for the current dataset instance. A new
// dataset pointer empties it.
type chartCache struct {
	mu      sync.Mutex
	ds      *dataset.Dataset
	entries map[string][]byte
}

func newChartCache() *chartCache {
	return &chartCache{entries: make(map[string][]byte)}
}

func (cc *chartCache) get(ds *dataset.Dataset, key string, render func() ([]byte, error)) ([]byte, error) {
	cc.mu.Lock()
	if cc.ds != ds {
		cc.ds = ds
		cc.entries = make(map[string][]byte)
	}
	if b, ok := cc.entries[key]; ok {
		cc.mu.Unlock()
		return b, nil
	}
	cc.mu.Unlock()

	b, err := render()
	if err != nil {
		return nil, err
	}

	cc.mu.Lock()
	if cc.ds == ds {
		cc.entries[key] = b
	}
	cc.mu.Unlock()
	return b, nil
}

func (cc *chartCache) reset() {
	cc.mu.Lock()
	cc.ds = nil
	cc.entries = make(map[string][]byte)
	cc.mu.Unlock()
}

func (cc *chartCache) size() int {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return len(cc.entries)
}

// GET /charts/monthly.png
func (s *Server) handleMonthlyChart(c *gin.Context) {
	ds, ok := s.loadDataset(c)
	if !ok {
		return
	}
	s.writeChart(c, ds, "monthly", func() ([]byte, error) {
		return charts.MonthlyBar(analysis.MonthlyTrend(ds.Observations, ds.Stations()))
	})
}

// GET /charts/heatmap.png?station=
func (s *Server) handleHeatmapChart(c *gin.Context) {
	ds, ok := s.loadDataset(c)
	if !ok {
		return
	}
	station, err := stationParam(c, ds)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.writeChart(c, ds, "heatmap:"+station, func() ([]byte, error) {
		return charts.HourDayHeatmap(analysis.HourDayMatrix(ds.ForStation(station)))
	})
}

// GET /charts/scatter.png?station=
func (s *Server) handleScatterChart(c *gin.Context) {
	ds, ok := s.loadDataset(c)
	if !ok {
		return
	}
	station, err := stationParam(c, ds)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.writeChart(c, ds, "scatter:"+station, func() ([]byte, error) {
		return charts.TempScatter(analysis.ScatterPoints(ds.ForStation(station), s.cfg.ScatterMaxPoints))
	})
}

func (s *Server) writeChart(c *gin.Context, ds *dataset.Dataset, key string, render func() ([]byte, error)) {
	img, err := s.charts.get(ds, key, render)
	if errors.Is(err, charts.ErrNoData) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("render chart", "chart", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", img)
}
