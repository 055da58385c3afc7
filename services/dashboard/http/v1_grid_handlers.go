package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/Shizuku-air-quality/services/analysis"
)

// handleV1MonthlyTrend returns the data behind the monthly bar chart
// GET /api/v1/trend/monthly
func (s *Server) handleV1MonthlyTrend(c *gin.Context) {
	ds, ok := s.loadDataset(c)
	if !ok {
		return
	}

	tr := analysis.MonthlyTrend(ds.Observations, ds.Stations())
	c.JSON(http.StatusOK, gin.H{
		"data": tr,
		"meta": gin.H{
			"months":   len(tr.Months),
			"stations": len(tr.Series),
		},
	})
}

// handleV1Heatmap returns mean PM2.5 by hour (rows) and weekday (columns).
// Empty cells are null.
// GET /api/v1/heatmap?station=
func (s *Server) handleV1Heatmap(c *gin.Context) {
	ds, ok := s.loadDataset(c)
	if !ok {
		return
	}
	station, err := stationParam(c, ds)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h := analysis.HourDayMatrix(ds.ForStation(station))
	lo, hi, _ := h.Range()
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"days":  h.Days,
			"cells": h.Rows(),
		},
		"meta": gin.H{
			"station": station,
			"min":     lo,
			"max":     hi,
		},
	})
}
