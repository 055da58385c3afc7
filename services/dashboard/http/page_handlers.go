package http

import (
	"context"
	_ "embed"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/02loveslollipop/Shizuku-air-quality/services/analysis"
)

const indexTemplateName = "index"

//go:embed templates/index.html
var indexTemplate string

var numbers = message.NewPrinter(language.English)

type stationOption struct {
	ID       string
	Label    string
	Selected bool
}

type indexPage struct {
	Error string

	Station  string
	Stations []stationOption

	Rows         string
	StationCount string
	First, Last  string
	LoadedAt     string

	Columns []string
	Preview [][]string
}

// handleIndex renders the dashboard page
// GET /?station=
func (s *Server) handleIndex(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	ds, err := s.loader.Load(ctx)
	if err != nil {
		c.HTML(http.StatusInternalServerError, indexTemplateName, indexPage{Error: err.Error()})
		return
	}

	station, err := stationParam(c, ds)
	if err != nil {
		c.HTML(http.StatusBadRequest, indexTemplateName, indexPage{Error: err.Error()})
		return
	}

	ids := ds.Stations()
	options := make([]stationOption, len(ids))
	for i, id := range ids {
		options[i] = stationOption{ID: id, Label: analysis.StationLabel(id), Selected: id == station}
	}

	first, last := ds.Span()
	columns, preview := ds.Head(station, s.cfg.PreviewRows)

	c.HTML(http.StatusOK, indexTemplateName, indexPage{
		Station:      station,
		Stations:     options,
		Rows:         numbers.Sprintf("%d", ds.Len()),
		StationCount: numbers.Sprintf("%d", len(ids)),
		First:        first.Format(time.DateTime),
		Last:         last.Format(time.DateTime),
		LoadedAt:     ds.LoadedAt.Format(time.RFC3339),
		Columns:      columns,
		Preview:      preview,
	})
}
