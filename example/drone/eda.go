package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	log "github.com/sirupsen/logrus"

	"github.com/sugarme/droneseg/config"
	"github.com/sugarme/droneseg/imageio"
	"github.com/sugarme/droneseg/label"
	"github.com/sugarme/droneseg/monitor"
)

// runEDA counts the mask pixels of every label class and saves the counts
// as CSV and bar chart under the metrics plot directory.
func runEDA(cfg *config.Config) error {
	table, err := label.Load(cfg.LabelPath())
	if err != nil {
		return err
	}
	masks, err := imageio.List(cfg.MaskDatasetPath(), cfg.ImageTypes)
	if err != nil {
		return err
	}

	index := make(map[label.RGB]int, table.Len())
	for k, c := range table.Classes() {
		if _, ok := index[c.Color]; !ok {
			index[c.Color] = k
		}
	}

	counts := make([]float64, table.Len())
	var unmatched float64
	for i, path := range masks {
		m, err := imageio.ReadRGB(path)
		if err != nil {
			return err
		}
		for p := 0; p+3 < len(m.Pix); p += 4 {
			if k, ok := index[label.RGB{m.Pix[p], m.Pix[p+1], m.Pix[p+2]}]; ok {
				counts[k]++
			} else {
				unmatched++
			}
		}
		log.WithField("mask", filepath.Base(path)).Debugf("Counted %d/%d", i+1, len(masks))
	}

	var total float64
	for _, c := range counts {
		total += c
	}
	total += unmatched
	fractions := make([]float64, len(counts))
	for k, c := range counts {
		if total > 0 {
			fractions[k] = c / total
		}
	}

	names := table.Names()
	df := dataframe.New(
		series.New(names, series.String, "class"),
		series.New(counts, series.Float, "pixels"),
		series.New(fractions, series.Float, "fraction"),
	).Arrange(dataframe.RevSort("pixels"))

	csvPath := filepath.Join(cfg.PlotMetricsPath(), "class_pixels.csv")
	if err := os.MkdirAll(filepath.Dir(csvPath), 0755); err != nil {
		return err
	}
	f, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := df.WriteCSV(f); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"masks":     len(masks),
		"classes":   table.Len(),
		"unmatched": unmatched,
	}).Info("Class pixel counts")
	fmt.Println(df)

	return monitor.Bars(filepath.Join(cfg.PlotMetricsPath(), "class_pixels.png"),
		"Pixels per class", "fraction", names, fractions)
}
