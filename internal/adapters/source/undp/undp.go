// Package undp loads the HDR composite-indices time series: one row per
// country with the development index and tier for the reference year
package undp

import (
	"encoding/csv"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"

	"golang.org/x/text/encoding/charmap"
)

// DatasetURL is the published HDR composite indices export
const DatasetURL = "https://hdr.undp.org/sites/default/files/2023-24_HDR/" +
	"HDR23-24_Composite_indices_complete_time_series.csv"

// FileName is the on-disk name under data/raw
const FileName = "HDR23-24_Composite_indices_complete_time_series.csv"

// HDIYear is the reference year whose index column is read
const HDIYear = 2022

// CountryHDI is one country row. HDI is NaN when unreported
type CountryHDI struct {
	ISO3    string
	Country string
	Tier    string // Very High, High, Medium, Low; empty when unreported
	HDI     float64
}

// Ensure downloads the file into dir when absent and returns its path.
// A failed download is an ExternalService error
func Ensure(dir string, client *http.Client) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	logger.Named("undp").Info().Str("url", DatasetURL).Msg("downloading HDR time series")
	resp, err := client.Get(DatasetURL)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeExternalService, "download HDR time series")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", perr.ExternalServicef("download HDR time series: status %d", resp.StatusCode)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "create %s", dir)
	}
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "create %s", tmp)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return "", perr.Wrap(err, perr.ErrorCodeIO, "write HDR time series")
	}
	if err := f.Close(); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeIO, "close HDR time series")
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "publish %s", path)
	}
	return path, nil
}

// Load parses the latin-1 encoded export. Aggregate rows (iso3 not three
// letters) are dropped
func Load(path string) ([]CountryHDI, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perr.MissingDataset(path, "curl -L --fail -o "+path+" "+DatasetURL)
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	cr := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(f))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeMalformedRow, "read HDR header")
	}
	hdiCol := "hdi_" + strconv.Itoa(HDIYear)
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, want := range []string{"iso3", "country", "hdicode", hdiCol} {
		if _, ok := idx[want]; !ok {
			return nil, perr.MalformedRowf("HDR file missing column %q", want)
		}
	}

	var out []CountryHDI
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeMalformedRow, "read HDR row")
		}
		iso3 := strings.TrimSpace(rec[idx["iso3"]])
		if len(iso3) != 3 {
			continue
		}
		hdi := math.NaN()
		if s := strings.TrimSpace(rec[idx[hdiCol]]); s != "" {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				hdi = v
			}
		}
		out = append(out, CountryHDI{
			ISO3:    iso3,
			Country: strings.TrimSpace(rec[idx["country"]]),
			Tier:    strings.TrimSpace(rec[idx["hdicode"]]),
			HDI:     hdi,
		})
	}
	if len(out) == 0 {
		return nil, perr.InsufficientDataf("HDR file has no country rows")
	}
	return out, nil
}
