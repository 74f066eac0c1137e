// Package sbe reads North Carolina State Board of Elections bulk files:
// statewide voter registration and voter history, subset to one county.
package sbe

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/votesquad/voter-cli/internal/fetcher"
)

// Statewide archive URLs published by NC SBE.
const (
	RegistrationURL = "https://s3.amazonaws.com/dl.ncsbe.gov/data/ncvoter_Statewide.zip"
	HistoryURL      = "https://s3.amazonaws.com/dl.ncsbe.gov/data/ncvhis_Statewide.zip"

	registrationFile = "ncvoter_statewide.txt"
	historyFile      = "ncvhis_statewide.txt"
)

// Source locates and downloads the statewide files into a data directory,
// reusing archives already on disk.
type Source struct {
	DataDir    string
	HTTPClient *http.Client

	// URL overrides for tests; empty means the published defaults.
	RegistrationURLOverride string
	HistoryURLOverride      string
}

// FetchRegistration returns the local path of the statewide registration
// file, downloading and unpacking the archive if needed.
func (s *Source) FetchRegistration(ctx context.Context) (string, error) {
	return s.fetch(ctx, s.RegistrationURLOverride, RegistrationURL, registrationFile)
}

// FetchHistory returns the local path of the statewide voter history
// file, downloading and unpacking the archive if needed.
func (s *Source) FetchHistory(ctx context.Context) (string, error) {
	return s.fetch(ctx, s.HistoryURLOverride, HistoryURL, historyFile)
}

func (s *Source) fetch(ctx context.Context, override, fallback, filename string) (string, error) {
	url := fallback
	if override != "" {
		url = override
	}

	// A previously unpacked file short-circuits the download entirely.
	if path, err := fetcher.FindFile(s.DataDir, filename); err == nil {
		zap.L().Debug("sbe file already on disk", zap.String("path", path))
		return path, nil
	}

	extractDir, err := fetcher.DownloadZip(ctx, s.HTTPClient, url, s.DataDir)
	if err != nil {
		return "", err
	}
	return fetcher.FindFile(extractDir, filename)
}

var countyTitle = cases.Title(language.AmericanEnglish)

// NormalizeCounty upper-cases a county name for matching against the
// county_desc column.
func NormalizeCounty(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// DisplayCounty title-cases a county name for logs and output filenames.
func DisplayCounty(name string) string {
	return countyTitle.String(strings.ToLower(strings.TrimSpace(name)))
}
