// Package ingest loads the IRS auto-revocation list and the OFAC
// sanctions list into the store the gates query.
package ingest

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grantbridge/vetting-cli/internal/config"
	"github.com/grantbridge/vetting-cli/internal/fetcher"
	"github.com/grantbridge/vetting-cli/internal/model"
)

// ListStore is the slice of the store the ingester writes to.
type ListStore interface {
	ReplaceRevocations(ctx context.Context, records []model.RevocationRecord) (int, error)
	ReplaceSanctions(ctx context.Context, records []model.SanctionsRecord) (int, error)
}

// Ingester downloads and loads the government lists.
type Ingester struct {
	fetch fetcher.Fetcher
	store ListStore
	cfg   config.IngestConfig
}

// New creates an Ingester.
func New(fetch fetcher.Fetcher, st ListStore, cfg config.IngestConfig) *Ingester {
	return &Ingester{fetch: fetch, store: st, cfg: cfg}
}

// SyncRevocations downloads the IRS auto-revocation archive and
// replaces the stored list. Returns the number of records loaded.
func (i *Ingester) SyncRevocations(ctx context.Context) (int, error) {
	if err := os.MkdirAll(i.cfg.DataDir, 0755); err != nil {
		return 0, eris.Wrap(err, "ingest: create data dir")
	}

	archivePath := filepath.Join(i.cfg.DataDir, "revocations.zip")
	if _, err := i.fetch.DownloadToFile(ctx, i.cfg.RevocationURL, archivePath); err != nil {
		return 0, eris.Wrap(err, "ingest: download revocation archive")
	}

	records, err := readRevocationArchive(archivePath)
	if err != nil {
		return 0, err
	}

	n, err := i.store.ReplaceRevocations(ctx, records)
	if err != nil {
		return 0, err
	}
	zap.L().Info("ingest: revocation list replaced", zap.Int("records", n))
	return n, nil
}

// readRevocationArchive extracts the first .txt entry from the archive
// and parses it.
func readRevocationArchive(path string) ([]model.RevocationRecord, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open revocation archive")
	}
	defer archive.Close()

	for _, entry := range archive.File {
		if !strings.HasSuffix(strings.ToLower(entry.Name), ".txt") {
			continue
		}
		f, err := entry.Open()
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open archive entry %s", entry.Name)
		}
		defer f.Close()
		return ParseRevocations(f)
	}
	return nil, eris.New("ingest: no .txt entry in revocation archive")
}

// Revocation file columns, pipe-delimited without a header row.
const (
	revColEIN = iota
	revColLegalName
	revColDBA
	revColCity
	revColState
	revColZIP
	revColCountry
	revColExemptionType
	revColRevocationDate
	revColPostingDate
	revColReinstatementDate
	revColCount
)

// ParseRevocations parses the pipe-delimited auto-revocation file.
// Malformed rows are skipped with a warning rather than failing the
// whole load.
func ParseRevocations(r io.Reader) ([]model.RevocationRecord, error) {
	reader := csv.NewReader(r)
	reader.Comma = '|'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records []model.RevocationRecord
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read revocation row")
		}
		line++

		if len(row) < revColReinstatementDate {
			zap.L().Warn("ingest: skipping short revocation row", zap.Int("line", line))
			continue
		}

		ein := padEIN(strings.TrimSpace(row[revColEIN]))
		if ein == "" {
			continue
		}

		rec := model.RevocationRecord{
			EIN:            ein,
			LegalName:      strings.TrimSpace(row[revColLegalName]),
			City:           strings.TrimSpace(row[revColCity]),
			State:          strings.TrimSpace(row[revColState]),
			RevocationDate: parseRevocationDate(row[revColRevocationDate]),
		}
		if len(row) > revColReinstatementDate {
			rec.ReinstatementDate = parseRevocationDate(row[revColReinstatementDate])
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseRevocationDate parses the IRS "15-MAY-2022" date form.
func parseRevocationDate(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "-")
	if len(parts) == 3 && len(parts[1]) == 3 {
		month := strings.ToUpper(parts[1][:1]) + strings.ToLower(parts[1][1:])
		s = parts[0] + "-" + month + "-" + parts[2]
	}
	t, err := time.Parse("02-Jan-2006", s)
	if err != nil {
		return nil
	}
	return &t
}

// padEIN left-pads an EIN to nine digits; the source file drops leading
// zeros. Non-numeric values return empty.
func padEIN(raw string) string {
	if raw == "" || len(raw) > 9 {
		return ""
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return fmt.Sprintf("%09s", raw)
}
