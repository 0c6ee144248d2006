package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grantbridge/vetting-cli/internal/model"
)

// ofacNull is the placeholder OFAC uses for empty fields.
const ofacNull = "-0-"

// SyncSanctions downloads the SDN and alternate-name files and replaces
// the stored sanctions snapshot. Returns the number of entities loaded.
func (i *Ingester) SyncSanctions(ctx context.Context) (int, error) {
	sdnBody, err := i.fetch.Download(ctx, i.cfg.SDNURL)
	if err != nil {
		return 0, eris.Wrap(err, "ingest: download sdn list")
	}
	defer sdnBody.Close()

	records, err := ParseSDN(sdnBody)
	if err != nil {
		return 0, err
	}

	altBody, err := i.fetch.Download(ctx, i.cfg.AltURL)
	if err != nil {
		return 0, eris.Wrap(err, "ingest: download alternate names")
	}
	defer altBody.Close()

	if err := MergeAliases(records, altBody); err != nil {
		return 0, err
	}

	n, err := i.store.ReplaceSanctions(ctx, records)
	if err != nil {
		return 0, err
	}
	zap.L().Info("ingest: sanctions list replaced", zap.Int("entities", n))
	return n, nil
}

// SDN.CSV columns. The file has no header row; only the first four
// matter here, the rest describe vessels and remarks.
const (
	sdnColEntNum = iota
	sdnColName
	sdnColType
	sdnColProgram
)

// ParseSDN parses the OFAC SDN file into sanctions records, sorted by
// entity number. Alias lists start empty; MergeAliases fills them.
func ParseSDN(r io.Reader) ([]model.SanctionsRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records []model.SanctionsRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read sdn row")
		}
		if len(row) <= sdnColProgram {
			continue
		}

		entNum, err := strconv.Atoi(strings.TrimSpace(row[sdnColEntNum]))
		if err != nil {
			continue
		}
		name := ofacField(row[sdnColName])
		if name == "" {
			continue
		}

		records = append(records, model.SanctionsRecord{
			EntityNumber: entNum,
			Name:         name,
			EntityType:   ofacField(row[sdnColType]),
			Program:      ofacField(row[sdnColProgram]),
		})
	}

	sort.Slice(records, func(a, b int) bool {
		return records[a].EntityNumber < records[b].EntityNumber
	})
	return records, nil
}

// ALT.CSV columns.
const (
	altColEntNum = iota
	altColAltNum
	altColType
	altColName
)

// MergeAliases reads the OFAC alternate-name file and attaches each
// alias to its entity. Aliases for unknown entity numbers are dropped.
func MergeAliases(records []model.SanctionsRecord, r io.Reader) error {
	byEntity := make(map[int]*model.SanctionsRecord, len(records))
	for idx := range records {
		byEntity[records[idx].EntityNumber] = &records[idx]
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	dropped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return eris.Wrap(err, "ingest: read alternate name row")
		}
		if len(row) <= altColName {
			continue
		}

		entNum, err := strconv.Atoi(strings.TrimSpace(row[altColEntNum]))
		if err != nil {
			continue
		}
		alias := ofacField(row[altColName])
		if alias == "" {
			continue
		}

		rec, ok := byEntity[entNum]
		if !ok {
			dropped++
			continue
		}
		rec.Aliases = append(rec.Aliases, alias)
	}

	if dropped > 0 {
		zap.L().Debug("ingest: dropped aliases for unknown entities", zap.Int("count", dropped))
	}
	return nil
}

// ofacField trims a field and maps the OFAC null marker to empty.
func ofacField(raw string) string {
	s := strings.TrimSpace(raw)
	if s == ofacNull {
		return ""
	}
	return s
}
