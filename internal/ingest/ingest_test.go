package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantbridge/vetting-cli/internal/config"
	"github.com/grantbridge/vetting-cli/internal/model"
)

const revocationFixture = `111111111|LAPSED CHARITY INC|LAPSED|ALBANY|NY|12207|US|03|15-MAY-2022|13-JUN-2022|
2345678|SECOND CHANCE FUND||BUFFALO|NY|14201|US|03|01-FEB-2020|02-MAR-2020|10-OCT-2023
badrow
333333333|NO DATES ORG||||US|03|||
`

const sdnFixture = `36,"AEROCARIBBEAN AIRLINES","Entity","CUBA",-0-,-0-,-0-,-0-,-0-,-0-,-0-,-0-
101,"GLOBAL RELIEF FOUNDATION, INC.","Entity","SDGT",-0-,-0-,-0-,-0-,-0-,-0-,-0-,"US FEIN 123456789"
173,"SMITH, John","Individual","SDNTK",-0-,-0-,-0-,-0-,-0-,-0-,-0-,-0-
`

const altFixture = `101,220,"aka","FONDATION SECOURS MONDIAL",-0-
101,221,"aka","GRF",-0-
9999,500,"aka","NOBODY HOME",-0-
`

type fakeDownloads struct {
	bodies map[string]string
}

func (f *fakeDownloads) Download(_ context.Context, rawURL string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.bodies[rawURL])), nil
}

func (f *fakeDownloads) DownloadToFile(_ context.Context, rawURL, path string) (int64, error) {
	data := []byte(f.bodies[rawURL])
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (f *fakeDownloads) DownloadIfChanged(ctx context.Context, rawURL, etag string) (io.ReadCloser, string, bool, error) {
	body, err := f.Download(ctx, rawURL)
	return body, etag, true, err
}

type fakeListStore struct {
	revocations []model.RevocationRecord
	sanctions   []model.SanctionsRecord
}

func (f *fakeListStore) ReplaceRevocations(_ context.Context, records []model.RevocationRecord) (int, error) {
	f.revocations = records
	return len(records), nil
}

func (f *fakeListStore) ReplaceSanctions(_ context.Context, records []model.SanctionsRecord) (int, error) {
	f.sanctions = records
	return len(records), nil
}

func zipFixture(t *testing.T, name, contents string) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, err := w.Create(name)
	require.NoError(t, err)
	_, err = entry.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.String()
}

func TestParseRevocations(t *testing.T) {
	records, err := ParseRevocations(strings.NewReader(revocationFixture))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "111111111", records[0].EIN)
	assert.Equal(t, "LAPSED CHARITY INC", records[0].LegalName)
	assert.Equal(t, "ALBANY", records[0].City)
	assert.Equal(t, "NY", records[0].State)
	require.NotNil(t, records[0].RevocationDate)
	assert.Equal(t, "2022-05-15", records[0].RevocationDate.Format("2006-01-02"))
	assert.Nil(t, records[0].ReinstatementDate)

	// Leading zeros restored, reinstatement date populated.
	assert.Equal(t, "002345678", records[1].EIN)
	require.NotNil(t, records[1].ReinstatementDate)
	assert.Equal(t, "2023-10-10", records[1].ReinstatementDate.Format("2006-01-02"))

	assert.Nil(t, records[2].RevocationDate)
}

func TestParseRevocationDate(t *testing.T) {
	assert.Nil(t, parseRevocationDate(""))
	assert.Nil(t, parseRevocationDate("not a date"))

	d := parseRevocationDate("01-FEB-2020")
	require.NotNil(t, d)
	assert.Equal(t, "2020-02-01", d.Format("2006-01-02"))
}

func TestParseSDN(t *testing.T) {
	records, err := ParseSDN(strings.NewReader(sdnFixture))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, 101, records[1].EntityNumber)
	assert.Equal(t, "GLOBAL RELIEF FOUNDATION, INC.", records[1].Name)
	assert.Equal(t, "Entity", records[1].EntityType)
	assert.Equal(t, "SDGT", records[1].Program)
	assert.Empty(t, records[1].Aliases)

	assert.Equal(t, "Individual", records[2].EntityType)
}

func TestMergeAliases(t *testing.T) {
	records, err := ParseSDN(strings.NewReader(sdnFixture))
	require.NoError(t, err)

	require.NoError(t, MergeAliases(records, strings.NewReader(altFixture)))

	assert.Equal(t, []string{"FONDATION SECOURS MONDIAL", "GRF"}, records[1].Aliases)
	assert.Empty(t, records[0].Aliases)
}

func TestSyncRevocations(t *testing.T) {
	cfg := config.IngestConfig{
		DataDir:       t.TempDir(),
		RevocationURL: "https://apps.irs.gov/pub/epostcard/revocations.zip",
	}
	fetch := &fakeDownloads{bodies: map[string]string{
		cfg.RevocationURL: zipFixture(t, "data-download-revocation.txt", revocationFixture),
	}}
	st := &fakeListStore{}

	n, err := New(fetch, st, cfg).SyncRevocations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, st.revocations, 3)
	assert.Equal(t, "111111111", st.revocations[0].EIN)
}

func TestSyncSanctions(t *testing.T) {
	cfg := config.IngestConfig{
		SDNURL: "https://www.treasury.gov/ofac/downloads/sdn.csv",
		AltURL: "https://www.treasury.gov/ofac/downloads/alt.csv",
	}
	fetch := &fakeDownloads{bodies: map[string]string{
		cfg.SDNURL: sdnFixture,
		cfg.AltURL: altFixture,
	}}
	st := &fakeListStore{}

	n, err := New(fetch, st, cfg).SyncSanctions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"FONDATION SECOURS MONDIAL", "GRF"}, st.sanctions[1].Aliases)
}
