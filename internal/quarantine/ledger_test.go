package quarantine_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hara602/downloadSentry/internal/model"
	"github.com/Hara602/downloadSentry/internal/quarantine"
)

func TestLedger_RecordAndRecent(t *testing.T) {
	l, err := quarantine.OpenLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	at := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	records := []model.QuarantineRecord{
		{
			EventID: "01", OriginalPath: "/dl/report.pdf", QuarantinePath: "/q/report.pdf",
			Outcome: model.OutcomeQuarantined, ContentType: "application/pdf",
			DetectedAt: at, CompletedAt: at.Add(time.Millisecond),
		},
		{
			EventID: "02", OriginalPath: "/dl/gone.zip",
			Outcome:    model.OutcomeSourceMissing,
			DetectedAt: at.Add(time.Second), CompletedAt: at.Add(time.Second),
		},
		{
			EventID: "03", OriginalPath: "/dl/invoice.pdf", QuarantinePath: "/q/invoice.pdf",
			Outcome: model.OutcomeQuarantined, Masquerade: true,
			DetectedAt: at.Add(2 * time.Second), CompletedAt: at.Add(2 * time.Second),
		},
	}
	for _, rec := range records {
		require.NoError(t, l.Record(rec))
	}

	got, err := l.Recent(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, records[2], got[0])
	assert.Equal(t, records[1], got[1])

	all, err := l.Recent(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, records[0], all[2])
}

func TestLedger_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := quarantine.OpenLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(model.QuarantineRecord{
		EventID: "x", OriginalPath: "/dl/x", Outcome: model.OutcomeFailed, Reason: "boom",
		DetectedAt: time.Now().UTC(), CompletedAt: time.Now().UTC(),
	}))
	require.NoError(t, l.Close())

	l, err = quarantine.OpenLedger(path)
	require.NoError(t, err)
	defer l.Close()

	got, err := l.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "boom", got[0].Reason)
	assert.Equal(t, model.OutcomeFailed, got[0].Outcome)
}
