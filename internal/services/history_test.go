package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/repos"
)

func TestHistory_ExportCSVNewestFirst(t *testing.T) {
	repo := newHistoryRepo(t)
	ctx := context.Background()
	for i := 1; i <= 7; i++ {
		_, err := repo.Record(ctx, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d, with comma", i))
		require.NoError(t, err)
	}
	svc := NewHistoryService(logger.Nop(), repo, nil, 0)

	var buf bytes.Buffer
	n, err := svc.ExportCSV(ctx, &buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, []string{"Usuario", "Gemini"}, records[0])
	assert.Equal(t, []string{"q7", "a7, with comma"}, records[1])
	assert.Equal(t, []string{"q3", "a3, with comma"}, records[5])
}

func TestHistory_ExportEmptyHasHeaderOnly(t *testing.T) {
	svc := NewHistoryService(logger.Nop(), newHistoryRepo(t), nil, 5)
	data, n, err := svc.ExportBytes(context.Background(), 3)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "Usuario,Gemini\n", string(data))
}

func TestHistory_ExportStoreFailure(t *testing.T) {
	repo := repos.NewChatHistoryRepo(brokenConnector{}, logger.Nop())
	svc := NewHistoryService(logger.Nop(), repo, nil, 5)
	var buf bytes.Buffer
	_, err := svc.ExportCSV(context.Background(), &buf, 5)
	assert.True(t, errors.Is(err, errs.ErrStore))
	assert.Zero(t, buf.Len())
}

func TestHistory_PurgeNotifies(t *testing.T) {
	repo := newHistoryRepo(t)
	ctx := context.Background()
	_, err := repo.Record(ctx, "q", "a")
	require.NoError(t, err)
	notifier := &recordingNotifier{}
	svc := NewHistoryService(logger.Nop(), repo, notifier, 5)

	deleted, err := svc.PurgeAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
	assert.Equal(t, []event{{channel: HistoryChannel, action: ActionHistoryPurged}}, notifier.events)

	rows, err := svc.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

type fakeSender struct {
	sent   *mail.SGMailV3
	status int
	err    error
}

func (f *fakeSender) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = email
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestEmail_SendExportAttachesCSV(t *testing.T) {
	sender := &fakeSender{status: 202}
	es := newEmailService(logger.Nop(), sender, "from@example.com")

	err := es.SendExport(context.Background(), "to@example.com", ExportFilename, []byte("Usuario,Gemini\n"), 0)
	require.NoError(t, err)
	require.NotNil(t, sender.sent)
	require.Len(t, sender.sent.Attachments, 1)
	att := sender.sent.Attachments[0]
	assert.Equal(t, ExportFilename, att.Filename)
	assert.Equal(t, "text/csv", att.Type)
	assert.Equal(t, "VXN1YXJpbyxHZW1pbmkK", att.Content)
	assert.Equal(t, "from@example.com", sender.sent.From.Address)
}

func TestEmail_RejectedStatus(t *testing.T) {
	es := newEmailService(logger.Nop(), &fakeSender{status: 401}, "from@example.com")
	err := es.SendExport(context.Background(), "to@example.com", ExportFilename, nil, 0)
	assert.Error(t, err)
}

func TestEmail_RequiresKey(t *testing.T) {
	_, err := NewEmailService(logger.Nop(), "", "")
	assert.True(t, errors.Is(err, errs.ErrExportUnavailable))
}

func TestBucket_RequiresBucket(t *testing.T) {
	_, err := NewBucketService(context.Background(), logger.Nop(), "", "")
	assert.True(t, errors.Is(err, errs.ErrExportUnavailable))
}

func TestBucket_Naming(t *testing.T) {
	assert.Equal(t, "https://storage.googleapis.com/b/exports/x.csv", PublicObjectURL("b", "exports/x.csv"))
}
