package service

import (
	"context"
	"testing"

	"numera/internal/dto"
	"numera/internal/fiscal"
	"numera/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func certifyInvoice(t *testing.T, env *testEnv, mutate func(*dto.CertifyRequest)) *dto.DocumentResponse {
	t.Helper()
	req := env.baseRequest()
	if mutate != nil {
		mutate(&req)
	}
	resp, err := env.svc.Certify(context.Background(), req)
	require.NoError(t, err)
	return &resp.Document
}

func TestCancel_CertifiesCreditNoteAndLinks(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)
	productID := uuid.New()
	pid := productID.String()
	method := "cash"
	regID := env.register.ID.String()

	invoice := certifyInvoice(t, env, func(req *dto.CertifyRequest) {
		req.PaymentMethod = &method
		req.RegisterID = &regID
		req.Lines = []dto.LineRequest{{
			Description: "Widget",
			ProductID:   &pid,
			Quantity:    decimal.NewFromInt(2),
			UnitPrice:   decimal.NewFromInt(500),
		}}
	})

	resp, err := env.svc.Cancel(context.Background(), uuid.MustParse(invoice.ID), dto.CancelRequest{
		Reason:   "customer returned the goods",
		Operator: "bruno",
	})
	require.NoError(t, err)

	// The corrective is a certified NC with its own number and hash.
	require.NotNil(t, resp.Corrective.Number)
	assert.Equal(t, "NC T2024/1", *resp.Corrective.Number)
	assert.True(t, resp.Corrective.IsCertified)
	assert.NotNil(t, resp.Corrective.Hash)
	assert.NotEqual(t, *invoice.Hash, *resp.Corrective.Hash)
	require.NotNil(t, resp.Corrective.SourceInvoiceID)
	assert.Equal(t, invoice.ID, *resp.Corrective.SourceInvoiceID)
	assert.Equal(t, invoice.Total.String(), resp.Corrective.Total.String())

	// The original is cancelled and cross-referenced; its number and hash stay.
	assert.Equal(t, "cancelled", resp.Original.Status)
	require.NotNil(t, resp.Original.CancellationReason)
	assert.Contains(t, *resp.Original.CancellationReason, "customer returned the goods")
	assert.Contains(t, *resp.Original.CancellationReason, "NC T2024/1")
	require.NotNil(t, resp.Original.CorrectiveID)
	assert.Equal(t, resp.Corrective.ID, *resp.Original.CorrectiveID)
	assert.Equal(t, *invoice.Number, *resp.Original.Number)
	assert.Equal(t, *invoice.Hash, *resp.Original.Hash)

	// Ledger impact netted out: +1000 sale, −1000 refund; stock back in.
	reg, _ := env.ledger.FindRegister(context.Background(), env.register.ID)
	assert.True(t, reg.Balance.IsZero(), reg.Balance.String())
	stock, _ := env.ledger.ListStockEntries(context.Background(), productID)
	require.Len(t, stock, 2)
	assert.Equal(t, model.StockExit, stock[0].Direction)
	assert.Equal(t, model.StockEntry, stock[1].Direction)
}

func TestCancel_CreditNoteRectifiedByDebitNote(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)
	nc := certifyInvoice(t, env, func(req *dto.CertifyRequest) { req.Type = "NC" })

	resp, err := env.svc.Cancel(context.Background(), uuid.MustParse(nc.ID), dto.CancelRequest{
		Reason:   "credit note issued in error",
		Operator: "bruno",
	})
	require.NoError(t, err)
	assert.Equal(t, "ND", resp.Corrective.Type)
	assert.Equal(t, "ND T2024/1", *resp.Corrective.Number)
}

func TestCancel_Guards(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)
	var ve *fiscal.ValidationError

	// Unknown document.
	_, err := env.svc.Cancel(context.Background(), uuid.New(), dto.CancelRequest{Reason: "whatever", Operator: "x"})
	require.Error(t, err)

	// Uncertified drafts cannot be cancelled.
	draft := &model.FiscalDocument{ID: uuid.New(), Type: model.DocInvoice, SeriesID: env.seriesID, Status: model.StatusPending}
	require.NoError(t, env.docs.Save(context.Background(), nil, draft))
	_, err = env.svc.Cancel(context.Background(), draft.ID, dto.CancelRequest{Reason: "not yet issued", Operator: "x"})
	require.ErrorAs(t, err, &ve)

	// Cancelling twice is rejected.
	invoice := certifyInvoice(t, env, nil)
	_, err = env.svc.Cancel(context.Background(), uuid.MustParse(invoice.ID), dto.CancelRequest{Reason: "first cancel", Operator: "x"})
	require.NoError(t, err)
	_, err = env.svc.Cancel(context.Background(), uuid.MustParse(invoice.ID), dto.CancelRequest{Reason: "second cancel", Operator: "x"})
	require.ErrorAs(t, err, &ve)
}
