package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/m3rciful/doorshop/core/telegram/gateway/gatewaytest"
	"github.com/m3rciful/doorshop/internal/shop/model"
)

type staticSource []model.OrderWithItems

func (s staticSource) PendingOrders(context.Context) ([]model.OrderWithItems, error) {
	return s, nil
}

func sampleOrders() []model.OrderWithItems {
	created := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	return []model.OrderWithItems{{
		Order: model.Order{ID: 7, UserID: 10, UserName: "Иван", Phone: "+7 900", TotalAmount: 5050, CreatedAt: created},
		Items: []model.OrderItem{
			{ProductName: "Дуб", ProductPrice: 2000, Quantity: 2},
			{ProductName: "Сосна", ProductPrice: 350, Quantity: 3},
		},
	}}
}

func TestBuildOrdersXLSX(t *testing.T) {
	data, err := BuildOrdersXLSX(sampleOrders())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ordersHeaders(), rows[0])
	assert.Equal(t, []string{"7", "04.03.2026 15:30", "Иван", "10", "+7 900", "Дуб", "2000", "2", "4000", "5050"}, rows[1])
	assert.Equal(t, "Сосна", rows[2][5])
	assert.Equal(t, "1050", rows[2][8])
}

func TestSendPending(t *testing.T) {
	gw := gatewaytest.New()
	e := New(staticSource(sampleOrders()), gw)
	e.now = func() time.Time { return time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC) }

	n, err := e.SendPending(context.Background(), 900)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs := gw.CallsOf(gatewaytest.OpSendDocument)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(900), docs[0].ChatID)
	assert.True(t, strings.HasPrefix(docs[0].Text, "orders_20260305_0900_"))
	assert.True(t, strings.HasSuffix(docs[0].Text, ".xlsx"))
	assert.NotEmpty(t, docs[0].Body)
}

func TestSendPendingWithoutOrders(t *testing.T) {
	gw := gatewaytest.New()
	_, err := New(staticSource(nil), gw).SendPending(context.Background(), 900)
	assert.ErrorIs(t, err, ErrNoOrders)
	assert.Empty(t, gw.Calls())
}
