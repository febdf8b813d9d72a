// Package export renders pending orders as an XLSX workbook for admins.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/m3rciful/doorshop/core/logger"
	"github.com/m3rciful/doorshop/core/telegram/gateway"
	"github.com/m3rciful/doorshop/internal/shop/model"
)

// ErrNoOrders is returned when there is nothing to export.
var ErrNoOrders = errors.New("export: no pending orders")

// Source lists pending orders.
type Source interface {
	PendingOrders(ctx context.Context) ([]model.OrderWithItems, error)
}

// Sender delivers the workbook.
type Sender interface {
	SendDocument(ctx context.Context, chatID int64, doc gateway.Document) (int, error)
}

// Exporter builds and sends order workbooks.
type Exporter struct {
	src Source
	gw  Sender
	now func() time.Time
}

// New constructs an Exporter.
func New(src Source, gw Sender) *Exporter {
	return &Exporter{src: src, gw: gw, now: time.Now}
}

// SendPending sends every pending order to chatID as one workbook and
// returns how many orders it contained.
func (e *Exporter) SendPending(ctx context.Context, chatID int64) (int, error) {
	orders, err := e.src.PendingOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("export orders: %w", err)
	}
	if len(orders) == 0 {
		return 0, ErrNoOrders
	}

	start := time.Now()
	data, err := BuildOrdersXLSX(orders)
	if err != nil {
		return 0, fmt.Errorf("build workbook: %w", err)
	}
	name := fmt.Sprintf("orders_%s_%s.xlsx", e.now().Format("20060102_1504"), uuid.NewString()[:8])
	_, err = e.gw.SendDocument(ctx, chatID, gateway.Document{
		Name:    name,
		Reader:  bytes.NewReader(data),
		Caption: fmt.Sprintf("📦 Активные заказы: %d", len(orders)),
	})
	logger.Info(ctx, logger.CompExport, "orders.export",
		slog.String("status", logger.Status(err)),
		slog.Int("orders", len(orders)),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", logger.Took(start)),
		logger.Err(err),
	)
	if err != nil {
		return 0, fmt.Errorf("send workbook: %w", err)
	}
	return len(orders), nil
}

func ordersHeaders() []string {
	return []string{
		"Заказ",
		"Дата",
		"Покупатель",
		"ID пользователя",
		"Телефон",
		"Товар",
		"Цена, руб.",
		"Количество",
		"Сумма строки, руб.",
		"Итого заказа, руб.",
	}
}

// BuildOrdersXLSX writes one row per order item.
func BuildOrdersXLSX(orders []model.OrderWithItems) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	if err := writeRow(f, sheet, 1, toAny(ordersHeaders())); err != nil {
		return nil, err
	}
	row := 2
	for _, o := range orders {
		for _, it := range o.Items {
			values := []any{
				o.ID,
				o.CreatedAt.Format("02.01.2006 15:04"),
				o.UserName,
				o.UserID,
				o.Phone,
				it.ProductName,
				it.ProductPrice,
				it.Quantity,
				it.Total(),
				o.TotalAmount,
			}
			if err := writeRow(f, sheet, row, values); err != nil {
				return nil, err
			}
			row++
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for c, v := range values {
		cell, err := excelize.CoordinatesToCellName(c+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
