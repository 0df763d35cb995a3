// Package journal persists executed fills to PostgreSQL so the signed
// position can be rebuilt independently of the venue.
package journal

import (
	"context"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/pkg/conn"
)

// Fill is one executed (partial) fill.
type Fill struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	OrderID   string    `gorm:"index;size:64"`
	Symbol    string    `gorm:"index;size:32"`
	Side      string    `gorm:"size:8"`
	Price     float64   `gorm:""`
	Quantity  float64   `gorm:""`
	FilledAt  time.Time `gorm:"index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Fill) TableName() string {
	return "fills"
}

// Journal appends fills and recomputes positions from them.
type Journal struct {
	client *conn.Client
}

// Open connects to PostgreSQL and migrates the fill table.
func Open(dsn string) (*Journal, error) {
	client, err := conn.New(conn.Option{ConnString: dsn})
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}

	if err := client.DB().AutoMigrate(&Fill{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate fills")
	}

	return &Journal{client: client}, nil
}

// Append records one fill.
func (j *Journal) Append(ctx context.Context, orderID, symbol string, side model.Side, price, quantity float64, at time.Time) error {
	if j == nil {
		return nil
	}

	fill := Fill{
		OrderID:  orderID,
		Symbol:   symbol,
		Side:     side.String(),
		Price:    price,
		Quantity: quantity,
		FilledAt: at,
	}
	if err := j.client.DB().WithContext(ctx).Create(&fill).Error; err != nil {
		return errors.Wrap(err, "append fill").With("order", orderID)
	}

	return nil
}

// Recompute sums the journal into a signed position for the symbol.
func (j *Journal) Recompute(ctx context.Context, symbol string) (float64, error) {
	if j == nil {
		return 0, nil
	}

	var rows []Fill
	if err := j.client.DB().WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return 0, errors.Wrap(err, "load fills").With("symbol", symbol)
	}

	signed := 0.0
	for _, row := range rows {
		if model.SideFromString(row.Side) == model.SideAsk {
			signed -= row.Quantity
		} else {
			signed += row.Quantity
		}
	}

	return signed, nil
}

// Close releases the connection pool.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.client.Close()
}
