package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction records one unit of an article sold through a sales channel.
type Transaction struct {
	ID             int64           `gorm:"column:id;primaryKey;autoIncrement"`
	ArticleID      int64           `gorm:"column:article_id;not null;index:idx_transactions_article_date,priority:1"`
	TDat           time.Time       `gorm:"column:t_dat;type:date;not null;index:idx_transactions_article_date,priority:2"`
	CustomerID     *string         `gorm:"column:customer_id"`
	Price          decimal.Decimal `gorm:"column:price;type:numeric(12,6);not null"`
	SalesChannelID int             `gorm:"column:sales_channel_id;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Transaction) TableName() string {
	return "transactions"
}
