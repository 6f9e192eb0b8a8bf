package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/salesrank-backend/pkg/db"
	"github.com/angelmondragon/salesrank-backend/pkg/db/models"
	"github.com/angelmondragon/salesrank-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/salesrank-backend/pkg/errors"
	"github.com/angelmondragon/salesrank-backend/pkg/logger"
)

const DefaultBatchSize = 1000

var (
	articleColumns     = []string{"article_id", "prod_name", "product_type_no", "product_type_name", "product_group_name"}
	transactionColumns = []string{"t_dat", "customer_id", "article_id", "price", "sales_channel_id"}
)

// Loader imports the articles and transactions CSV exports into the sales database.
type Loader struct {
	db        *db.Client
	logg      *logger.Logger
	batchSize int
}

// Result counts the rows written by one load.
type Result struct {
	Rows    int
	Batches int
}

func NewLoader(client *db.Client, logg *logger.Logger, batchSize int) (*Loader, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{db: client, logg: logg, batchSize: batchSize}, nil
}

// LoadArticles upserts articles by article_id. Extra CSV columns are ignored.
func (l *Loader) LoadArticles(ctx context.Context, r io.Reader) (Result, error) {
	return load(ctx, l, r, "articles", articleColumns, parseArticle, func(tx *gorm.DB, batch []models.Article) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "article_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"prod_name", "product_type_no", "product_type_name", "product_group_name"}),
		}).Create(&batch).Error
	})
}

// LoadTransactions appends transactions. Each batch commits on its own, so a
// failed load leaves the earlier batches in place.
func (l *Loader) LoadTransactions(ctx context.Context, r io.Reader) (Result, error) {
	return load(ctx, l, r, "transactions", transactionColumns, parseTransaction, func(tx *gorm.DB, batch []models.Transaction) error {
		return tx.Create(&batch).Error
	})
}

func load[T any](
	ctx context.Context,
	l *Loader,
	r io.Reader,
	kind string,
	required []string,
	parse func(row []string, idx map[string]int) (T, error),
	write func(tx *gorm.DB, batch []T) error,
) (Result, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("%s csv header unreadable", kind))
	}
	idx, err := indexHeader(header, required)
	if err != nil {
		return Result{}, err
	}

	ctx = l.logg.WithField(ctx, "dataset", kind)
	var (
		res   Result
		batch = make([]T, 0, l.batchSize)
		line  = 1
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.db.WithTx(ctx, func(tx *gorm.DB) error { return write(tx, batch) }); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("writing %s batch ending at line %d", kind, line))
		}
		res.Rows += len(batch)
		res.Batches++
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return res, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("%s csv line %d unreadable", kind, line))
		}
		item, err := parse(row, idx)
		if err != nil {
			return res, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("%s csv line %d invalid", kind, line))
		}
		batch = append(batch, item)
		if len(batch) == l.batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}

	l.logg.Info(l.logg.WithFields(ctx, map[string]any{"rows": res.Rows, "batches": res.Batches}), "dataset.load.completed")
	return res, nil
}

func indexHeader(header []string, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	var missing []string
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "csv header missing columns: "+strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseArticle(row []string, idx map[string]int) (models.Article, error) {
	id, err := parseInt(row, idx, "article_id")
	if err != nil {
		return models.Article{}, err
	}
	if id <= 0 {
		return models.Article{}, fmt.Errorf("article_id must be positive")
	}
	typeNo, err := parseInt(row, idx, "product_type_no")
	if err != nil {
		return models.Article{}, err
	}
	return models.Article{
		ArticleID:        id,
		ProdName:         field(row, idx, "prod_name"),
		ProductTypeNo:    typeNo,
		ProductTypeName:  field(row, idx, "product_type_name"),
		ProductGroupName: field(row, idx, "product_group_name"),
	}, nil
}

func parseTransaction(row []string, idx map[string]int) (models.Transaction, error) {
	day, err := time.Parse(time.DateOnly, field(row, idx, "t_dat"))
	if err != nil {
		return models.Transaction{}, fmt.Errorf("t_dat: %w", err)
	}
	articleID, err := parseInt(row, idx, "article_id")
	if err != nil {
		return models.Transaction{}, err
	}
	price, err := decimal.NewFromString(field(row, idx, "price"))
	if err != nil {
		return models.Transaction{}, fmt.Errorf("price: %w", err)
	}
	if price.IsNegative() {
		return models.Transaction{}, fmt.Errorf("price must not be negative")
	}
	channel, err := parseInt(row, idx, "sales_channel_id")
	if err != nil {
		return models.Transaction{}, err
	}
	if !enums.SalesChannel(channel).IsValid() {
		return models.Transaction{}, fmt.Errorf("sales_channel_id %d is not a known channel", channel)
	}

	tx := models.Transaction{
		ArticleID:      articleID,
		TDat:           day,
		Price:          price,
		SalesChannelID: int(channel),
	}
	if customer := field(row, idx, "customer_id"); customer != "" {
		tx.CustomerID = &customer
	}
	return tx, nil
}

func field(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseInt(row []string, idx map[string]int, name string) (int64, error) {
	v, err := strconv.ParseInt(field(row, idx, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}
